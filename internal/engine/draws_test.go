package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoChainFixture(t *testing.T) *DrawSet {
	t.Helper()
	set := NewDrawSet([]string{"sigma", "beta[1]"})
	require.NoError(t, set.AddChain([][]float64{{1.0, 0.1}, {1.2, 0.2}}))
	require.NoError(t, set.AddChain([][]float64{{0.9, 0.3}, {1.1, 0.4}}))
	return set
}

func TestDrawSet_Accessors(t *testing.T) {
	set := twoChainFixture(t)

	assert.Equal(t, 2, set.NumChains())
	assert.Equal(t, 2, set.NumDraws())
	assert.Equal(t, []string{"sigma", "beta[1]"}, set.Params())
	assert.True(t, set.Has("sigma"))
	assert.False(t, set.Has("tau"))

	sigma, err := set.Chain(0, "sigma")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 1.2}, sigma)

	beta, err := set.Merged("beta[1]")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, beta)

	assert.Equal(t, []string{"beta[1]", "sigma"}, set.SortedParams())
}

func TestDrawSet_Errors(t *testing.T) {
	set := twoChainFixture(t)

	_, err := set.Chain(2, "sigma")
	assert.Error(t, err)
	_, err = set.Chain(0, "tau")
	assert.Error(t, err)
	_, err = set.Merged("tau")
	assert.Error(t, err)

	// Ragged rows rejected.
	err = set.AddChain([][]float64{{1.0}})
	assert.Error(t, err)

	// Chain length mismatch rejected.
	err = set.AddChain([][]float64{{1.0, 0.1}})
	assert.Error(t, err)

	err = set.AddChain(nil)
	assert.Error(t, err)
}
