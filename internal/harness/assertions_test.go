package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeff-regier/example-models/internal/engine"
	"github.com/jeff-regier/example-models/internal/ir"
	"github.com/jeff-regier/example-models/internal/model"
)

func drawSetWith(t *testing.T, cols map[string][]float64) *engine.DrawSet {
	t.Helper()
	params := make([]string, 0, len(cols))
	var n int
	for name, vals := range cols {
		params = append(params, name)
		n = len(vals)
	}
	set := engine.NewDrawSet(params)
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, 0, len(params))
		for _, name := range set.Params() {
			row = append(row, cols[name][i])
		}
		rows[i] = row
	}
	require.NoError(t, set.AddChain(rows))
	return set
}

func TestAssertZeroSum(t *testing.T) {
	balanced := drawSetWith(t, map[string][]float64{
		"beta[1]": {0.5, 0.5, 0.5, 0.5},
		"beta[2]": {-0.5, -0.5, -0.5, -0.5},
		"sigma":   {1, 1, 1, 1},
	})
	assert.NoError(t, assertZeroSum(balanced, Assertion{Type: AssertZeroSum, Param: "beta"}))

	shifted := drawSetWith(t, map[string][]float64{
		"beta[1]": {0.5, 0.5, 0.5, 0.5},
		"beta[2]": {0.5, 0.5, 0.5, 0.5},
	})
	err := assertZeroSum(shifted, Assertion{Type: AssertZeroSum, Param: "beta"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1")

	// Tolerance is per-assertion.
	assert.NoError(t, assertZeroSum(shifted, Assertion{Type: AssertZeroSum, Param: "beta", Tol: 2}))
}

func TestAssertZeroSumNoColumns(t *testing.T) {
	set := drawSetWith(t, map[string][]float64{"sigma": {1, 1}})
	err := assertZeroSum(set, Assertion{Type: AssertZeroSum, Param: "beta"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns")
}

func TestAssertOutcomeRange(t *testing.T) {
	ok := &studyArtifacts{
		outcomes: []int64{0, 1, 1, 0},
		maxCat:   []int64{1, 1, 1, 1},
	}
	assert.NoError(t, assertOutcomeRange(ok))

	over := &studyArtifacts{
		outcomes: []int64{0, 2},
		maxCat:   []int64{1, 1},
	}
	err := assertOutcomeRange(over)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cap 1")

	unbounded := &studyArtifacts{
		outcomes: []int64{0, 113},
		maxCat:   []int64{-1, -1},
	}
	assert.NoError(t, assertOutcomeRange(unbounded))

	negative := &studyArtifacts{
		outcomes: []int64{-1},
		maxCat:   []int64{-1},
	}
	assert.Error(t, assertOutcomeRange(negative))
}

func TestCheckGPCMProbsExtremeAbilities(t *testing.T) {
	p, err := model.GenerateGPCMParams([]int{2, 4}, []float64{0}, 1)
	require.NoError(t, err)

	// The grid includes theta = +/-50; a naive softmax would overflow.
	assert.NoError(t, checkGPCMProbs(p))
}

func TestAssertProbSimplexUnsupportedFamily(t *testing.T) {
	art := &studyArtifacts{spec: &ir.ModelSpec{Family: ir.FamilyPoissonGLMM}}
	err := assertProbSimplex(art)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no category probabilities")
}
