package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/jeff-regier/example-models/internal/model"
)

func interceptDesign(persons int) *mat.Dense {
	d := mat.NewDense(persons, 1, nil)
	for p := 0; p < persons; p++ {
		d.Set(p, 0, 1)
	}
	return d
}

func bigIRTFixture(t *testing.T) *model.IRTDataset {
	t.Helper()
	p, err := model.GenerateRaschParams(5, []float64{0.5}, 1)
	require.NoError(t, err)

	design := func(n int) *model.IRTDataset {
		d, _, err := model.SimulateRasch(p, interceptDesign(n), 9)
		require.NoError(t, err)
		return d
	}
	return design(100)
}

func TestSubsetPersons(t *testing.T) {
	ds := bigIRTFixture(t)

	sub, err := SubsetPersons(ds, 30, 42)
	require.NoError(t, err)

	assert.Equal(t, 30, sub.Persons)
	assert.Equal(t, ds.Items, sub.Items)
	assert.Equal(t, 30*5, sub.Obs())
	require.NoError(t, sub.Validate())

	// Same seed picks the same persons.
	again, err := SubsetPersons(ds, 30, 42)
	require.NoError(t, err)
	assert.Equal(t, sub.Response, again.Response)

	other, err := SubsetPersons(ds, 30, 43)
	require.NoError(t, err)
	assert.NotEqual(t, sub.Response, other.Response)
}

func TestSubsetPersons_Bounds(t *testing.T) {
	ds := bigIRTFixture(t)

	_, err := SubsetPersons(ds, 0, 1)
	assert.Error(t, err)
	_, err = SubsetPersons(ds, 101, 1)
	assert.Error(t, err)

	full, err := SubsetPersons(ds, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, ds, full)
}
