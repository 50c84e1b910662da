package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func interceptOnlyDesign(persons int) *mat.Dense {
	design := mat.NewDense(persons, 1, nil)
	for p := 0; p < persons; p++ {
		design.Set(p, 0, 1)
	}
	return design
}

// twoColumnDesign has an intercept and a centered binary covariate.
func twoColumnDesign(persons int) *mat.Dense {
	design := mat.NewDense(persons, 2, nil)
	for p := 0; p < persons; p++ {
		design.Set(p, 0, 1)
		if p%2 == 0 {
			design.Set(p, 1, 0.5)
		} else {
			design.Set(p, 1, -0.5)
		}
	}
	return design
}

func TestRaschProb(t *testing.T) {
	// theta == difficulty gives an even coin.
	assert.InDelta(t, 0.5, RaschProb(0, 0), 1e-12)

	// Monotone in ability.
	assert.Greater(t, RaschProb(1, 0), RaschProb(0, 0))
	assert.Less(t, RaschProb(-1, 0), RaschProb(0, 0))

	// Extreme abilities stay inside (0, 1) without overflow.
	assert.Less(t, RaschProb(700, 0), 1.0+1e-12)
	assert.Greater(t, RaschProb(-700, 0), -1e-12)
}

func TestGenerateRaschParams(t *testing.T) {
	p, err := GenerateRaschParams(20, []float64{0.5, 0.5}, 1)
	require.NoError(t, err)

	require.Len(t, p.Difficulty, 20)
	var sum float64
	for _, b := range p.Difficulty {
		sum += b
	}
	assert.InDelta(t, 0, sum, 1e-9)
	assert.InDelta(t, -1.5, p.Difficulty[0], 1e-9)
	assert.InDelta(t, 1.5, p.Difficulty[19], 1e-9)

	_, err = GenerateRaschParams(1, []float64{0}, 1)
	assert.Error(t, err)
}

func TestGenerateRaschParams_LastDifficultyDerived(t *testing.T) {
	p, err := GenerateRaschParams(7, []float64{0}, 1)
	require.NoError(t, err)

	var sum float64
	for _, b := range p.Difficulty[:6] {
		sum += b
	}
	assert.InDelta(t, -sum, p.Difficulty[6], 1e-12)
}

func TestSimulateRasch(t *testing.T) {
	p, err := GenerateRaschParams(20, []float64{0.5, 0.5}, 1)
	require.NoError(t, err)
	design := twoColumnDesign(500)

	ds, theta, err := SimulateRasch(p, design, 42)
	require.NoError(t, err)

	assert.Equal(t, 20*500, ds.Obs())
	assert.Len(t, theta, 500)
	require.NoError(t, ds.Validate())
	for _, y := range ds.Response {
		assert.True(t, y == 0 || y == 1, "responses must be dichotomous, got %d", y)
	}
}

func TestSimulateRasch_FixedSeedReplays(t *testing.T) {
	p, err := GenerateRaschParams(5, []float64{0.2}, 0.8)
	require.NoError(t, err)
	design := interceptOnlyDesign(50)

	a, thetaA, err := SimulateRasch(p, design, 7)
	require.NoError(t, err)
	b, thetaB, err := SimulateRasch(p, design, 7)
	require.NoError(t, err)

	assert.Equal(t, a.Response, b.Response)
	assert.Equal(t, thetaA, thetaB)

	c, _, err := SimulateRasch(p, design, 8)
	require.NoError(t, err)
	assert.NotEqual(t, a.Response, c.Response)
}

func TestSimulateRasch_RejectsBadParams(t *testing.T) {
	p := &RaschParams{Difficulty: []float64{1, 1}, Lambda: []float64{0}, Sigma: 1}
	_, _, err := SimulateRasch(p, interceptOnlyDesign(3), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum-to-zero")

	p = &RaschParams{Difficulty: []float64{-1, 1}, Lambda: []float64{0}, Sigma: 0}
	_, _, err = SimulateRasch(p, interceptOnlyDesign(3), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sigma")
}

func TestRegressionMean(t *testing.T) {
	ds := &IRTDataset{Covariates: twoColumnDesign(4), Persons: 4}
	mu, err := ds.RegressionMean([]float64{0.5, 1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.0, 0.0, 1.0, 0.0}, mu, 1e-12)

	_, err = ds.RegressionMean([]float64{0.5})
	assert.Error(t, err)
}
