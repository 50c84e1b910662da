package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeff-regier/example-models/internal/engine"
	"github.com/jeff-regier/example-models/internal/ir"
	"github.com/jeff-regier/example-models/internal/model"
)

func TestStubSampler(t *testing.T) {
	stub := &StubSampler{Centers: model.Truth{"sigma": 1.0, "beta[1]": -0.5}}
	spec := &ir.ModelSpec{Name: "m", Family: ir.FamilyRasch}
	controls := engine.NewControls(WithSmallRun()...)

	draws, err := stub.Sample(context.Background(), spec, ir.DataPayload{}, controls)
	require.NoError(t, err)

	assert.Equal(t, controls.Chains, draws.NumChains())
	assert.Equal(t, controls.IterSampling, draws.NumDraws())
	assert.Equal(t, []string{"beta[1]", "sigma"}, draws.Params())
	assert.Equal(t, 1, stub.Calls)

	sigma, err := draws.Merged("sigma")
	require.NoError(t, err)
	var sum float64
	for _, v := range sigma {
		sum += v
	}
	assert.InDelta(t, 1.0, sum/float64(len(sigma)), 0.01)
}

func TestStubSampler_Deterministic(t *testing.T) {
	stub := &StubSampler{Centers: model.Truth{"mu": 2.0}}
	spec := &ir.ModelSpec{Name: "m", Family: ir.FamilyPoissonGLMM}
	controls := engine.NewControls(WithSmallRun()...)

	a, err := stub.Sample(context.Background(), spec, ir.DataPayload{}, controls)
	require.NoError(t, err)
	b, err := stub.Sample(context.Background(), spec, ir.DataPayload{}, controls)
	require.NoError(t, err)

	av, _ := a.Merged("mu")
	bv, _ := b.Merged("mu")
	assert.Equal(t, av, bv)
}

func TestStubSampler_Err(t *testing.T) {
	boom := errors.New("boom")
	stub := &StubSampler{Centers: model.Truth{"mu": 0}, Err: boom}

	_, err := stub.Sample(context.Background(), &ir.ModelSpec{}, ir.DataPayload{}, engine.DefaultControls())
	assert.ErrorIs(t, err, boom)
}
