package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeff-regier/example-models/internal/ir"
)

func raschSpecFixture() *ir.ModelSpec {
	return &ir.ModelSpec{
		Name:   "rasch_latent_reg",
		Family: ir.FamilyRasch,
		Data: []ir.DataField{
			{Name: "N", Kind: ir.KindInt, Role: ir.RoleObsCount},
			{Name: "I", Kind: ir.KindInt, Role: ir.RoleItemCount},
			{Name: "P", Kind: ir.KindInt, Role: ir.RolePersonCount},
			{Name: "K", Kind: ir.KindInt, Role: ir.RoleCovariateCount},
			{Name: "ii", Kind: ir.KindIntVector, Role: ir.RoleItemIndex},
			{Name: "pp", Kind: ir.KindIntVector, Role: ir.RolePersonIndex},
			{Name: "W", Kind: ir.KindMatrix, Role: ir.RoleCovariates},
			{Name: "y", Kind: ir.KindIntVector, Role: ir.RoleOutcome},
		},
	}
}

func gpcmSpecFixture() *ir.ModelSpec {
	spec := raschSpecFixture()
	spec.Name = "gpcm_latent_reg"
	spec.Family = ir.FamilyGPCM
	spec.Data = append(spec.Data,
		ir.DataField{Name: "S", Kind: ir.KindInt, Role: ir.RoleStepCount})
	return spec
}

func glmmSpecFixture() *ir.ModelSpec {
	return &ir.ModelSpec{
		Name:   "poisson_glmm",
		Family: ir.FamilyPoissonGLMM,
		Data: []ir.DataField{
			{Name: "N", Kind: ir.KindInt, Role: ir.RoleObsCount},
			{Name: "n_site", Kind: ir.KindInt, Role: ir.RoleSiteCount},
			{Name: "n_year", Kind: ir.KindInt, Role: ir.RoleYearCount},
			{Name: "site", Kind: ir.KindIntVector, Role: ir.RoleSiteIndex},
			{Name: "year", Kind: ir.KindIntVector, Role: ir.RoleYearIndex},
			{Name: "y", Kind: ir.KindIntVector, Role: ir.RoleOutcome},
			{Name: "site_mis", Kind: ir.KindIntVector, Role: ir.RoleMissingSiteIndex},
			{Name: "year_mis", Kind: ir.KindIntVector, Role: ir.RoleMissingYearIndex},
		},
	}
}

func TestBuildIRTPayload_Rasch(t *testing.T) {
	p, err := GenerateRaschParams(4, []float64{0.5}, 1)
	require.NoError(t, err)
	ds, _, err := SimulateRasch(p, interceptOnlyDesign(10), 42)
	require.NoError(t, err)

	payload, err := BuildIRTPayload(raschSpecFixture(), ds)
	require.NoError(t, err)

	assert.Equal(t, ir.DataInt(40), payload["N"])
	assert.Equal(t, ir.DataInt(4), payload["I"])
	assert.Equal(t, ir.DataInt(10), payload["P"])
	assert.Equal(t, ir.DataInt(1), payload["K"])
	assert.Len(t, payload["y"].(ir.DataIntVector), 40)
	assert.Len(t, payload["W"].(ir.DataMatrix), 10)
}

func TestBuildIRTPayload_GPCMStepCount(t *testing.T) {
	p, err := GenerateGPCMParams([]int{2, 3}, []float64{0.5}, 1)
	require.NoError(t, err)
	ds, _, err := SimulateGPCM(p, interceptOnlyDesign(200), 42)
	require.NoError(t, err)

	payload, err := BuildIRTPayload(gpcmSpecFixture(), ds)
	require.NoError(t, err)

	// With 200 persons every category is observed, so the step count is the
	// full 2 + 3 = 5.
	assert.Equal(t, ir.DataInt(5), payload["S"])
}

func TestBuildIRTPayload_MissingRole(t *testing.T) {
	spec := raschSpecFixture()
	spec.Data = spec.Data[:len(spec.Data)-1] // drop the outcome

	p, err := GenerateRaschParams(3, []float64{0}, 1)
	require.NoError(t, err)
	ds, _, err := SimulateRasch(p, interceptOnlyDesign(5), 1)
	require.NoError(t, err)

	_, err = BuildIRTPayload(spec, ds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role")
}

func TestBuildIRTPayload_WrongFamily(t *testing.T) {
	p, err := GenerateRaschParams(3, []float64{0}, 1)
	require.NoError(t, err)
	ds, _, err := SimulateRasch(p, interceptOnlyDesign(5), 1)
	require.NoError(t, err)

	_, err = BuildIRTPayload(glmmSpecFixture(), ds)
	assert.Error(t, err)
}

func TestBuildGLMMPayload(t *testing.T) {
	p, err := GenerateGLMMParams(5, 4, 1.5, 0.5, 0.3, 7)
	require.NoError(t, err)
	ds, _, err := SimulateGLMM(p, 0.15, 7)
	require.NoError(t, err)

	payload, err := BuildGLMMPayload(glmmSpecFixture(), ds)
	require.NoError(t, err)

	assert.Equal(t, ir.DataInt(ds.Obs()), payload["N"])
	assert.Equal(t, ir.DataInt(5), payload["n_site"])
	assert.Equal(t, ir.DataInt(4), payload["n_year"])
	assert.Len(t, payload["site_mis"].(ir.DataIntVector), len(ds.MissingSiteIndex))

	// Payload hashing must be stable for identical datasets.
	again, err := BuildGLMMPayload(glmmSpecFixture(), ds)
	require.NoError(t, err)
	assert.Equal(t, ir.MustDataHash(payload), ir.MustDataHash(again))
}

func TestTruth_Flattening(t *testing.T) {
	p, err := GenerateRaschParams(3, []float64{0.5, 0.2}, 1.1)
	require.NoError(t, err)

	truth := p.Truth()
	assert.Equal(t, p.Difficulty[0], truth["beta[1]"])
	assert.Equal(t, p.Difficulty[2], truth["beta[3]"])
	assert.Equal(t, 0.5, truth["lambda[1]"])
	assert.Equal(t, 1.1, truth["sigma"])

	g, err := GenerateGLMMParams(2, 2, 1.0, 0.5, 0.5, 1)
	require.NoError(t, err)
	gt := g.Truth()
	assert.Equal(t, g.SiteEffect[1], gt["site_eff[2]"])
	assert.Equal(t, 1.0, gt["mu"])
}
