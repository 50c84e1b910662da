package harness

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeff-regier/example-models/internal/ir"
	"github.com/jeff-regier/example-models/internal/model"
	"github.com/jeff-regier/example-models/internal/testutil"
)

// loadTestScenario loads one of the bundled scenario fixtures.
func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return scenario
}

// stubForScenario builds a stub sampler centered on the scenario's
// generating values, regenerated here from the same study configuration.
func stubForScenario(t *testing.T, scenario *Scenario) *testutil.StubSampler {
	t.Helper()
	truth, err := StudyTruth(scenario.Study)
	require.NoError(t, err)
	return &testutil.StubSampler{Centers: truth}
}

func TestRunRaschScenario(t *testing.T) {
	scenario := loadTestScenario(t, "rasch_recovery_smoke")

	result, err := Run(scenario, stubForScenario(t, scenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Checks, len(scenario.Assertions))
	assert.NotEmpty(t, result.RunID)
	assert.NotEmpty(t, result.DataHash)

	require.NotNil(t, result.Diagnostics)
	assert.True(t, result.Diagnostics.Pass())
	require.NotNil(t, result.Recovery)
	// 20 difficulties, 2 regression coefficients, sigma.
	assert.Equal(t, 23, result.Recovery.Total)
	assert.True(t, result.Recovery.CoverageAtLeast(0.9))
}

func TestRunBundledRaschStudy(t *testing.T) {
	// The bundled 20-item, 500-person study with production-sized controls.
	scenario, err := LoadScenario(filepath.Join("..", "..", "scenarios", "rasch_latent_reg.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario, stubForScenario(t, scenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.NotNil(t, result.Recovery)
	assert.Equal(t, 23, result.Recovery.Total)
	assert.True(t, result.Recovery.CoverageAtLeast(0.9))
}

func TestRunBundledGPCMStudy(t *testing.T) {
	// The bundled 20-item, 500-person mixed-format study: 56 step
	// difficulties across items with 2 to 4 categories.
	scenario, err := LoadScenario(filepath.Join("..", "..", "scenarios", "gpcm_latent_reg.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario, stubForScenario(t, scenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.NotNil(t, result.Recovery)
	// 20 discriminations, 56 step difficulties, 2 coefficients, sigma.
	assert.Equal(t, 79, result.Recovery.Total)
	assert.True(t, result.Recovery.CoverageAtLeast(0.9))
}

func TestRunGPCMScenario(t *testing.T) {
	scenario := loadTestScenario(t, "gpcm_recovery_smoke")

	result, err := Run(scenario, stubForScenario(t, scenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.NotNil(t, result.Recovery)
	// 6 discriminations, 15 step difficulties, 2 coefficients, sigma.
	assert.Equal(t, 24, result.Recovery.Total)
}

func TestRunGLMMScenario(t *testing.T) {
	scenario := loadTestScenario(t, "poisson_glmm_missing")

	result, err := Run(scenario, stubForScenario(t, scenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.NotNil(t, result.Recovery)
	// grand mean, 8 site effects, 6 year effects, two scales.
	assert.Equal(t, 17, result.Recovery.Total)
}

func TestRunDeterministicDataHash(t *testing.T) {
	scenario := loadTestScenario(t, "rasch_recovery_smoke")
	stub := stubForScenario(t, scenario)

	a, err := Run(scenario, stub)
	require.NoError(t, err)
	b, err := Run(scenario, stub)
	require.NoError(t, err)

	assert.Equal(t, a.DataHash, b.DataHash)
	assert.NotEqual(t, a.RunID, b.RunID, "each execution records a fresh run")
}

func TestRunSamplerError(t *testing.T) {
	scenario := loadTestScenario(t, "rasch_recovery_smoke")
	boom := errors.New("boom")

	_, err := Run(scenario, &testutil.StubSampler{Centers: model.Truth{"x": 0}, Err: boom})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRunFamilyMismatch(t *testing.T) {
	scenario := loadTestScenario(t, "rasch_recovery_smoke")
	scenario.Study.Family = "gpcm"

	_, err := Run(scenario, stubForScenario(t, loadTestScenario(t, "rasch_recovery_smoke")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestRunFailedAssertionIsNotAnError(t *testing.T) {
	scenario := loadTestScenario(t, "rasch_recovery_smoke")

	// A sampler centered away from the generating values still produces a
	// result; the coverage assertion fails rather than erroring.
	stub := stubForScenario(t, scenario)
	for name := range stub.Centers {
		stub.Centers[name] += 1.0
	}

	result, err := Run(scenario, stub)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.NotEmpty(t, result.Errors)

	failed := map[string]bool{}
	for _, c := range result.Checks {
		if !c.OK {
			failed[c.Type] = true
		}
	}
	assert.True(t, failed[AssertCoverageAtLeast])
	// Shifting every center moves the constrained vector off zero too.
	assert.True(t, failed[AssertZeroSum])
}

func TestStudyDesign(t *testing.T) {
	design := studyDesign(4, 2)

	rows, cols := design.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 2, cols)
	for p := 0; p < rows; p++ {
		assert.Equal(t, 1.0, design.At(p, 0))
	}
	assert.Equal(t, 0.5, design.At(0, 1))
	assert.Equal(t, -0.5, design.At(1, 1))
}

func TestMaterialize(t *testing.T) {
	scenario := loadTestScenario(t, "rasch_recovery_smoke")

	spec, payload, truth, err := Materialize(scenario)
	require.NoError(t, err)
	assert.Equal(t, "rasch_latent_reg", spec.Name)
	assert.NotEmpty(t, truth)

	// The materialized payload is the same dataset a full run fits.
	result, err := Run(scenario, stubForScenario(t, scenario))
	require.NoError(t, err)
	assert.Equal(t, result.DataHash, ir.MustDataHash(payload))
}

func TestCompileModelFileMissingModel(t *testing.T) {
	_, err := CompileModelFile(filepath.Join("..", "..", "models", "rasch_latent_reg.cue"), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model")
}
