package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jeff-regier/example-models/internal/ir"
)

// Scenario defines one recovery study: a model document, the generating
// configuration for the simulated dataset, sampling controls, and the
// assertions to evaluate against the finished fit.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the path to the CUE model document, relative to the
	// scenario file location.
	Model string `yaml:"model"`

	// ModelName is the label of the model inside the document's top-level
	// model: block.
	ModelName string `yaml:"model_name"`

	// Study configures the parameter generator and the data simulator.
	Study Study `yaml:"study"`

	// Controls override the test-sized sampling defaults (2 chains of
	// 200 draws, seed 1). Zero fields keep the defaults.
	Controls ControlsSpec `yaml:"controls,omitempty"`

	// Assertions validate the finished run.
	Assertions []Assertion `yaml:"assertions"`
}

// Study is the generating configuration of a simulated dataset. Which
// fields apply depends on the family; validateScenario enforces the split.
type Study struct {
	Family string `yaml:"family"`
	Seed   uint64 `yaml:"seed"`

	// IRT families.
	Items         int       `yaml:"items,omitempty"`
	Persons       int       `yaml:"persons,omitempty"`
	Lambda        []float64 `yaml:"lambda,omitempty"`
	Sigma         float64   `yaml:"sigma,omitempty"`
	MaxCategories []int     `yaml:"max_categories,omitempty"` // gpcm: one per item

	// Poisson GLMM.
	Sites       int     `yaml:"sites,omitempty"`
	Years       int     `yaml:"years,omitempty"`
	GrandMean   float64 `yaml:"grand_mean,omitempty"`
	SigmaSite   float64 `yaml:"sigma_site,omitempty"`
	SigmaYear   float64 `yaml:"sigma_year,omitempty"`
	MissingProb float64 `yaml:"missing_prob,omitempty"`
}

// ControlsSpec mirrors engine.Controls for YAML. Zero fields fall back to
// the harness defaults rather than the production four-chain configuration.
type ControlsSpec struct {
	Chains       int    `yaml:"chains,omitempty"`
	IterWarmup   int    `yaml:"iter_warmup,omitempty"`
	IterSampling int    `yaml:"iter_sampling,omitempty"`
	Seed         uint64 `yaml:"seed,omitempty"`
}

// Assertion validates one property of the finished run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "zero_sum": posterior means of param's elements sum to ~zero
	// - "prob_simplex": response probabilities from the generating
	//   parameters form simplexes over an ability grid
	// - "outcome_range": every simulated outcome is in the family's range
	// - "rhat_below": split-Rhat of every parameter is below value
	// - "coverage_at_least": interval coverage fraction reaches value
	// - "replay_identical": re-simulating with the same seed reproduces
	//   the data payload hash
	Type string `yaml:"type"`

	// Param is the constrained vector name (used by zero_sum).
	Param string `yaml:"param,omitempty"`

	// Value is the threshold or floor (used by rhat_below and
	// coverage_at_least).
	Value float64 `yaml:"value,omitempty"`

	// Tol is the zero_sum tolerance on the posterior mean sum.
	// Zero means 0.05.
	Tol float64 `yaml:"tol,omitempty"`
}

// Assertion type constants.
const (
	AssertZeroSum         = "zero_sum"
	AssertProbSimplex     = "prob_simplex"
	AssertOutcomeRange    = "outcome_range"
	AssertRhatBelow       = "rhat_below"
	AssertCoverageAtLeast = "coverage_at_least"
	AssertReplayIdentical = "replay_identical"
)

// LoadScenario reads and parses a scenario YAML file. The model path is
// resolved relative to the scenario file's directory. Returns an error if
// the file doesn't exist, is malformed, contains unknown fields (typos),
// or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Model != "" && !filepath.IsAbs(scenario.Model) {
		scenario.Model = filepath.Join(filepath.Dir(path), scenario.Model)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if s.ModelName == "" {
		return fmt.Errorf("model_name is required")
	}
	if _, err := os.Stat(s.Model); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.Model)
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if err := validateStudy(&s.Study); err != nil {
		return err
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStudy checks the family-specific generating configuration.
func validateStudy(st *Study) error {
	switch ir.Family(st.Family) {
	case ir.FamilyRasch:
		if st.Items < 2 {
			return fmt.Errorf("study: rasch needs items >= 2, got %d", st.Items)
		}
		return validateIRTCommon(st)
	case ir.FamilyGPCM:
		if len(st.MaxCategories) < 2 {
			return fmt.Errorf("study: gpcm needs max_categories with at least 2 items")
		}
		for i, c := range st.MaxCategories {
			if c < 1 {
				return fmt.Errorf("study: max_categories[%d] must be at least 1, got %d", i, c)
			}
		}
		return validateIRTCommon(st)
	case ir.FamilyPoissonGLMM:
		if st.Sites < 2 || st.Years < 2 {
			return fmt.Errorf("study: poisson_glmm needs sites >= 2 and years >= 2, got %d and %d", st.Sites, st.Years)
		}
		if !(st.SigmaSite > 0) || !(st.SigmaYear > 0) {
			return fmt.Errorf("study: sigma_site and sigma_year must be positive")
		}
		if st.MissingProb < 0 || st.MissingProb >= 1 {
			return fmt.Errorf("study: missing_prob must be in [0, 1), got %g", st.MissingProb)
		}
		return nil
	case "":
		return fmt.Errorf("study: family is required")
	default:
		return fmt.Errorf("study: unknown family %q", st.Family)
	}
}

func validateIRTCommon(st *Study) error {
	if st.Persons < 1 {
		return fmt.Errorf("study: persons must be at least 1, got %d", st.Persons)
	}
	if len(st.Lambda) == 0 {
		return fmt.Errorf("study: lambda must have at least the intercept coefficient")
	}
	if !(st.Sigma > 0) {
		return fmt.Errorf("study: sigma must be positive, got %g", st.Sigma)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertZeroSum:
		if a.Param == "" {
			return fmt.Errorf("assertions[%d]: param is required for zero_sum", index)
		}
	case AssertRhatBelow:
		if !(a.Value > 1) {
			return fmt.Errorf("assertions[%d]: value must exceed 1 for rhat_below", index)
		}
	case AssertCoverageAtLeast:
		if a.Value <= 0 || a.Value > 1 {
			return fmt.Errorf("assertions[%d]: value must be in (0, 1] for coverage_at_least", index)
		}
	case AssertProbSimplex, AssertOutcomeRange, AssertReplayIdentical:
		// No extra fields.
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
