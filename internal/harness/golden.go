package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/jeff-regier/example-models/internal/engine"
	"github.com/jeff-regier/example-models/internal/ir"
)

// ResultSnapshot is the golden-file view of a scenario run: the scenario
// identity and the assertion verdicts, serialized canonically. Run IDs,
// hashes, and floating-point report values are deliberately excluded so the
// snapshot is stable across sampler and platform changes.
type ResultSnapshot struct {
	ScenarioName string
	Model        string
	Family       string
	Pass         bool
	Checks       []CheckOutcome
}

// toCanonicalMap converts the snapshot for ir.MarshalCanonical.
func (s *ResultSnapshot) toCanonicalMap() map[string]any {
	checks := make([]any, len(s.Checks))
	for i, c := range s.Checks {
		checks[i] = map[string]any{
			"type": c.Type,
			"ok":   c.OK,
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"model":         s.Model,
		"family":        s.Family,
		"pass":          s.Pass,
		"checks":        checks,
	}
}

// RunWithGolden executes a scenario and compares the result snapshot
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, sampler engine.Sampler) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, sampler)
	if err != nil {
		return nil, err
	}

	snapshot := ResultSnapshot{
		ScenarioName: result.ScenarioName,
		Model:        scenario.ModelName,
		Family:       scenario.Study.Family,
		Pass:         result.Pass,
		Checks:       result.Checks,
	}
	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return result, nil
}
