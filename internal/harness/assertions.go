package harness

import (
	"fmt"
	"math"

	"github.com/jeff-regier/example-models/internal/diagnose"
	"github.com/jeff-regier/example-models/internal/engine"
	"github.com/jeff-regier/example-models/internal/ir"
	"github.com/jeff-regier/example-models/internal/model"
)

// simplexTol is the tolerance for probability vectors summing to one.
const simplexTol = 1e-9

// abilityGrid is the theta range the simplex assertions sweep. The extremes
// are far enough out to catch naive softmax overflow.
var abilityGrid = []float64{-50, -3, -1, 0, 1, 3, 50}

// evaluateAssertions runs every assertion and records the verdicts on the
// result in scenario order.
func evaluateAssertions(result *Result, scenario *Scenario, spec *ir.ModelSpec, art *studyArtifacts, draws *engine.DrawSet) {
	for _, a := range scenario.Assertions {
		var err error
		switch a.Type {
		case AssertZeroSum:
			err = assertZeroSum(draws, a)
		case AssertProbSimplex:
			err = assertProbSimplex(art)
		case AssertOutcomeRange:
			err = assertOutcomeRange(art)
		case AssertRhatBelow:
			err = assertRhatBelow(draws, a)
		case AssertCoverageAtLeast:
			err = assertCoverageAtLeast(result, a)
		case AssertReplayIdentical:
			err = assertReplayIdentical(result, scenario, spec)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		result.AddCheck(a.Type, err)
	}
}

// assertZeroSum checks that the posterior means of the vector's elements
// sum to approximately zero, the posterior image of the sum-to-zero
// identification constraint.
func assertZeroSum(draws *engine.DrawSet, a Assertion) error {
	tol := a.Tol
	if tol == 0 {
		tol = 0.05
	}

	var sum float64
	n := 0
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s[%d]", a.Param, i)
		if !draws.Has(name) {
			break
		}
		merged, err := draws.Merged(name)
		if err != nil {
			return err
		}
		var m float64
		for _, v := range merged {
			m += v
		}
		sum += m / float64(len(merged))
		n++
	}
	if n == 0 {
		return fmt.Errorf("zero_sum: draws have no columns for %q", a.Param)
	}
	if math.Abs(sum) > tol {
		return fmt.Errorf("zero_sum: posterior means of %s[1..%d] sum to %g, tolerance %g", a.Param, n, sum, tol)
	}
	return nil
}

// assertProbSimplex sweeps the generating response probabilities over the
// ability grid and checks each vector is a simplex.
func assertProbSimplex(art *studyArtifacts) error {
	if art.simplex == nil {
		return fmt.Errorf("prob_simplex: family %q has no category probabilities", art.spec.Family)
	}
	return art.simplex()
}

// checkRaschProbs validates the Rasch response probability over the grid:
// P(y=1) in (0, 1) and the two-category vector a simplex.
func checkRaschProbs(p *model.RaschParams) error {
	for _, theta := range abilityGrid {
		for i, b := range p.Difficulty {
			prob := model.RaschProb(theta, b)
			if err := model.CheckSimplex([]float64{1 - prob, prob}, simplexTol); err != nil {
				return fmt.Errorf("item %d, theta %g: %w", i+1, theta, err)
			}
		}
	}
	return nil
}

// checkGPCMProbs validates the category probabilities of every item over
// the grid. The per-item steps are sliced from the flattened vector the
// fitted model sees, so the allocation bookkeeping is checked alongside
// the probabilities.
func checkGPCMProbs(p *model.GPCMParams) error {
	flat, alloc := p.FlatSteps()
	for _, theta := range abilityGrid {
		for i, alpha := range p.Discrimination {
			steps, err := alloc.ItemSteps(flat, i)
			if err != nil {
				return fmt.Errorf("item %d: %w", i+1, err)
			}
			probs := model.GPCMCategoryProbs(theta, alpha, steps)
			if err := model.CheckSimplex(probs, simplexTol); err != nil {
				return fmt.Errorf("item %d, theta %g: %w", i+1, theta, err)
			}
		}
	}
	return nil
}

// assertOutcomeRange checks every simulated outcome against its cap.
func assertOutcomeRange(art *studyArtifacts) error {
	for i, y := range art.outcomes {
		if y < 0 {
			return fmt.Errorf("outcome_range: observation %d is negative: %d", i+1, y)
		}
		if hi := art.maxCat[i]; hi >= 0 && y > hi {
			return fmt.Errorf("outcome_range: observation %d is %d, cap %d", i+1, y, hi)
		}
	}
	return nil
}

// assertRhatBelow re-checks convergence under the assertion's own
// threshold, independent of the default policy used for the stored report.
func assertRhatBelow(draws *engine.DrawSet, a Assertion) error {
	report, err := diagnose.Check(draws, diagnose.Policy{Threshold: a.Value})
	if err != nil {
		return fmt.Errorf("rhat_below: %w", err)
	}
	if !report.Pass() {
		return fmt.Errorf("rhat_below: %d parameters at or above %g, worst %s = %g",
			len(report.Failed), a.Value, report.WorstName, report.WorstRhat)
	}
	return nil
}

// assertCoverageAtLeast checks the interval coverage floor.
func assertCoverageAtLeast(result *Result, a Assertion) error {
	if result.Recovery == nil {
		return fmt.Errorf("coverage_at_least: no recovery report")
	}
	if !result.Recovery.CoverageAtLeast(a.Value) {
		return fmt.Errorf("coverage_at_least: coverage %g below floor %g (%d of %d covered)",
			result.Recovery.Coverage, a.Value, result.Recovery.Covered, result.Recovery.Total)
	}
	return nil
}

// assertReplayIdentical re-runs the whole simulation from the study seed
// and compares payload hashes.
func assertReplayIdentical(result *Result, scenario *Scenario, spec *ir.ModelSpec) error {
	replay, err := simulateStudy(spec, scenario.Study)
	if err != nil {
		return fmt.Errorf("replay_identical: %w", err)
	}
	hash := ir.MustDataHash(replay.payload)
	if hash != result.DataHash {
		return fmt.Errorf("replay_identical: replayed payload hash %s differs from %s", hash, result.DataHash)
	}
	return nil
}
