package diagnose

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/jeff-regier/example-models/internal/engine"
)

// DefaultThreshold is the conventional split-Rhat cutoff.
const DefaultThreshold = 1.1

// Policy decides when a parameter's Rhat counts as a convergence failure.
type Policy struct {
	// Threshold flags parameters with Rhat >= Threshold. Must exceed 1.
	Threshold float64
}

// DefaultPolicy returns the conventional 1.1 policy.
func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold}
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	if !(p.Threshold > 1) {
		return fmt.Errorf("rhat threshold must exceed 1, got %g", p.Threshold)
	}
	return nil
}

// ParamDiagnostic is one parameter's convergence verdict.
type ParamDiagnostic struct {
	Name string  `json:"name"`
	Rhat float64 `json:"rhat"`
	OK   bool    `json:"ok"`
}

// Report is the convergence verdict for a whole fit.
type Report struct {
	Threshold float64           `json:"threshold"`
	Params    []ParamDiagnostic `json:"params"`
	Failed    []string          `json:"failed,omitempty"`
	WorstName string            `json:"worst_name"`
	WorstRhat float64           `json:"worst_rhat"`
}

// Pass reports whether every parameter converged under the policy.
func (r *Report) Pass() bool { return len(r.Failed) == 0 }

// Check computes split-Rhat for every parameter in the draw set and applies
// the policy. Parameters iterate in sorted order so reports are stable.
func Check(draws *engine.DrawSet, policy Policy) (*Report, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if draws.NumChains() < 2 {
		return nil, fmt.Errorf("convergence check needs at least 2 chains, got %d", draws.NumChains())
	}

	report := &Report{Threshold: policy.Threshold, WorstRhat: math.Inf(-1)}
	for _, name := range draws.SortedParams() {
		chains := make([][]float64, draws.NumChains())
		for c := range chains {
			var err error
			chains[c], err = draws.Chain(c, name)
			if err != nil {
				return nil, err
			}
		}
		rhat, err := SplitRhat(chains)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}

		ok := rhat < policy.Threshold
		report.Params = append(report.Params, ParamDiagnostic{Name: name, Rhat: rhat, OK: ok})
		if !ok {
			report.Failed = append(report.Failed, name)
		}
		if rhat > report.WorstRhat {
			report.WorstRhat = rhat
			report.WorstName = name
		}
	}

	if report.Pass() {
		slog.Debug("convergence check passed",
			"parameters", len(report.Params),
			"worst", report.WorstName,
			"worst_rhat", report.WorstRhat)
	} else {
		slog.Warn("convergence check failed",
			"failed", len(report.Failed),
			"threshold", policy.Threshold,
			"worst", report.WorstName,
			"worst_rhat", report.WorstRhat)
	}
	return report, nil
}
