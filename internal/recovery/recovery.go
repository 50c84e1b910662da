// Package recovery scores a fit against the generating values of a
// simulated dataset: posterior mean discrepancy and 95% central interval
// coverage, parameter by parameter.
//
// Recovery is a calibration check, not a hypothesis test. For a single fit
// the expectation is that roughly 95% of generating values land inside
// their intervals; a harness asserts a floor (e.g. at least 90% over a
// 20-item, 500-person study) rather than exact coverage.
package recovery

import (
	"fmt"
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/jeff-regier/example-models/internal/engine"
	"github.com/jeff-regier/example-models/internal/model"
)

// ParamRecovery is one parameter's recovery verdict.
type ParamRecovery struct {
	Name        string  `json:"name"`
	Truth       float64 `json:"truth"`
	Mean        float64 `json:"mean"`
	Discrepancy float64 `json:"discrepancy"` // posterior mean minus truth
	Lower       float64 `json:"lower"`       // 2.5% quantile
	Upper       float64 `json:"upper"`       // 97.5% quantile
	Covered     bool    `json:"covered"`
}

// Report aggregates recovery across all parameters with known truths.
type Report struct {
	Params   []ParamRecovery `json:"params"`
	Covered  int             `json:"covered"`
	Total    int             `json:"total"`
	Coverage float64         `json:"coverage"`
}

// CoverageAtLeast reports whether the interval coverage fraction reaches
// the floor.
func (r *Report) CoverageAtLeast(floor float64) bool {
	return r.Coverage >= floor
}

// Evaluate scores the draws against the generating values. Every truth
// entry must have a matching draw column; a missing column means the fit
// and the generator disagree about the model and is an error, not a miss.
// Parameters iterate in sorted name order.
func Evaluate(draws *engine.DrawSet, truth model.Truth) (*Report, error) {
	if len(truth) == 0 {
		return nil, fmt.Errorf("no generating values to score against")
	}

	names := make([]string, 0, len(truth))
	for name := range truth {
		if !draws.Has(name) {
			return nil, fmt.Errorf("draws have no column for parameter %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	report := &Report{Total: len(names)}
	for _, name := range names {
		merged, err := draws.Merged(name)
		if err != nil {
			return nil, err
		}
		sorted := append([]float64(nil), merged...)
		sort.Float64s(sorted)

		pr := ParamRecovery{
			Name:  name,
			Truth: truth[name],
			Mean:  stat.Mean(merged, nil),
			Lower: stat.Quantile(0.025, stat.Empirical, sorted, nil),
			Upper: stat.Quantile(0.975, stat.Empirical, sorted, nil),
		}
		pr.Discrepancy = pr.Mean - pr.Truth
		pr.Covered = pr.Truth >= pr.Lower && pr.Truth <= pr.Upper
		if pr.Covered {
			report.Covered++
		}
		report.Params = append(report.Params, pr)
	}
	report.Coverage = float64(report.Covered) / float64(report.Total)

	slog.Debug("recovery evaluated",
		"parameters", report.Total,
		"covered", report.Covered,
		"coverage", report.Coverage)
	return report, nil
}
