package diagnose

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/jeff-regier/example-models/internal/engine"
)

// ParamSummary condenses one parameter's merged posterior draws.
type ParamSummary struct {
	Name   string  `json:"name"`
	Mean   float64 `json:"mean"`
	SD     float64 `json:"sd"`
	Q2_5   float64 `json:"q2_5"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Q97_5  float64 `json:"q97_5"`
}

// Summarize computes posterior means, standard deviations, and the standard
// quantile ladder for every parameter, merging draws across chains.
// Parameters iterate in sorted order.
func Summarize(draws *engine.DrawSet) ([]ParamSummary, error) {
	var out []ParamSummary
	for _, name := range draws.SortedParams() {
		merged, err := draws.Merged(name)
		if err != nil {
			return nil, err
		}
		out = append(out, summarizeDraws(name, merged))
	}
	return out, nil
}

func summarizeDraws(name string, draws []float64) ParamSummary {
	sorted := append([]float64(nil), draws...)
	sort.Float64s(sorted)

	mean, sd := stat.MeanStdDev(draws, nil)
	q := func(p float64) float64 {
		return stat.Quantile(p, stat.Empirical, sorted, nil)
	}
	return ParamSummary{
		Name:   name,
		Mean:   mean,
		SD:     sd,
		Q2_5:   q(0.025),
		Q25:    q(0.25),
		Median: q(0.5),
		Q75:    q(0.75),
		Q97_5:  q(0.975),
	}
}
