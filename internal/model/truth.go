package model

import "fmt"

// Truth maps flattened parameter names (Stan-style, e.g. "beta[3]") to their
// generating values. The recovery evaluator compares posterior draws against
// these entries name by name, so the names here must match the parameter
// names the bundled model documents declare.
type Truth map[string]float64

// Canonical parameter names used by the bundled model documents.
const (
	ParamDifficulty     = "beta"
	ParamDiscrimination = "alpha"
	ParamLambda         = "lambda"
	ParamSigma          = "sigma"
	ParamGrandMean      = "mu"
	ParamSiteEffect     = "site_eff"
	ParamYearEffect     = "year_eff"
	ParamSigmaSite      = "sigma_site"
	ParamSigmaYear      = "sigma_year"
)

func indexed(name string, i int) string { return fmt.Sprintf("%s[%d]", name, i+1) }

func addVector(t Truth, name string, v []float64) {
	for i, x := range v {
		t[indexed(name, i)] = x
	}
}

// Truth returns the flattened generating values of the Rasch parameters.
func (p *RaschParams) Truth() Truth {
	t := Truth{ParamSigma: p.Sigma}
	addVector(t, ParamDifficulty, p.Difficulty)
	addVector(t, ParamLambda, p.Lambda)
	return t
}

// Truth returns the flattened generating values of the GPCM parameters.
// Step difficulties flatten in item order, matching FlatSteps.
func (p *GPCMParams) Truth() Truth {
	t := Truth{ParamSigma: p.Sigma}
	addVector(t, ParamDiscrimination, p.Discrimination)
	flat, _ := p.FlatSteps()
	addVector(t, ParamDifficulty, flat)
	addVector(t, ParamLambda, p.Lambda)
	return t
}

// Truth returns the flattened generating values of the GLMM parameters.
func (p *GLMMParams) Truth() Truth {
	t := Truth{
		ParamGrandMean: p.GrandMean,
		ParamSigmaSite: p.SigmaSite,
		ParamSigmaYear: p.SigmaYear,
	}
	addVector(t, ParamSiteEffect, p.SiteEffect)
	addVector(t, ParamYearEffect, p.YearEffect)
	return t
}
