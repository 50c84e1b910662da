package model

import (
	"fmt"
	"math"
)

// GLMMParams are the generating (or fitted) values of the Poisson GLMM on a
// site-by-year grid: log rate = grand mean + site effect + year effect, with
// both effect vectors drawn from zero-mean normals.
type GLMMParams struct {
	GrandMean  float64
	SiteEffect []float64
	YearEffect []float64
	SigmaSite  float64
	SigmaYear  float64
}

// Validate checks the scale parameters.
func (p *GLMMParams) Validate() error {
	if !(p.SigmaSite > 0) {
		return fmt.Errorf("sigma_site must be positive, got %g", p.SigmaSite)
	}
	if !(p.SigmaYear > 0) {
		return fmt.Errorf("sigma_year must be positive, got %g", p.SigmaYear)
	}
	if len(p.SiteEffect) == 0 || len(p.YearEffect) == 0 {
		return fmt.Errorf("need at least one site and one year effect")
	}
	return nil
}

// GLMMLogRate is the single implementation of the GLMM linear predictor.
// Indices are 1-based.
func GLMMLogRate(p *GLMMParams, site, year int64) (float64, error) {
	if site < 1 || site > int64(len(p.SiteEffect)) {
		return 0, fmt.Errorf("site index %d outside 1..%d", site, len(p.SiteEffect))
	}
	if year < 1 || year > int64(len(p.YearEffect)) {
		return 0, fmt.Errorf("year index %d outside 1..%d", year, len(p.YearEffect))
	}
	return p.GrandMean + p.SiteEffect[site-1] + p.YearEffect[year-1], nil
}

// GenerateGLMMParams draws a generating parameter set: site and year effects
// from zero-mean normals with the given scales, around the given grand mean.
func GenerateGLMMParams(sites, years int, grandMean, sigmaSite, sigmaYear float64, seed uint64) (*GLMMParams, error) {
	if sites < 2 || years < 2 {
		return nil, fmt.Errorf("need at least 2 sites and 2 years, got %d and %d", sites, years)
	}
	rng := NewRNG(seed)
	p := &GLMMParams{
		GrandMean:  grandMean,
		SiteEffect: make([]float64, sites),
		YearEffect: make([]float64, years),
		SigmaSite:  sigmaSite,
		SigmaYear:  sigmaYear,
	}
	for i := range p.SiteEffect {
		p.SiteEffect[i] = drawNormal(rng, 0, sigmaSite)
	}
	for i := range p.YearEffect {
		p.YearEffect[i] = drawNormal(rng, 0, sigmaYear)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// SimulateGLMM draws one count per grid cell, then marks cells missing with
// the given probability. Cells are visited site-major so a fixed seed
// reproduces both the counts and the missingness pattern. The true counts
// of the missing cells are returned so posterior predictions can be scored
// against them.
func SimulateGLMM(p *GLMMParams, missingProb float64, seed uint64) (*CountDataset, []int64, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if missingProb < 0 || missingProb >= 1 {
		return nil, nil, fmt.Errorf("missing probability must be in [0, 1), got %g", missingProb)
	}
	sites := len(p.SiteEffect)
	years := len(p.YearEffect)

	rng := NewRNG(seed)
	ds := &CountDataset{Sites: sites, Years: years}
	var heldOut []int64

	for site := 1; site <= sites; site++ {
		for year := 1; year <= years; year++ {
			logRate, err := GLMMLogRate(p, int64(site), int64(year))
			if err != nil {
				return nil, nil, err
			}
			count := drawPoisson(rng, math.Exp(logRate))
			if rng.Float64() < missingProb {
				ds.MissingSiteIndex = append(ds.MissingSiteIndex, int64(site))
				ds.MissingYearIndex = append(ds.MissingYearIndex, int64(year))
				heldOut = append(heldOut, count)
				continue
			}
			ds.SiteIndex = append(ds.SiteIndex, int64(site))
			ds.YearIndex = append(ds.YearIndex, int64(year))
			ds.Count = append(ds.Count, count)
		}
	}
	if len(ds.Count) == 0 {
		return nil, nil, fmt.Errorf("every cell came out missing; lower the missing probability")
	}
	return ds, heldOut, nil
}
