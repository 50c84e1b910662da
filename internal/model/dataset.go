package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// IRTDataset is a long-format item response dataset: one row per observed
// (person, item) pair. Indices are 1-based, matching the convention of the
// declarative model documents.
type IRTDataset struct {
	ItemIndex   []int64
	PersonIndex []int64
	Response    []int64

	// Covariates is the person-level regression design, Persons rows by
	// K columns. The first column is the intercept.
	Covariates *mat.Dense

	Items   int
	Persons int
}

// Obs returns the number of observed responses.
func (d *IRTDataset) Obs() int { return len(d.Response) }

// CovariateCount returns the number of regression columns.
func (d *IRTDataset) CovariateCount() int {
	if d.Covariates == nil {
		return 0
	}
	_, k := d.Covariates.Dims()
	return k
}

// Validate checks index ranges and dimension agreement. Simulated data
// always passes; loaded data may not.
func (d *IRTDataset) Validate() error {
	n := len(d.Response)
	if len(d.ItemIndex) != n || len(d.PersonIndex) != n {
		return fmt.Errorf("index vectors have lengths %d and %d, responses %d",
			len(d.ItemIndex), len(d.PersonIndex), n)
	}
	if d.Covariates == nil {
		return fmt.Errorf("covariate matrix is required (use an intercept-only column for no regression)")
	}
	rows, _ := d.Covariates.Dims()
	if rows != d.Persons {
		return fmt.Errorf("covariate matrix has %d rows, want %d persons", rows, d.Persons)
	}
	for i := 0; i < n; i++ {
		if d.ItemIndex[i] < 1 || d.ItemIndex[i] > int64(d.Items) {
			return fmt.Errorf("observation %d: item index %d outside 1..%d", i, d.ItemIndex[i], d.Items)
		}
		if d.PersonIndex[i] < 1 || d.PersonIndex[i] > int64(d.Persons) {
			return fmt.Errorf("observation %d: person index %d outside 1..%d", i, d.PersonIndex[i], d.Persons)
		}
		if d.Response[i] < 0 {
			return fmt.Errorf("observation %d: negative response %d", i, d.Response[i])
		}
	}
	return nil
}

// RegressionMean computes the latent regression mean x_p . lambda for each
// person.
func (d *IRTDataset) RegressionMean(lambda []float64) ([]float64, error) {
	if d.Covariates == nil {
		return nil, fmt.Errorf("covariate matrix is required")
	}
	rows, cols := d.Covariates.Dims()
	if len(lambda) != cols {
		return nil, fmt.Errorf("lambda has %d coefficients, design has %d columns", len(lambda), cols)
	}
	mu := make([]float64, rows)
	lv := mat.NewVecDense(cols, lambda)
	for p := 0; p < rows; p++ {
		mu[p] = mat.Dot(d.Covariates.RowView(p), lv)
	}
	return mu, nil
}

// CountDataset holds grouped count data on a site-by-year grid. Observed
// cells carry a count; missing cells are listed separately so the model can
// predict them without contributing likelihood terms.
type CountDataset struct {
	SiteIndex []int64
	YearIndex []int64
	Count     []int64

	MissingSiteIndex []int64
	MissingYearIndex []int64

	Sites int
	Years int
}

// Obs returns the number of observed cells.
func (d *CountDataset) Obs() int { return len(d.Count) }

// Validate checks index ranges, dimension agreement, and that observed and
// missing cells do not overlap.
func (d *CountDataset) Validate() error {
	n := len(d.Count)
	if len(d.SiteIndex) != n || len(d.YearIndex) != n {
		return fmt.Errorf("index vectors have lengths %d and %d, counts %d",
			len(d.SiteIndex), len(d.YearIndex), n)
	}
	if len(d.MissingSiteIndex) != len(d.MissingYearIndex) {
		return fmt.Errorf("missing-cell index vectors have lengths %d and %d",
			len(d.MissingSiteIndex), len(d.MissingYearIndex))
	}
	seen := make(map[[2]int64]bool, n)
	check := func(kind string, i int, site, year int64) error {
		if site < 1 || site > int64(d.Sites) {
			return fmt.Errorf("%s cell %d: site index %d outside 1..%d", kind, i, site, d.Sites)
		}
		if year < 1 || year > int64(d.Years) {
			return fmt.Errorf("%s cell %d: year index %d outside 1..%d", kind, i, year, d.Years)
		}
		key := [2]int64{site, year}
		if seen[key] {
			return fmt.Errorf("%s cell %d: (site %d, year %d) appears more than once", kind, i, site, year)
		}
		seen[key] = true
		return nil
	}
	for i := 0; i < n; i++ {
		if err := check("observed", i, d.SiteIndex[i], d.YearIndex[i]); err != nil {
			return err
		}
		if d.Count[i] < 0 {
			return fmt.Errorf("observed cell %d: negative count %d", i, d.Count[i])
		}
	}
	for i := range d.MissingSiteIndex {
		if err := check("missing", i, d.MissingSiteIndex[i], d.MissingYearIndex[i]); err != nil {
			return err
		}
	}
	return nil
}
