package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jeff-regier/example-models/internal/ir"
)

// zeroSumTol is the tolerance for the sum-to-zero identification checks on
// generating parameter vectors.
const zeroSumTol = 1e-9

// RaschParams are the generating (or fitted) values of the Rasch latent
// regression model. Difficulty carries the full constrained vector and must
// sum to zero; the intercept of the regression absorbs the overall location.
type RaschParams struct {
	Difficulty []float64 // one per item, sums to zero
	Lambda     []float64 // regression coefficients, intercept first
	Sigma      float64   // residual ability standard deviation
}

// Validate checks the identification constraint and positivity of sigma.
func (p *RaschParams) Validate() error {
	if err := ir.CheckSumToZero(p.Difficulty, zeroSumTol); err != nil {
		return fmt.Errorf("difficulty: %w", err)
	}
	if !(p.Sigma > 0) {
		return fmt.Errorf("sigma must be positive, got %g", p.Sigma)
	}
	if len(p.Lambda) == 0 {
		return fmt.Errorf("lambda must have at least the intercept coefficient")
	}
	return nil
}

// RaschProb is the single implementation of the Rasch response probability:
// P(y = 1 | theta, b) = logistic(theta - b).
func RaschProb(theta, difficulty float64) float64 {
	return logistic(theta - difficulty)
}

func logistic(x float64) float64 {
	// Evaluate on the negative branch to avoid overflow in exp.
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// GenerateRaschParams builds a generating parameter set for I items:
// difficulties linearly spaced over [-1.5, 1.5], the supplied regression
// coefficients, and residual sd sigma. The first I-1 difficulties are free;
// the last is derived by the sum-to-zero expansion, the same identification
// the fitted model applies.
func GenerateRaschParams(items int, lambda []float64, sigma float64) (*RaschParams, error) {
	if items < 2 {
		return nil, fmt.Errorf("need at least 2 items, got %d", items)
	}
	free := Linspace(-1.5, 1.5, items)[:items-1]
	p := &RaschParams{
		Difficulty: ir.SumToZero(free),
		Lambda:     append([]float64(nil), lambda...),
		Sigma:      sigma,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// SimulateRasch draws a complete response matrix for the given design:
// theta_p ~ Normal(x_p . lambda, sigma), then y_{pi} ~ Bernoulli(RaschProb).
// Every person answers every item; rows are emitted person-major so a fixed
// seed reproduces the dataset bit for bit. The drawn abilities are returned
// alongside the dataset for recovery checks.
func SimulateRasch(p *RaschParams, covariates *mat.Dense, seed uint64) (*IRTDataset, []float64, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if covariates == nil {
		return nil, nil, fmt.Errorf("covariate matrix is required")
	}
	persons, k := covariates.Dims()
	if k != len(p.Lambda) {
		return nil, nil, fmt.Errorf("design has %d columns, lambda has %d coefficients", k, len(p.Lambda))
	}
	items := len(p.Difficulty)

	rng := NewRNG(seed)
	lv := mat.NewVecDense(k, p.Lambda)

	theta := make([]float64, persons)
	ds := &IRTDataset{
		ItemIndex:   make([]int64, 0, persons*items),
		PersonIndex: make([]int64, 0, persons*items),
		Response:    make([]int64, 0, persons*items),
		Covariates:  covariates,
		Items:       items,
		Persons:     persons,
	}

	for person := 0; person < persons; person++ {
		mu := mat.Dot(covariates.RowView(person), lv)
		theta[person] = drawNormal(rng, mu, p.Sigma)
		for item := 0; item < items; item++ {
			prob := RaschProb(theta[person], p.Difficulty[item])
			var y int64
			if rng.Float64() < prob {
				y = 1
			}
			ds.PersonIndex = append(ds.PersonIndex, int64(person+1))
			ds.ItemIndex = append(ds.ItemIndex, int64(item+1))
			ds.Response = append(ds.Response, y)
		}
	}
	return ds, theta, nil
}
