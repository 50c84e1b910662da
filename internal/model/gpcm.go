package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jeff-regier/example-models/internal/ir"
)

// GPCMParams are the generating (or fitted) values of the generalized
// partial credit model with latent regression. Steps holds one step
// difficulty vector per item; the concatenation of all step vectors must
// sum to zero, mirroring the constraint the fitted model imposes on the
// flattened step parameter.
type GPCMParams struct {
	Discrimination []float64   // one per item, positive
	Steps          [][]float64 // per-item step difficulties
	Lambda         []float64   // regression coefficients, intercept first
	Sigma          float64     // residual ability standard deviation
}

// Validate checks positivity, dimension agreement, and the identification
// constraint on the concatenated steps.
func (p *GPCMParams) Validate() error {
	if len(p.Discrimination) != len(p.Steps) {
		return fmt.Errorf("have %d discriminations and %d step vectors", len(p.Discrimination), len(p.Steps))
	}
	var flat []float64
	for i, alpha := range p.Discrimination {
		if !(alpha > 0) {
			return fmt.Errorf("item %d: discrimination must be positive, got %g", i+1, alpha)
		}
		if len(p.Steps[i]) == 0 {
			return fmt.Errorf("item %d: needs at least one step difficulty", i+1)
		}
		flat = append(flat, p.Steps[i]...)
	}
	if err := ir.CheckSumToZero(flat, zeroSumTol); err != nil {
		return fmt.Errorf("concatenated step difficulties: %w", err)
	}
	if !(p.Sigma > 0) {
		return fmt.Errorf("sigma must be positive, got %g", p.Sigma)
	}
	if len(p.Lambda) == 0 {
		return fmt.Errorf("lambda must have at least the intercept coefficient")
	}
	return nil
}

// MaxCategory returns the highest response category of item i (0-based).
func (p *GPCMParams) MaxCategory(i int) int { return len(p.Steps[i]) }

// GPCMCategoryProbs is the single implementation of the partial credit
// response probabilities. For item steps beta_1..beta_S the unnormalized
// log-weight of category s is the partial sum
//
//	sum_{k=1..s} alpha*(theta - beta_k)
//
// with category 0 the reference (empty sum). The softmax over these
// partial sums yields the category probabilities. The max partial sum is
// subtracted before exponentiating so large abilities cannot overflow.
func GPCMCategoryProbs(theta, alpha float64, steps []float64) []float64 {
	logw := make([]float64, len(steps)+1)
	var cum float64
	maxw := 0.0 // category 0 has log-weight 0
	for k, beta := range steps {
		cum += alpha * (theta - beta)
		logw[k+1] = cum
		if cum > maxw {
			maxw = cum
		}
	}
	var total float64
	probs := make([]float64, len(logw))
	for k, w := range logw {
		probs[k] = math.Exp(w - maxw)
		total += probs[k]
	}
	for k := range probs {
		probs[k] /= total
	}
	return probs
}

// GenerateGPCMParams builds a generating parameter set for I items with the
// given per-item category counts (maxCategory[i] >= 1 steps for item i).
// Discriminations cycle through {0.8, 1.0, 1.2}; step difficulties are
// linearly spaced over [-1.5, 1.5] within each item and recentred jointly
// so the concatenation sums to zero.
func GenerateGPCMParams(maxCategory []int, lambda []float64, sigma float64) (*GPCMParams, error) {
	if len(maxCategory) < 2 {
		return nil, fmt.Errorf("need at least 2 items, got %d", len(maxCategory))
	}
	steps := make([][]float64, len(maxCategory))
	var flat []float64
	for i, s := range maxCategory {
		if s < 1 {
			return nil, fmt.Errorf("item %d: max category must be at least 1, got %d", i+1, s)
		}
		steps[i] = Linspace(-1.5, 1.5, s)
		flat = append(flat, steps[i]...)
	}
	// Joint recentring preserves within-item spacing.
	Recenter(flat)
	off := 0
	for i := range steps {
		copy(steps[i], flat[off:off+len(steps[i])])
		off += len(steps[i])
	}
	p := &GPCMParams{
		Discrimination: CycleDiscriminations(len(maxCategory), nil),
		Steps:          steps,
		Lambda:         append([]float64(nil), lambda...),
		Sigma:          sigma,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// FlatSteps concatenates the per-item step vectors and returns the matching
// allocation, which downstream code uses to slice fitted draws back into
// per-item vectors.
func (p *GPCMParams) FlatSteps() ([]float64, *ir.StepAllocation) {
	alloc := &ir.StepAllocation{
		Steps:  make([]int, len(p.Steps)),
		Offset: make([]int, len(p.Steps)+1),
	}
	var flat []float64
	for i, s := range p.Steps {
		alloc.Steps[i] = len(s)
		alloc.Offset[i+1] = alloc.Offset[i] + len(s)
		flat = append(flat, s...)
	}
	alloc.Total = len(flat)
	return flat, alloc
}

// SimulateGPCM draws a complete response matrix:
// theta_p ~ Normal(x_p . lambda, sigma), then y_{pi} categorical over
// GPCMCategoryProbs. Rows are emitted person-major; the drawn abilities are
// returned for recovery checks.
func SimulateGPCM(p *GPCMParams, covariates *mat.Dense, seed uint64) (*IRTDataset, []float64, error) {
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
	items := len(p.Discrimination)

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
			probs := GPCMCategoryProbs(theta[person], p.Discrimination[item], p.Steps[item])
			y, err := drawCategorical(rng, probs)
			if err != nil {
				return nil, nil, fmt.Errorf("item %d, person %d: %w", item+1, person+1, err)
			}
			ds.PersonIndex = append(ds.PersonIndex, int64(person+1))
			ds.ItemIndex = append(ds.ItemIndex, int64(item+1))
			ds.Response = append(ds.Response, y)
		}
	}
	return ds, theta, nil
}
