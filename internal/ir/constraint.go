package ir

import "fmt"

// SumToZero expands a free parameter vector into its identified form: the
// returned vector has one more element than the input, the last element
// being the negated sum of the others. The model is otherwise invariant to
// a constant shift of these parameters, so the constraint pins the scale.
//
// Invariant: the output sums to zero exactly up to float rounding, for any
// input. The empty input is valid and yields [0].
func SumToZero(free []float64) []float64 {
	out := make([]float64, len(free)+1)
	var sum float64
	for i, v := range free {
		out[i] = v
		sum += v
	}
	out[len(free)] = -sum
	return out
}

// CheckSumToZero verifies that a constrained vector sums to zero within tol.
// Used when validating draws of identification-transformed parameters.
func CheckSumToZero(vec []float64, tol float64) error {
	var sum float64
	for _, v := range vec {
		sum += v
	}
	if sum > tol || sum < -tol {
		return fmt.Errorf("sum-to-zero constraint violated: sum = %g (tolerance %g)", sum, tol)
	}
	return nil
}
