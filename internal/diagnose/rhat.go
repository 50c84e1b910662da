package diagnose

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// SplitRhat computes the split potential scale reduction factor for one
// parameter. Each chain is split in half, giving 2m sub-chains of length
// n/2; the statistic is
//
//	sqrt(((n-1)/n * W + B/n) / W)
//
// with W the mean within-sub-chain variance and B the between-sub-chain
// variance scaled by the sub-chain length.
//
// Requires at least 2 chains of at least 4 draws each, so every sub-chain
// has a well-defined variance. Constant draws across all sub-chains give
// Rhat 1; constant within but differing between give +Inf.
func SplitRhat(chains [][]float64) (float64, error) {
	if len(chains) < 2 {
		return 0, fmt.Errorf("split-Rhat needs at least 2 chains, got %d", len(chains))
	}
	n := len(chains[0])
	for i, c := range chains {
		if len(c) != n {
			return 0, fmt.Errorf("chain %d has %d draws, chain 1 has %d", i+1, len(c), n)
		}
	}
	if n < 4 {
		return 0, fmt.Errorf("split-Rhat needs at least 4 draws per chain, got %d", n)
	}

	half := n / 2
	var subs [][]float64
	for _, c := range chains {
		// An odd draw is dropped from the middle.
		subs = append(subs, c[:half], c[len(c)-half:])
	}

	means := make([]float64, len(subs))
	vars := make([]float64, len(subs))
	for i, s := range subs {
		means[i] = stat.Mean(s, nil)
		vars[i] = stat.Variance(s, nil)
	}

	w := stat.Mean(vars, nil)
	b := float64(half) * stat.Variance(means, nil)

	if w == 0 {
		if b == 0 {
			return 1, nil
		}
		return math.Inf(1), nil
	}

	varPlus := float64(half-1)/float64(half)*w + b/float64(half)
	return math.Sqrt(varPlus / w), nil
}
