package engine

import (
	"fmt"
	"sort"
)

// DrawSet holds posterior draws from one fit: the same parameter columns
// across every chain. Parameter names are flattened Stan-style ("beta[3]",
// "sigma"); sampler bookkeeping columns (trailing "__") are excluded.
type DrawSet struct {
	params []string
	index  map[string]int
	chains [][][]float64 // chain -> draw -> column
}

// NewDrawSet creates an empty draw set with the given parameter columns.
func NewDrawSet(params []string) *DrawSet {
	index := make(map[string]int, len(params))
	for i, p := range params {
		index[p] = i
	}
	return &DrawSet{
		params: append([]string(nil), params...),
		index:  index,
	}
}

// AddChain appends one chain of draws. Every draw row must have one value
// per parameter column, and every chain must have the same number of draws
// as the first.
func (d *DrawSet) AddChain(draws [][]float64) error {
	if len(draws) == 0 {
		return fmt.Errorf("chain has no draws")
	}
	for i, row := range draws {
		if len(row) != len(d.params) {
			return fmt.Errorf("draw %d has %d values, want %d parameters", i, len(row), len(d.params))
		}
	}
	if len(d.chains) > 0 && len(draws) != len(d.chains[0]) {
		return fmt.Errorf("chain has %d draws, previous chains have %d", len(draws), len(d.chains[0]))
	}
	d.chains = append(d.chains, draws)
	return nil
}

// NumChains returns the number of chains.
func (d *DrawSet) NumChains() int { return len(d.chains) }

// NumDraws returns the post-warmup draws per chain.
func (d *DrawSet) NumDraws() int {
	if len(d.chains) == 0 {
		return 0
	}
	return len(d.chains[0])
}

// Params returns the parameter names in column order.
func (d *DrawSet) Params() []string {
	return append([]string(nil), d.params...)
}

// Has reports whether the draw set has a column for the parameter.
func (d *DrawSet) Has(param string) bool {
	_, ok := d.index[param]
	return ok
}

// Chain extracts one parameter's draws from one chain.
func (d *DrawSet) Chain(chain int, param string) ([]float64, error) {
	if chain < 0 || chain >= len(d.chains) {
		return nil, fmt.Errorf("chain %d outside 0..%d", chain, len(d.chains)-1)
	}
	col, ok := d.index[param]
	if !ok {
		return nil, fmt.Errorf("unknown parameter %q", param)
	}
	out := make([]float64, len(d.chains[chain]))
	for i, row := range d.chains[chain] {
		out[i] = row[col]
	}
	return out, nil
}

// Merged concatenates one parameter's draws across all chains, in chain
// order.
func (d *DrawSet) Merged(param string) ([]float64, error) {
	col, ok := d.index[param]
	if !ok {
		return nil, fmt.Errorf("unknown parameter %q", param)
	}
	out := make([]float64, 0, d.NumChains()*d.NumDraws())
	for _, chain := range d.chains {
		for _, row := range chain {
			out = append(out, row[col])
		}
	}
	return out, nil
}

// SortedParams returns parameter names sorted lexically, for stable report
// iteration.
func (d *DrawSet) SortedParams() []string {
	out := d.Params()
	sort.Strings(out)
	return out
}
