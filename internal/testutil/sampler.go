// Package testutil provides test doubles for the fit pipeline, chiefly a
// stub sampler that produces draws without launching subprocesses.
package testutil

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jeff-regier/example-models/internal/engine"
	"github.com/jeff-regier/example-models/internal/ir"
	"github.com/jeff-regier/example-models/internal/model"
)

// StubSampler fabricates posterior draws centered on known values, one
// independent normal per parameter. It stands in for the external sampler
// in tests: the pipeline around it (payload hashing, diagnostics,
// summaries, recovery, storage) behaves exactly as with a real fit.
//
// Draws are deterministic given Controls.Seed. With Noise at its default,
// chains are well mixed and every truth lands inside its 95% interval with
// overwhelming probability.
type StubSampler struct {
	// Centers maps flattened parameter names to the draw centers,
	// typically the generating values.
	Centers model.Truth

	// Noise is the draw standard deviation around each center.
	// Zero means 0.01.
	Noise float64

	// Err, when set, is returned from Sample immediately.
	Err error

	// Calls counts Sample invocations.
	Calls int
}

// Sample implements engine.Sampler.
func (s *StubSampler) Sample(ctx context.Context, spec *ir.ModelSpec, payload ir.DataPayload, controls engine.Controls) (*engine.DrawSet, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := controls.Validate(); err != nil {
		return nil, err
	}
	if len(s.Centers) == 0 {
		return nil, fmt.Errorf("stub sampler has no centers configured")
	}

	noise := s.Noise
	if noise == 0 {
		noise = 0.01
	}

	params := make([]string, 0, len(s.Centers))
	for name := range s.Centers {
		params = append(params, name)
	}
	sort.Strings(params)

	set := engine.NewDrawSet(params)
	for chain := 0; chain < controls.Chains; chain++ {
		rng := rand.New(rand.NewSource(controls.Seed + uint64(chain)))
		rows := make([][]float64, controls.IterSampling)
		for i := range rows {
			row := make([]float64, len(params))
			for j, name := range params {
				row[j] = distuv.Normal{Mu: s.Centers[name], Sigma: noise, Src: rng}.Rand()
			}
			rows[i] = row
		}
		if err := set.AddChain(rows); err != nil {
			return nil, err
		}
	}
	return set, nil
}
