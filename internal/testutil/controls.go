package testutil

import "github.com/jeff-regier/example-models/internal/engine"

// WithSmallRun returns control options for a fast test fit: two chains of
// 200 draws, enough for split-Rhat and interval checks without slowing the
// suite down.
func WithSmallRun() []engine.ControlOption {
	return []engine.ControlOption{
		engine.WithChains(2),
		engine.WithIterations(0, 200),
		engine.WithSeed(1),
	}
}
