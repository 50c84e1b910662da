package engine

import (
	"context"
	"fmt"

	"github.com/jeff-regier/example-models/internal/ir"
)

// Default sampling controls.
const (
	DefaultChains       = 4
	DefaultIterWarmup   = 1000
	DefaultIterSampling = 1000
)

// Controls are the standard knobs forwarded to the sampler. The zero value
// is not usable; start from DefaultControls.
type Controls struct {
	Chains       int
	IterWarmup   int
	IterSampling int
	Seed         uint64
}

// DefaultControls returns the conventional four-chain configuration.
func DefaultControls() Controls {
	return Controls{
		Chains:       DefaultChains,
		IterWarmup:   DefaultIterWarmup,
		IterSampling: DefaultIterSampling,
		Seed:         1,
	}
}

// Validate checks the controls before a fit is attempted.
func (c Controls) Validate() error {
	if c.Chains < 1 {
		return fmt.Errorf("chains must be at least 1, got %d", c.Chains)
	}
	if c.IterWarmup < 0 {
		return fmt.Errorf("warmup iterations must be non-negative, got %d", c.IterWarmup)
	}
	if c.IterSampling < 1 {
		return fmt.Errorf("sampling iterations must be at least 1, got %d", c.IterSampling)
	}
	return nil
}

// ControlOption adjusts sampling controls.
type ControlOption func(*Controls)

// WithChains sets the number of chains.
//
// Use WithChains(1) for smoke tests; convergence diagnostics need at
// least 2 chains to say anything useful.
func WithChains(n int) ControlOption {
	return func(c *Controls) { c.Chains = n }
}

// WithIterations sets warmup and sampling iteration counts.
func WithIterations(warmup, sampling int) ControlOption {
	return func(c *Controls) {
		c.IterWarmup = warmup
		c.IterSampling = sampling
	}
}

// WithSeed sets the sampler seed. Chain i receives Seed + i so chains are
// distinct but the whole fit replays from one number.
func WithSeed(seed uint64) ControlOption {
	return func(c *Controls) { c.Seed = seed }
}

// NewControls builds controls from the defaults plus options.
func NewControls(opts ...ControlOption) Controls {
	c := DefaultControls()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Sampler produces posterior draws for a compiled model and data payload.
// Implementations must respect context cancellation: a cancelled context
// kills any subprocesses and returns ctx.Err().
type Sampler interface {
	Sample(ctx context.Context, spec *ir.ModelSpec, payload ir.DataPayload, controls Controls) (*DrawSet, error)
}

// SamplerError reports a sampler subprocess failure.
type SamplerError struct {
	Chain    int
	ExitCode int
	Stderr   string
	Err      error
}

func (e *SamplerError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("sampler chain %d failed (exit %d): %s", e.Chain, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("sampler chain %d failed (exit %d): %v", e.Chain, e.ExitCode, e.Err)
}

func (e *SamplerError) Unwrap() error { return e.Err }
