// Package engine runs inference by delegating to an external Bayesian
// sampler. The sampler is a black box: this package never implements MCMC,
// gradients, or adaptation, and never inspects the sampler's internals.
//
// ARCHITECTURE:
//
// One Process Per Chain:
// Each chain runs as a separate sampler subprocess. Chain processes are the
// only parallelism in a fit; everything else (data marshalling, CSV parsing,
// diagnostics) is single-threaded and deterministic.
//
// Fit Flow:
// 1. The data payload is marshalled to canonical JSON and written to disk.
// 2. One subprocess is launched per chain with a chain-specific seed offset.
// 3. Each subprocess writes draws as CSV; the runner parses them into a
//    DrawSet keyed by flattened parameter names ("beta[1]", "sigma").
// 4. Downstream packages compute diagnostics and summaries from the DrawSet.
//
// The runner trusts the sampler for correctness of the draws and reports
// subprocess failures verbatim via SamplerError.
package engine
