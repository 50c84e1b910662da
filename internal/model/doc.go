// Package model implements the family math for the built-in case studies:
// the Rasch model with latent regression, the generalized partial credit
// model (GPCM) with latent regression, and the Poisson GLMM with missing
// cells.
//
// Each family provides exactly one implementation of its probability
// formula. The simulators draw synthetic data through that implementation
// and the recovery harness validates fits against it, so a discrepancy
// between "the model that generated the data" and "the model that was fit"
// cannot arise from duplicated formulas.
//
// Simulation is deterministic given a seed: all draws flow through a single
// seeded source, and iteration order is fixed (person-major for the IRT
// families, site-major for the GLMM).
package model
