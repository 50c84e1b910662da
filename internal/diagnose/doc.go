// Package diagnose checks convergence of posterior draws and computes
// posterior summaries.
//
// The only convergence statistic here is the split potential scale reduction
// factor (split-Rhat): each chain is halved, and the between-half variance is
// compared against the within-half variance. Values near 1 indicate the
// chains agree; a fit is flagged when any parameter's Rhat reaches the
// policy threshold. The conventional threshold is 1.1, but it is a reporting
// policy, not a constant of nature, so Policy carries it explicitly.
package diagnose
