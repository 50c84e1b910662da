// Package store records fit outputs durably: run metadata, posterior
// draws, generating values, convergence diagnostics, posterior summaries,
// and recovery reports.
//
// The store is the on-disk record a fit leaves behind, playing the role the
// sampler's raw CSV files play in a one-off analysis: diagnose, summarize,
// and recover commands read a past run from here instead of re-fitting.
//
// Uses SQLite with WAL mode for concurrent read access. All writes are
// idempotent via ON CONFLICT DO NOTHING, so re-recording a run is safe.
package store
