package ir

// Version constants for the IR schema and the runner.
const (
	// IRVersion is the model IR schema version.
	IRVersion = "1"

	// RunnerVersion is the case-study runner version.
	RunnerVersion = "0.1.0"
)
