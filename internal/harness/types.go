package harness

import (
	"github.com/jeff-regier/example-models/internal/diagnose"
	"github.com/jeff-regier/example-models/internal/recovery"
)

// CheckOutcome is one assertion's verdict, in scenario order.
type CheckOutcome struct {
	Type string `json:"type"`
	OK   bool   `json:"ok"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// ScenarioName echoes the scenario for report labelling.
	ScenarioName string `json:"scenario_name"`

	// RunID is the recorded fit's identifier in the scenario store.
	RunID string `json:"run_id"`

	// Pass indicates overall success: true when every assertion held.
	Pass bool `json:"pass"`

	// Checks holds one verdict per assertion, in scenario order.
	Checks []CheckOutcome `json:"checks"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// DataHash is the canonical hash of the simulated payload, used by
	// replay assertions and recorded with the run.
	DataHash string `json:"data_hash"`

	// Diagnostics and Recovery are the full reports for inspection beyond
	// the pass/fail verdicts.
	Diagnostics *diagnose.Report `json:"diagnostics,omitempty"`
	Recovery    *recovery.Report `json:"recovery,omitempty"`
}

// NewResult creates a passing result for the scenario.
func NewResult(name string) *Result {
	return &Result{ScenarioName: name, Pass: true}
}

// AddCheck records an assertion verdict; a failure message marks the whole
// result failed.
func (r *Result) AddCheck(typ string, err error) {
	ok := err == nil
	r.Checks = append(r.Checks, CheckOutcome{Type: typ, OK: ok})
	if !ok {
		r.Errors = append(r.Errors, err.Error())
		r.Pass = false
	}
}
