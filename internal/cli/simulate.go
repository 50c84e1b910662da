package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jeff-regier/example-models/internal/harness"
	"github.com/jeff-regier/example-models/internal/ir"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	OutDir string
}

// SimulationOutput summarizes a materialized scenario dataset.
type SimulationOutput struct {
	Model     string `json:"model"`
	Family    string `json:"family"`
	N         int64  `json:"n"`
	SpecHash  string `json:"spec_hash"`
	DataHash  string `json:"data_hash"`
	DataFile  string `json:"data_file,omitempty"`
	TruthFile string `json:"truth_file,omitempty"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Simulate a scenario's dataset from known generating values",
		Long: `Simulate a scenario's dataset without fitting it.

Compiles the scenario's model, draws generating values and a dataset from
the study seed, and writes the data payload (sampler input format) and the
generating values. The same seed always yields the same dataset and the
same data hash.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "directory for data.json and truth.json")

	return cmd
}

func runSimulate(opts *SimulateOptions, scenarioFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("loading scenario: %v", err))
	}

	formatter.VerboseLog("Materializing scenario %s (seed %d)", scenario.Name, scenario.Study.Seed)

	spec, payload, truth, err := harness.Materialize(scenario)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("simulating scenario: %v", err))
	}

	n, err := payload.Int("N")
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("reading payload: %v", err))
	}

	out := SimulationOutput{
		Model:    spec.Name,
		Family:   string(spec.Family),
		N:        n,
		SpecHash: ir.MustSpecHash(spec),
		DataHash: ir.MustDataHash(payload),
	}

	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("creating output directory: %v", err))
		}

		// Payload marshals in the sampler's input format with stable key order.
		dataPath := filepath.Join(opts.OutDir, "data.json")
		data, err := json.Marshal(payload)
		if err != nil {
			return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("marshaling payload: %v", err))
		}
		if err := os.WriteFile(dataPath, data, 0o644); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing %s: %v", dataPath, err))
		}

		truthPath := filepath.Join(opts.OutDir, "truth.json")
		truthData, err := json.MarshalIndent(truth, "", "  ")
		if err != nil {
			return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("marshaling generating values: %v", err))
		}
		if err := os.WriteFile(truthPath, truthData, 0o644); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing %s: %v", truthPath, err))
		}

		out.DataFile = dataPath
		out.TruthFile = truthPath
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	fmt.Fprintf(formatter.Writer, "✓ Simulated %s (%s): %d observation(s)\n", out.Model, out.Family, out.N)
	fmt.Fprintf(formatter.Writer, "  spec hash %s\n", out.SpecHash)
	fmt.Fprintf(formatter.Writer, "  data hash %s\n", out.DataHash)
	if out.DataFile != "" {
		fmt.Fprintf(formatter.Writer, "  wrote %s and %s\n", out.DataFile, out.TruthFile)
	}
	return nil
}

// outputCommandError reports an error and exits with the command-error code.
func outputCommandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
