package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeff-regier/example-models/internal/diagnose"
	"github.com/jeff-regier/example-models/internal/store"
)

// DiagnoseOptions holds flags for the diagnose command.
type DiagnoseOptions struct {
	*RootOptions
	DBPath    string
	Threshold float64
}

// NewDiagnoseCommand creates the diagnose command.
func NewDiagnoseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiagnoseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diagnose <run-id>",
		Short: "Check a recorded run's convergence",
		Long: `Check convergence of a recorded run.

Computes split-Rhat for every parameter and applies the threshold policy.
The verdict is written back to the run database.

Exit codes:
  0 - Every parameter converged
  1 - One or more parameters failed the threshold
  2 - Command error (run not found, unreadable database, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "runs.db", "run database path")
	cmd.Flags().Float64Var(&opts.Threshold, "threshold", diagnose.DefaultThreshold, "split-Rhat failure threshold")

	return cmd
}

func runDiagnose(opts *DiagnoseOptions, runID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("opening run database: %v", err))
	}
	defer st.Close()

	ctx := cmd.Context()
	draws, err := st.ReadDraws(ctx, runID)
	if err != nil {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("reading draws for run %s: %v", runID, err))
	}

	report, err := diagnose.Check(draws, diagnose.Policy{Threshold: opts.Threshold})
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("convergence check: %v", err))
	}
	if err := st.WriteDiagnostics(ctx, runID, report); err != nil {
		return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("recording diagnostics: %v", err))
	}

	if formatter.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
		if !report.Pass() {
			return NewExitError(ExitFailure, fmt.Sprintf("%d parameter(s) failed convergence", len(report.Failed)))
		}
		return nil
	}

	if report.Pass() {
		fmt.Fprintf(formatter.Writer, "✓ All %d parameter(s) converged (threshold %g)\n", len(report.Params), report.Threshold)
		fmt.Fprintf(formatter.Writer, "  worst: %s (Rhat %.4f)\n", report.WorstName, report.WorstRhat)
		return nil
	}

	fmt.Fprintf(formatter.Writer, "✗ %d of %d parameter(s) failed convergence (threshold %g)\n",
		len(report.Failed), len(report.Params), report.Threshold)
	for _, p := range report.Params {
		if !p.OK {
			fmt.Fprintf(formatter.Writer, "  %s: Rhat %.4f\n", p.Name, p.Rhat)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d parameter(s) failed convergence", len(report.Failed)))
}
