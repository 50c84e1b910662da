package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jeff-regier/example-models/internal/recovery"
	"github.com/jeff-regier/example-models/internal/store"
)

// RecoverOptions holds flags for the recover command.
type RecoverOptions struct {
	*RootOptions
	DBPath string
	Floor  float64
}

// NewRecoverCommand creates the recover command.
func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecoverOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recover <run-id>",
		Short: "Score a recorded run against its generating values",
		Long: `Score a recorded run against the generating values of its dataset.

For every parameter with a recorded truth, reports the posterior mean
discrepancy and whether the truth lands inside the central 95% interval.
The report is written back to the run database.

This only works for runs fitted to simulated data; a run without recorded
generating values cannot be scored.

Exit codes:
  0 - Interval coverage reaches the floor
  1 - Coverage below the floor
  2 - Command error (run not found, no generating values, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecover(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "runs.db", "run database path")
	cmd.Flags().Float64Var(&opts.Floor, "floor", 0.9, "minimum acceptable interval coverage")

	return cmd
}

func runRecover(opts *RecoverOptions, runID string, cmd *cobra.Command) error {
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
	truth, err := st.ReadTruth(ctx, runID)
	if err != nil {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("reading generating values for run %s: %v", runID, err))
	}

	report, err := recovery.Evaluate(draws, truth)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("scoring recovery: %v", err))
	}
	if err := st.WriteRecovery(ctx, runID, report); err != nil {
		return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("recording recovery: %v", err))
	}

	pass := report.CoverageAtLeast(opts.Floor)

	if formatter.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
		if !pass {
			return NewExitError(ExitFailure, fmt.Sprintf("coverage %.3f below floor %.3f", report.Coverage, opts.Floor))
		}
		return nil
	}

	mark := "✓"
	if !pass {
		mark = "✗"
	}
	fmt.Fprintf(formatter.Writer, "%s Coverage %d/%d (%.1f%%), floor %.1f%%\n\n",
		mark, report.Covered, report.Total, report.Coverage*100, opts.Floor*100)

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "parameter\ttruth\tmean\tdiscrepancy\t95% interval\tcovered")
	for _, p := range report.Params {
		covered := "yes"
		if !p.Covered {
			covered = "NO"
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%+.4f\t[%.4f, %.4f]\t%s\n",
			p.Name, p.Truth, p.Mean, p.Discrepancy, p.Lower, p.Upper, covered)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !pass {
		return NewExitError(ExitFailure, fmt.Sprintf("coverage %.3f below floor %.3f", report.Coverage, opts.Floor))
	}
	return nil
}
