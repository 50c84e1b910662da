package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jeff-regier/example-models/internal/diagnose"
	"github.com/jeff-regier/example-models/internal/store"
)

// SummarizeOptions holds flags for the summarize command.
type SummarizeOptions struct {
	*RootOptions
	DBPath string
}

// NewSummarizeCommand creates the summarize command.
func NewSummarizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SummarizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "summarize <run-id>",
		Short: "Summarize a recorded run's posterior draws",
		Long: `Summarize a recorded run's posterior draws.

Computes the posterior mean, standard deviation, and quantile ladder for
every parameter, merging draws across chains. The summaries are written
back to the run database.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummarize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "runs.db", "run database path")

	return cmd
}

func runSummarize(opts *SummarizeOptions, runID string, cmd *cobra.Command) error {
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

	summaries, err := diagnose.Summarize(draws)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("summarizing draws: %v", err))
	}
	if err := st.WriteSummaries(ctx, runID, summaries); err != nil {
		return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("recording summaries: %v", err))
	}

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}

	fmt.Fprintf(formatter.Writer, "Posterior summary for run %s (%d parameter(s))\n\n", runID, len(summaries))
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "parameter\tmean\tsd\t2.5%\tmedian\t97.5%")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n",
			s.Name, s.Mean, s.SD, s.Q2_5, s.Median, s.Q97_5)
	}
	return tw.Flush()
}
