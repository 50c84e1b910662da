package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeff-regier/example-models/internal/engine"
	"github.com/jeff-regier/example-models/internal/harness"
)

// StudyOptions holds flags for the study command.
type StudyOptions struct {
	*RootOptions
	Binaries []string
	WorkDir  string
}

// NewStudyCommand creates the study command.
func NewStudyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StudyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "study <scenario.yaml>",
		Short: "Run one recovery study end to end with a real sampler",
		Long: `Run a recovery study end to end: simulate, fit, diagnose, score.

Unlike the test command, the fit uses the compiled sampler executable for
the scenario's family, so this is a real recovery study, not a pipeline
check. The scenario's assertions are evaluated against the finished run.
The run lives in a study-scoped in-memory store; use fit to record a run
in a database for later diagnose/summarize/recover.

Exit codes:
  0 - Study passed all assertions
  1 - One or more assertions failed
  2 - Command error (scenario unreadable, sampler failed, etc.)

Examples:
  models study scenarios/rasch.yaml --binary rasch=./stan/rasch`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStudy(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Binaries, "binary", nil, "family=path of a compiled sampler executable (repeatable)")
	cmd.Flags().StringVar(&opts.WorkDir, "work-dir", "", "keep sampler files in this directory instead of a temp dir")

	return cmd
}

func runStudy(opts *StudyOptions, scenarioFile string, cmd *cobra.Command) error {
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

	binaries, err := parseBinaries(opts.Binaries)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}
	if len(binaries) == 0 {
		return outputCommandError(formatter, ErrCodeGeneric, "no sampler binaries configured (use --binary family=path)")
	}

	formatter.VerboseLog("Running study %s", scenario.Name)

	sampler := &engine.CmdStan{Binaries: binaries, WorkDir: opts.WorkDir}
	result, err := harness.Run(scenario, sampler)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("study failed: %v", err))
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
		if !result.Pass {
			return NewExitError(ExitFailure, fmt.Sprintf("study %s failed", scenario.Name))
		}
		return nil
	}

	if result.Pass {
		fmt.Fprintf(formatter.Writer, "✓ %s\n", scenario.Name)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s\n", scenario.Name)
		for _, e := range result.Errors {
			fmt.Fprintf(formatter.Writer, "  %s\n", e)
		}
	}

	fmt.Fprintf(formatter.Writer, "  data hash %s\n", result.DataHash)
	if result.Diagnostics != nil {
		fmt.Fprintf(formatter.Writer, "  worst Rhat %.4f (%s)\n", result.Diagnostics.WorstRhat, result.Diagnostics.WorstName)
	}
	if result.Recovery != nil {
		fmt.Fprintf(formatter.Writer, "  coverage %d/%d (%.1f%%)\n",
			result.Recovery.Covered, result.Recovery.Total, result.Recovery.Coverage*100)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("study %s failed", scenario.Name))
	}
	return nil
}
