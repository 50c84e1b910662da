package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeff-regier/example-models/internal/compiler"
	"github.com/jeff-regier/example-models/internal/dataset"
	"github.com/jeff-regier/example-models/internal/engine"
	"github.com/jeff-regier/example-models/internal/harness"
	"github.com/jeff-regier/example-models/internal/ir"
	"github.com/jeff-regier/example-models/internal/model"
	"github.com/jeff-regier/example-models/internal/store"
)

// FitOptions holds flags for the fit command.
type FitOptions struct {
	*RootOptions
	DBPath   string
	Binaries []string // family=path pairs
	WorkDir  string

	// Real-data (CSV) mode.
	Model     string
	ModelName string
	Person    string
	Item      string
	Response  string
	Covariate []string
	Site      string
	Year      string
	Count     string
	Subset    int
	Seed      uint64
	Chains    int
	Warmup    int
	Sampling  int
}

// FitOutput summarizes a recorded fit.
type FitOutput struct {
	RunID    string `json:"run_id"`
	Model    string `json:"model"`
	Family   string `json:"family"`
	SpecHash string `json:"spec_hash"`
	DataHash string `json:"data_hash"`
	Chains   int    `json:"chains"`
	Draws    int    `json:"draws"`
}

// NewFitCommand creates the fit command.
func NewFitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fit <scenario.yaml | data.csv>",
		Short: "Fit a dataset with an external sampler and record the run",
		Long: `Fit a dataset and record the run.

With a scenario file, simulates the scenario's dataset from its study seed
and fits it. With a CSV file, loads the real dataset (long-format item
responses for the IRT families, site-by-year counts for the GLMM) and fits
it; such runs record no generating values, so they can be diagnosed and
summarized but not scored for recovery.

Either way the payload goes to the compiled sampler executable for the
model's family, and the run, its draws, and (for simulated data) the
generating values are recorded. Prints the new run ID for the diagnose,
summarize, and recover commands.

Examples:
  models fit scenarios/rasch.yaml --db runs.db --binary rasch=./stan/rasch
  models fit spelling.csv --model models/rasch_latent_reg.cue --model-name rasch_latent_reg \
    --covariate male --db runs.db --binary rasch=./stan/rasch`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "runs.db", "run database path")
	cmd.Flags().StringArrayVar(&opts.Binaries, "binary", nil, "family=path of a compiled sampler executable (repeatable)")
	cmd.Flags().StringVar(&opts.WorkDir, "work-dir", "", "keep sampler files in this directory instead of a temp dir")

	cmd.Flags().StringVar(&opts.Model, "model", "", "CUE model document (CSV mode)")
	cmd.Flags().StringVar(&opts.ModelName, "model-name", "", "model label inside the document (CSV mode)")
	cmd.Flags().StringVar(&opts.Person, "person", "person", "person column (IRT CSV)")
	cmd.Flags().StringVar(&opts.Item, "item", "item", "item column (IRT CSV)")
	cmd.Flags().StringVar(&opts.Response, "response", "response", "response column (IRT CSV)")
	cmd.Flags().StringArrayVar(&opts.Covariate, "covariate", nil, "person-level covariate column (repeatable, IRT CSV)")
	cmd.Flags().StringVar(&opts.Site, "site", "site", "site column (count CSV)")
	cmd.Flags().StringVar(&opts.Year, "year", "year", "year column (count CSV)")
	cmd.Flags().StringVar(&opts.Count, "count", "count", "count column (count CSV)")
	cmd.Flags().IntVar(&opts.Subset, "subset-persons", 0, "fit a deterministic subset of this many persons (IRT CSV)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "sampler seed override")
	cmd.Flags().IntVar(&opts.Chains, "chains", 0, "chain count override")
	cmd.Flags().IntVar(&opts.Warmup, "warmup", 0, "warmup iteration override")
	cmd.Flags().IntVar(&opts.Sampling, "sampling", 0, "sampling iteration override")

	return cmd
}

func runFit(opts *FitOptions, inputFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	binaries, err := parseBinaries(opts.Binaries)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}
	if len(binaries) == 0 {
		return outputCommandError(formatter, ErrCodeGeneric, "no sampler binaries configured (use --binary family=path)")
	}

	var (
		spec     *ir.ModelSpec
		payload  ir.DataPayload
		truth    model.Truth
		controls engine.Controls
	)
	if strings.EqualFold(filepath.Ext(inputFile), ".csv") {
		spec, payload, err = materializeCSV(opts, inputFile, formatter)
		if err != nil {
			return err
		}
		controls = engine.DefaultControls()
	} else {
		scenario, err := harness.LoadScenario(inputFile)
		if err != nil {
			return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("loading scenario: %v", err))
		}
		spec, payload, truth, err = harness.Materialize(scenario)
		if err != nil {
			return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("simulating scenario: %v", err))
		}
		controls = fitControls(scenario.Controls)
	}
	controls = overrideControls(controls, opts)

	formatter.VerboseLog("Fitting %s: %d chain(s), %d warmup, %d sampling, seed %d",
		spec.Name, controls.Chains, controls.IterWarmup, controls.IterSampling, controls.Seed)

	sampler := &engine.CmdStan{Binaries: binaries, WorkDir: opts.WorkDir}
	draws, err := sampler.Sample(cmd.Context(), spec, payload, controls)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("sampling: %v", err))
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("opening run database: %v", err))
	}
	defer st.Close()

	run := store.Run{
		ID:            engine.UUIDv7Generator{}.Generate(),
		ModelName:     spec.Name,
		Family:        spec.Family,
		SpecHash:      ir.MustSpecHash(spec),
		DataHash:      ir.MustDataHash(payload),
		Chains:        controls.Chains,
		IterWarmup:    controls.IterWarmup,
		IterSampling:  controls.IterSampling,
		Seed:          controls.Seed,
		RunnerVersion: ir.RunnerVersion,
		CreatedAt:     time.Now().UTC(),
	}

	ctx := cmd.Context()
	if err := st.WriteRun(ctx, run); err != nil {
		return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("recording run: %v", err))
	}
	if err := st.WriteDraws(ctx, run.ID, draws); err != nil {
		return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("recording draws: %v", err))
	}
	if len(truth) > 0 {
		if err := st.WriteTruth(ctx, run.ID, truth); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("recording generating values: %v", err))
		}
	}

	out := FitOutput{
		RunID:    run.ID,
		Model:    run.ModelName,
		Family:   string(run.Family),
		SpecHash: run.SpecHash,
		DataHash: run.DataHash,
		Chains:   draws.NumChains(),
		Draws:    draws.NumDraws(),
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	fmt.Fprintf(formatter.Writer, "✓ Fit %s (%s): %d chain(s) × %d draw(s)\n", out.Model, out.Family, out.Chains, out.Draws)
	fmt.Fprintf(formatter.Writer, "  run %s\n", out.RunID)
	fmt.Fprintf(formatter.Writer, "  data hash %s\n", out.DataHash)
	return nil
}

// materializeCSV compiles the model document named by the flags and builds
// the payload from a real dataset.
func materializeCSV(opts *FitOptions, csvFile string, formatter *OutputFormatter) (*ir.ModelSpec, ir.DataPayload, error) {
	if opts.Model == "" || opts.ModelName == "" {
		return nil, nil, outputCommandError(formatter, ErrCodeGeneric, "CSV mode needs --model and --model-name")
	}

	spec, err := harness.CompileModelFile(opts.Model, opts.ModelName)
	if err != nil {
		return nil, nil, outputCommandError(formatter, ErrCodeCompile, fmt.Sprintf("compiling model: %v", err))
	}
	if verrs := compiler.Validate(spec); len(verrs) > 0 {
		return nil, nil, outputCommandError(formatter, verrs[0].Code, verrs[0].Error())
	}

	f, err := os.Open(csvFile)
	if err != nil {
		return nil, nil, outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("opening dataset: %v", err))
	}
	defer f.Close()

	var payload ir.DataPayload
	switch spec.Family {
	case ir.FamilyRasch, ir.FamilyGPCM:
		ds, err := dataset.LoadIRT(f, dataset.IRTColumns{
			Person:     opts.Person,
			Item:       opts.Item,
			Response:   opts.Response,
			Covariates: opts.Covariate,
		})
		if err != nil {
			return nil, nil, outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("loading dataset: %v", err))
		}
		if opts.Subset > 0 {
			seed := opts.Seed
			if seed == 0 {
				seed = 1
			}
			ds, err = dataset.SubsetPersons(ds, opts.Subset, seed)
			if err != nil {
				return nil, nil, outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("subsetting dataset: %v", err))
			}
		}
		formatter.VerboseLog("Loaded %d response(s) from %d person(s) on %d item(s)", ds.Obs(), ds.Persons, ds.Items)
		payload, err = model.BuildIRTPayload(spec, ds)
		if err != nil {
			return nil, nil, outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("building payload: %v", err))
		}

	case ir.FamilyPoissonGLMM:
		ds, err := dataset.LoadCounts(f, dataset.CountColumns{
			Site:  opts.Site,
			Year:  opts.Year,
			Count: opts.Count,
		})
		if err != nil {
			return nil, nil, outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("loading dataset: %v", err))
		}
		formatter.VerboseLog("Loaded %d observed cell(s), %d missing, on a %d×%d grid",
			ds.Obs(), len(ds.MissingSiteIndex), ds.Sites, ds.Years)
		payload, err = model.BuildGLMMPayload(spec, ds)
		if err != nil {
			return nil, nil, outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("building payload: %v", err))
		}

	default:
		return nil, nil, outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("unknown family %q", spec.Family))
	}

	return spec, payload, nil
}

// fitControls builds production controls with scenario overrides. Unlike the
// harness's test-sized defaults, a recorded fit starts from the conventional
// four-chain configuration.
func fitControls(cs harness.ControlsSpec) engine.Controls {
	var options []engine.ControlOption
	if cs.Chains > 0 {
		options = append(options, engine.WithChains(cs.Chains))
	}
	if cs.IterWarmup > 0 || cs.IterSampling > 0 {
		warmup, sampling := engine.DefaultIterWarmup, engine.DefaultIterSampling
		if cs.IterWarmup > 0 {
			warmup = cs.IterWarmup
		}
		if cs.IterSampling > 0 {
			sampling = cs.IterSampling
		}
		options = append(options, engine.WithIterations(warmup, sampling))
	}
	if cs.Seed > 0 {
		options = append(options, engine.WithSeed(cs.Seed))
	}
	return engine.NewControls(options...)
}

// overrideControls applies explicit flag overrides on top of whatever the
// input source configured.
func overrideControls(c engine.Controls, opts *FitOptions) engine.Controls {
	if opts.Chains > 0 {
		c.Chains = opts.Chains
	}
	if opts.Warmup > 0 {
		c.IterWarmup = opts.Warmup
	}
	if opts.Sampling > 0 {
		c.IterSampling = opts.Sampling
	}
	if opts.Seed > 0 {
		c.Seed = opts.Seed
	}
	return c
}

// parseBinaries parses repeated family=path flags into the sampler's
// binary map.
func parseBinaries(pairs []string) (map[ir.Family]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	binaries := make(map[ir.Family]string, len(pairs))
	for _, pair := range pairs {
		family, path, ok := strings.Cut(pair, "=")
		if !ok || family == "" || path == "" {
			return nil, fmt.Errorf("invalid --binary %q: expected family=path", pair)
		}
		if !ir.ValidFamilies[ir.Family(family)] {
			return nil, fmt.Errorf("invalid --binary %q: unknown family %q", pair, family)
		}
		binaries[ir.Family(family)] = path
	}
	return binaries, nil
}
