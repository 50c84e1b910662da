// Package harness runs recovery study scenarios end to end: simulate a
// dataset from known generating values, fit it, and assert on the
// diagnostics and recovery reports.
//
// The sampler is injected, so tests exercise the whole pipeline with a stub
// that fabricates well-mixed draws around the generating values, while a
// real study hands in the CmdStan sampler. Everything around the sampler
// (payload construction, hashing, storage, diagnostics, recovery scoring,
// assertions) is the production code path either way.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gonum.org/v1/gonum/mat"

	"github.com/jeff-regier/example-models/internal/compiler"
	"github.com/jeff-regier/example-models/internal/diagnose"
	"github.com/jeff-regier/example-models/internal/engine"
	"github.com/jeff-regier/example-models/internal/ir"
	"github.com/jeff-regier/example-models/internal/model"
	"github.com/jeff-regier/example-models/internal/recovery"
	"github.com/jeff-regier/example-models/internal/store"
)

// Harness executes one scenario against a fresh in-memory store.
type Harness struct {
	store   *store.Store
	sampler engine.Sampler
	idGen   engine.RunIDGenerator
	logger  *slog.Logger
}

// studyArtifacts is everything the simulation step hands to the fit and the
// assertions: the payload, the generating values, and the raw outcomes with
// their per-observation category caps.
type studyArtifacts struct {
	spec     *ir.ModelSpec
	payload  ir.DataPayload
	truth    model.Truth
	outcomes []int64
	// maxCat caps each outcome (1 for rasch, per-item steps for gpcm,
	// -1 for unbounded counts).
	maxCat []int64
	// simplex validates the generating response probabilities over an
	// ability grid; nil for families without category probabilities.
	simplex func() error
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database for isolation.
// Execution flow:
//  1. Compile and validate the model document
//  2. Generate parameters and simulate the dataset from the study seed
//  3. Fit via the injected sampler and record the run
//  4. Diagnose, summarize, and score recovery
//  5. Evaluate assertions against the reports and artifacts
func Run(scenario *Scenario, sampler engine.Sampler) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:   st,
		sampler: sampler,
		idGen:   engine.UUIDv7Generator{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	return h.run(context.Background(), scenario)
}

// prepare compiles and validates the scenario's model document and
// simulates its study.
func prepare(scenario *Scenario) (*ir.ModelSpec, *studyArtifacts, error) {
	spec, err := CompileModelFile(scenario.Model, scenario.ModelName)
	if err != nil {
		return nil, nil, fmt.Errorf("scenario model: %w", err)
	}
	if verrs := compiler.Validate(spec); len(verrs) > 0 {
		return nil, nil, fmt.Errorf("scenario model invalid: %v", verrs[0])
	}
	if spec.Family != ir.Family(scenario.Study.Family) {
		return nil, nil, fmt.Errorf("scenario family %q does not match model family %q",
			scenario.Study.Family, spec.Family)
	}

	art, err := simulateStudy(spec, scenario.Study)
	if err != nil {
		return nil, nil, fmt.Errorf("simulate study: %w", err)
	}
	return spec, art, nil
}

// Materialize compiles the scenario's model and simulates its study without
// fitting: the compiled spec, the data payload, and the generating values.
// This is the scenario's dataset as a fit command would see it.
func Materialize(scenario *Scenario) (*ir.ModelSpec, ir.DataPayload, model.Truth, error) {
	spec, art, err := prepare(scenario)
	if err != nil {
		return nil, nil, nil, err
	}
	return spec, art.payload, art.truth, nil
}

// StudyTruth regenerates the study's generating values without simulating
// data. Useful for centering a stub sampler on the truth.
func StudyTruth(st Study) (model.Truth, error) {
	switch ir.Family(st.Family) {
	case ir.FamilyRasch:
		p, err := model.GenerateRaschParams(st.Items, st.Lambda, st.Sigma)
		if err != nil {
			return nil, err
		}
		return p.Truth(), nil
	case ir.FamilyGPCM:
		p, err := model.GenerateGPCMParams(st.MaxCategories, st.Lambda, st.Sigma)
		if err != nil {
			return nil, err
		}
		return p.Truth(), nil
	case ir.FamilyPoissonGLMM:
		p, err := model.GenerateGLMMParams(st.Sites, st.Years, st.GrandMean, st.SigmaSite, st.SigmaYear, st.Seed)
		if err != nil {
			return nil, err
		}
		return p.Truth(), nil
	default:
		return nil, fmt.Errorf("unknown family %q", st.Family)
	}
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	spec, art, err := prepare(scenario)
	if err != nil {
		return nil, err
	}

	controls := scenarioControls(scenario.Controls)
	draws, err := h.sampler.Sample(ctx, spec, art.payload, controls)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	result := NewResult(scenario.Name)
	result.RunID = h.idGen.Generate()
	result.DataHash = ir.MustDataHash(art.payload)

	run := store.Run{
		ID:            result.RunID,
		ModelName:     spec.Name,
		Family:        spec.Family,
		SpecHash:      ir.MustSpecHash(spec),
		DataHash:      result.DataHash,
		Chains:        controls.Chains,
		IterWarmup:    controls.IterWarmup,
		IterSampling:  controls.IterSampling,
		Seed:          controls.Seed,
		RunnerVersion: ir.RunnerVersion,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.record(ctx, run, draws, art.truth); err != nil {
		return nil, err
	}

	result.Diagnostics, err = diagnose.Check(draws, diagnose.DefaultPolicy())
	if err != nil {
		return nil, fmt.Errorf("diagnose: %w", err)
	}
	result.Recovery, err = recovery.Evaluate(draws, art.truth)
	if err != nil {
		return nil, fmt.Errorf("recovery: %w", err)
	}

	summaries, err := diagnose.Summarize(draws)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	if err := h.store.WriteDiagnostics(ctx, run.ID, result.Diagnostics); err != nil {
		return nil, err
	}
	if err := h.store.WriteSummaries(ctx, run.ID, summaries); err != nil {
		return nil, err
	}
	if err := h.store.WriteRecovery(ctx, run.ID, result.Recovery); err != nil {
		return nil, err
	}

	evaluateAssertions(result, scenario, spec, art, draws)

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"run_id", run.ID,
		"pass", result.Pass,
		"checks", len(result.Checks),
	)
	return result, nil
}

// record writes the run, its draws, and its generating values.
func (h *Harness) record(ctx context.Context, run store.Run, draws *engine.DrawSet, truth model.Truth) error {
	if err := h.store.WriteRun(ctx, run); err != nil {
		return err
	}
	if err := h.store.WriteDraws(ctx, run.ID, draws); err != nil {
		return err
	}
	if err := h.store.WriteTruth(ctx, run.ID, truth); err != nil {
		return err
	}
	return nil
}

// scenarioControls fills unset YAML fields with test-sized defaults: two
// chains of 200 draws from seed 1. Warmup stays zero; the stub sampler has
// nothing to warm up and real test fits should be explicit about it.
func scenarioControls(cs ControlsSpec) engine.Controls {
	c := engine.Controls{Chains: 2, IterSampling: 200, Seed: 1}
	if cs.Chains > 0 {
		c.Chains = cs.Chains
	}
	if cs.IterWarmup > 0 {
		c.IterWarmup = cs.IterWarmup
	}
	if cs.IterSampling > 0 {
		c.IterSampling = cs.IterSampling
	}
	if cs.Seed > 0 {
		c.Seed = cs.Seed
	}
	return c
}

// CompileModelFile compiles one named model out of a CUE document.
func CompileModelFile(path, name string) (*ir.ModelSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	cctx := cuecontext.New()
	v := cctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	mv := v.LookupPath(cue.ParsePath("model." + name))
	if !mv.Exists() {
		return nil, fmt.Errorf("document %s has no model %q", path, name)
	}
	return compiler.CompileModel(mv)
}

// simulateStudy generates parameters and a dataset for the study, and
// packages everything the assertions need.
func simulateStudy(spec *ir.ModelSpec, st Study) (*studyArtifacts, error) {
	switch spec.Family {
	case ir.FamilyRasch:
		p, err := model.GenerateRaschParams(st.Items, st.Lambda, st.Sigma)
		if err != nil {
			return nil, err
		}
		ds, _, err := model.SimulateRasch(p, studyDesign(st.Persons, len(st.Lambda)), st.Seed)
		if err != nil {
			return nil, err
		}
		payload, err := model.BuildIRTPayload(spec, ds)
		if err != nil {
			return nil, err
		}
		maxCat := make([]int64, len(ds.Response))
		for i := range maxCat {
			maxCat[i] = 1
		}
		return &studyArtifacts{
			spec:     spec,
			payload:  payload,
			truth:    p.Truth(),
			outcomes: ds.Response,
			maxCat:   maxCat,
			simplex: func() error {
				return checkRaschProbs(p)
			},
		}, nil

	case ir.FamilyGPCM:
		p, err := model.GenerateGPCMParams(st.MaxCategories, st.Lambda, st.Sigma)
		if err != nil {
			return nil, err
		}
		ds, _, err := model.SimulateGPCM(p, studyDesign(st.Persons, len(st.Lambda)), st.Seed)
		if err != nil {
			return nil, err
		}
		payload, err := model.BuildIRTPayload(spec, ds)
		if err != nil {
			return nil, err
		}
		maxCat := make([]int64, len(ds.Response))
		for i, item := range ds.ItemIndex {
			maxCat[i] = int64(p.MaxCategory(int(item - 1)))
		}
		return &studyArtifacts{
			spec:     spec,
			payload:  payload,
			truth:    p.Truth(),
			outcomes: ds.Response,
			maxCat:   maxCat,
			simplex: func() error {
				return checkGPCMProbs(p)
			},
		}, nil

	case ir.FamilyPoissonGLMM:
		p, err := model.GenerateGLMMParams(st.Sites, st.Years, st.GrandMean, st.SigmaSite, st.SigmaYear, st.Seed)
		if err != nil {
			return nil, err
		}
		ds, _, err := model.SimulateGLMM(p, st.MissingProb, st.Seed)
		if err != nil {
			return nil, err
		}
		payload, err := model.BuildGLMMPayload(spec, ds)
		if err != nil {
			return nil, err
		}
		maxCat := make([]int64, len(ds.Count))
		for i := range maxCat {
			maxCat[i] = -1 // counts are unbounded above
		}
		return &studyArtifacts{
			spec:     spec,
			payload:  payload,
			truth:    p.Truth(),
			outcomes: ds.Count,
			maxCat:   maxCat,
		}, nil

	default:
		return nil, fmt.Errorf("unknown family %q", spec.Family)
	}
}

// studyDesign builds a fixed person-level design matrix: an intercept
// column plus alternating-sign contrast columns. Deterministic, so the data
// hash of a study depends only on the study configuration.
func studyDesign(persons, k int) *mat.Dense {
	design := mat.NewDense(persons, k, nil)
	for p := 0; p < persons; p++ {
		design.Set(p, 0, 1)
		for c := 1; c < k; c++ {
			v := 0.5
			if (p+c)%2 == 1 {
				v = -0.5
			}
			design.Set(p, c, v)
		}
	}
	return design
}
