package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/jeff-regier/example-models/internal/ir"
)

// CmdStan samples by launching a compiled CmdStan model executable, one
// subprocess per chain. The executable embeds the model's Stan program; this
// adapter only moves data in and draws out.
type CmdStan struct {
	// Binaries maps each family to its compiled model executable.
	Binaries map[ir.Family]string

	// WorkDir receives data files and chain CSVs. Empty means a fresh
	// temporary directory per fit, removed afterwards.
	WorkDir string
}

// Sample implements Sampler. Chains run concurrently; the first failure
// cancels the rest and is reported as a SamplerError.
func (s *CmdStan) Sample(ctx context.Context, spec *ir.ModelSpec, payload ir.DataPayload, controls Controls) (*DrawSet, error) {
	if err := controls.Validate(); err != nil {
		return nil, err
	}
	binary, ok := s.Binaries[spec.Family]
	if !ok {
		return nil, fmt.Errorf("no sampler binary configured for family %q", spec.Family)
	}

	dir := s.WorkDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "fit-"+spec.Name+"-*")
		if err != nil {
			return nil, fmt.Errorf("create work dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	dataPath := filepath.Join(dir, "data.json")
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal data payload: %w", err)
	}
	if err := os.WriteFile(dataPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write data payload: %w", err)
	}

	slog.Info("fit starting",
		"model", spec.Name,
		"family", spec.Family,
		"chains", controls.Chains,
		"warmup", controls.IterWarmup,
		"sampling", controls.IterSampling,
		"seed", controls.Seed)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outPaths := make([]string, controls.Chains)
	errs := make([]error, controls.Chains)
	var wg sync.WaitGroup
	for chain := 0; chain < controls.Chains; chain++ {
		outPaths[chain] = filepath.Join(dir, fmt.Sprintf("chain-%d.csv", chain+1))
		wg.Add(1)
		go func(chain int) {
			defer wg.Done()
			err := s.runChain(ctx, binary, dataPath, outPaths[chain], chain, controls)
			if err != nil {
				errs[chain] = err
				cancel()
			}
		}(chain)
	}
	wg.Wait()

	if err := chainFailure(errs); err != nil {
		return nil, err
	}

	draws, err := collectChains(outPaths)
	if err != nil {
		return nil, err
	}

	slog.Info("fit finished",
		"model", spec.Name,
		"chains", draws.NumChains(),
		"draws_per_chain", draws.NumDraws(),
		"parameters", len(draws.Params()))
	return draws, nil
}

// runChain launches one sampler subprocess and waits for it.
func (s *CmdStan) runChain(ctx context.Context, binary, dataPath, outPath string, chain int, controls Controls) error {
	args := []string{
		"sample",
		fmt.Sprintf("num_warmup=%d", controls.IterWarmup),
		fmt.Sprintf("num_samples=%d", controls.IterSampling),
		"data", "file=" + dataPath,
		"random", fmt.Sprintf("seed=%d", controls.Seed+uint64(chain)),
		"id=" + strconv.Itoa(chain+1),
		"output", "file=" + outPath,
	}

	slog.Debug("chain starting", "chain", chain+1, "binary", binary)

	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return &SamplerError{
			Chain:    chain + 1,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}

	slog.Debug("chain finished", "chain", chain+1)
	return nil
}

// chainFailure picks the error to surface once every chain has stopped.
// Siblings killed by the shared cancel report a context error; the chain
// that actually failed carries the SamplerError, which must win regardless
// of chain order.
func chainFailure(errs []error) error {
	var cancelled error
	for _, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			if cancelled == nil {
				cancelled = err
			}
		default:
			return err
		}
	}
	return cancelled
}

// collectChains parses every chain CSV into one DrawSet, verifying the
// chains agree on parameter columns.
func collectChains(paths []string) (*DrawSet, error) {
	var set *DrawSet
	var first []string
	for i, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open chain %d output: %w", i+1, err)
		}
		params, rows, err := ParseStanCSV(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse chain %d output: %w", i+1, err)
		}
		if set == nil {
			set = NewDrawSet(params)
			first = params
		} else if !equalStrings(params, first) {
			return nil, fmt.Errorf("chain %d has different parameter columns than chain 1", i+1)
		}
		if err := set.AddChain(rows); err != nil {
			return nil, fmt.Errorf("chain %d: %w", i+1, err)
		}
	}
	return set, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ParseStanCSV reads one chain's draw file: '#' comment lines, a header
// naming each column, then one row per post-warmup draw. Bookkeeping
// columns (names ending "__", e.g. lp__) are dropped, and dotted element
// names are rewritten to bracket form ("beta.3" becomes "beta[3]").
func ParseStanCSV(r io.Reader) ([]string, [][]float64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)

	var params []string
	var keep []int
	var rows [][]float64

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Split(line, ",")

		if params == nil && keep == nil {
			for i, name := range cols {
				name = strings.TrimSpace(name)
				if strings.HasSuffix(name, "__") {
					continue
				}
				params = append(params, bracketName(name))
				keep = append(keep, i)
			}
			if len(params) == 0 {
				return nil, nil, fmt.Errorf("header has no parameter columns")
			}
			continue
		}

		if len(cols) < len(keep) {
			return nil, nil, fmt.Errorf("draw row has %d columns, want at least %d", len(cols), len(keep))
		}
		row := make([]float64, len(keep))
		for j, i := range keep {
			v, err := strconv.ParseFloat(strings.TrimSpace(cols[i]), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("parse %q in column %s: %w", cols[i], params[j], err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if params == nil {
		return nil, nil, fmt.Errorf("no header found")
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("no draws found")
	}
	return params, rows, nil
}

// bracketName rewrites CmdStan's dotted element names to bracket form:
// "beta.3" -> "beta[3]", "Omega.2.1" -> "Omega[2,1]". Names without dots
// pass through.
func bracketName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) == 1 {
		return name
	}
	for _, idx := range parts[1:] {
		if _, err := strconv.Atoi(idx); err != nil {
			return name // dots but not indices; leave untouched
		}
	}
	return parts[0] + "[" + strings.Join(parts[1:], ",") + "]"
}
