package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeff-regier/example-models/internal/diagnose"
	"github.com/jeff-regier/example-models/internal/engine"
	"github.com/jeff-regier/example-models/internal/ir"
	"github.com/jeff-regier/example-models/internal/model"
	"github.com/jeff-regier/example-models/internal/recovery"
)

// Run is one recorded fit. SpecHash and DataHash tie the run to the exact
// model document and data payload that produced it.
type Run struct {
	ID            string    `json:"id"`
	ModelName     string    `json:"model_name"`
	Family        ir.Family `json:"family"`
	SpecHash      string    `json:"spec_hash"`
	DataHash      string    `json:"data_hash"`
	Chains        int       `json:"chains"`
	IterWarmup    int       `json:"iter_warmup"`
	IterSampling  int       `json:"iter_sampling"`
	Seed          uint64    `json:"seed"`
	RunnerVersion string    `json:"runner_version"`
	CreatedAt     time.Time `json:"created_at"`
}

// WriteRun inserts run metadata.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, model_name, family, spec_hash, data_hash, chains, iter_warmup, iter_sampling, seed, runner_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.ModelName,
		string(run.Family),
		run.SpecHash,
		run.DataHash,
		run.Chains,
		run.IterWarmup,
		run.IterSampling,
		int64(run.Seed),
		run.RunnerVersion,
		run.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// GetRun fetches one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, model_name, family, spec_hash, data_hash, chains, iter_warmup, iter_sampling, seed, runner_version, created_at
		FROM runs WHERE id = ?
	`, id)
	return scanRun(row)
}

// ListRuns returns all runs in creation order (UUIDv7 IDs sort by time).
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model_name, family, spec_hash, data_hash, chains, iter_warmup, iter_sampling, seed, runner_version, created_at
		FROM runs ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var family, createdAt string
	var seed int64
	err := row.Scan(&run.ID, &run.ModelName, &family, &run.SpecHash, &run.DataHash,
		&run.Chains, &run.IterWarmup, &run.IterSampling, &seed, &run.RunnerVersion, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Family = ir.Family(family)
	run.Seed = uint64(seed)
	run.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &run, nil
}

// WriteDraws records a run's posterior draws, one row per (chain, param).
// Idempotent: re-writing the same run's draws is a no-op.
func (s *Store) WriteDraws(ctx context.Context, runID string, draws *engine.DrawSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write draws: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO draws (run_id, chain, param, col, values_)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write draws: %w", err)
	}
	defer stmt.Close()

	params := draws.Params()
	for chain := 0; chain < draws.NumChains(); chain++ {
		for col, param := range params {
			values, err := draws.Chain(chain, param)
			if err != nil {
				return fmt.Errorf("write draws: %w", err)
			}
			encoded, err := json.Marshal(values)
			if err != nil {
				return fmt.Errorf("write draws: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, runID, chain, param, col, string(encoded)); err != nil {
				return fmt.Errorf("write draws: %w", err)
			}
		}
	}
	return tx.Commit()
}

// ReadDraws reconstructs a run's draw set, columns in their recorded order.
func (s *Store) ReadDraws(ctx context.Context, runID string) (*engine.DrawSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chain, param, col, values_
		FROM draws WHERE run_id = ?
		ORDER BY chain, col
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read draws: %w", err)
	}
	defer rows.Close()

	var params []string
	chains := make(map[int][][]float64) // chain -> col -> values
	for rows.Next() {
		var chain, col int
		var param, encoded string
		if err := rows.Scan(&chain, &param, &col, &encoded); err != nil {
			return nil, fmt.Errorf("read draws: %w", err)
		}
		var values []float64
		if err := json.Unmarshal([]byte(encoded), &values); err != nil {
			return nil, fmt.Errorf("read draws: decode %s: %w", param, err)
		}
		if chain == 0 {
			params = append(params, param)
		}
		chains[chain] = append(chains[chain], values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read draws: %w", err)
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("no draws recorded for run %s", runID)
	}

	set := engine.NewDrawSet(params)
	for chain := 0; chain < len(chains); chain++ {
		cols, ok := chains[chain]
		if !ok || len(cols) != len(params) {
			return nil, fmt.Errorf("run %s chain %d has incomplete columns", runID, chain)
		}
		n := len(cols[0])
		rows := make([][]float64, n)
		for i := range rows {
			rows[i] = make([]float64, len(params))
			for c := range cols {
				if len(cols[c]) != n {
					return nil, fmt.Errorf("run %s chain %d has ragged columns", runID, chain)
				}
				rows[i][c] = cols[c][i]
			}
		}
		if err := set.AddChain(rows); err != nil {
			return nil, fmt.Errorf("read draws: %w", err)
		}
	}
	return set, nil
}

// WriteTruth records the generating values of a simulated dataset.
func (s *Store) WriteTruth(ctx context.Context, runID string, truth model.Truth) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write truth: %w", err)
	}
	defer tx.Rollback()

	for param, value := range truth {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO truths (run_id, param, value)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, runID, param, value)
		if err != nil {
			return fmt.Errorf("write truth: %w", err)
		}
	}
	return tx.Commit()
}

// ReadTruth returns the generating values recorded for a run, or an empty
// map for a real-data run.
func (s *Store) ReadTruth(ctx context.Context, runID string) (model.Truth, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT param, value FROM truths WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read truth: %w", err)
	}
	defer rows.Close()

	truth := model.Truth{}
	for rows.Next() {
		var param string
		var value float64
		if err := rows.Scan(&param, &value); err != nil {
			return nil, fmt.Errorf("read truth: %w", err)
		}
		truth[param] = value
	}
	return truth, rows.Err()
}

// WriteDiagnostics records a convergence report.
func (s *Store) WriteDiagnostics(ctx context.Context, runID string, report *diagnose.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write diagnostics: %w", err)
	}
	defer tx.Rollback()

	for _, p := range report.Params {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO diagnostics (run_id, param, rhat, ok, threshold)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, runID, p.Name, p.Rhat, boolInt(p.OK), report.Threshold)
		if err != nil {
			return fmt.Errorf("write diagnostics: %w", err)
		}
	}
	return tx.Commit()
}

// WriteSummaries records posterior summaries.
func (s *Store) WriteSummaries(ctx context.Context, runID string, summaries []diagnose.ParamSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write summaries: %w", err)
	}
	defer tx.Rollback()

	for _, p := range summaries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO summaries (run_id, param, mean, sd, q2_5, q25, median, q75, q97_5)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, runID, p.Name, p.Mean, p.SD, p.Q2_5, p.Q25, p.Median, p.Q75, p.Q97_5)
		if err != nil {
			return fmt.Errorf("write summaries: %w", err)
		}
	}
	return tx.Commit()
}

// WriteRecovery records a recovery report.
func (s *Store) WriteRecovery(ctx context.Context, runID string, report *recovery.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write recovery: %w", err)
	}
	defer tx.Rollback()

	for _, p := range report.Params {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recoveries (run_id, param, truth, mean, discrepancy, lower, upper, covered)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, runID, p.Name, p.Truth, p.Mean, p.Discrepancy, p.Lower, p.Upper, boolInt(p.Covered))
		if err != nil {
			return fmt.Errorf("write recovery: %w", err)
		}
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
