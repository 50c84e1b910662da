package store

import (
	"context"
	"testing"

	"github.com/jeff-regier/example-models/internal/diagnose"
	"github.com/jeff-regier/example-models/internal/engine"
	"github.com/jeff-regier/example-models/internal/model"
	"github.com/jeff-regier/example-models/internal/recovery"
)

func testDrawSet(t *testing.T) *engine.DrawSet {
	t.Helper()
	set := engine.NewDrawSet([]string{"sigma", "beta[1]"})
	if err := set.AddChain([][]float64{{1.0, 0.1}, {1.2, 0.2}, {0.8, 0.3}, {1.1, 0.4}}); err != nil {
		t.Fatalf("AddChain() failed: %v", err)
	}
	if err := set.AddChain([][]float64{{0.9, 0.5}, {1.3, 0.6}, {1.0, 0.7}, {1.05, 0.8}}); err != nil {
		t.Fatalf("AddChain() failed: %v", err)
	}
	return set
}

func TestWriteDraws_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.WriteRun(ctx, createTestRun("run-1")); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	want := testDrawSet(t)
	if err := s.WriteDraws(ctx, "run-1", want); err != nil {
		t.Fatalf("WriteDraws() failed: %v", err)
	}

	got, err := s.ReadDraws(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadDraws() failed: %v", err)
	}

	if got.NumChains() != want.NumChains() || got.NumDraws() != want.NumDraws() {
		t.Fatalf("shape = (%d chains, %d draws), want (%d, %d)",
			got.NumChains(), got.NumDraws(), want.NumChains(), want.NumDraws())
	}
	for _, param := range want.Params() {
		wantVals, _ := want.Merged(param)
		gotVals, err := got.Merged(param)
		if err != nil {
			t.Fatalf("Merged(%s) failed: %v", param, err)
		}
		for i := range wantVals {
			if gotVals[i] != wantVals[i] {
				t.Errorf("%s[%d] = %v, want %v", param, i, gotVals[i], wantVals[i])
			}
		}
	}
}

func TestWriteDraws_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.WriteRun(ctx, createTestRun("run-1")); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	set := testDrawSet(t)
	if err := s.WriteDraws(ctx, "run-1", set); err != nil {
		t.Fatalf("first WriteDraws() failed: %v", err)
	}
	if err := s.WriteDraws(ctx, "run-1", set); err != nil {
		t.Fatalf("second WriteDraws() failed: %v", err)
	}

	got, err := s.ReadDraws(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadDraws() failed: %v", err)
	}
	if got.NumChains() != 2 {
		t.Errorf("NumChains() = %d, want 2 after duplicate write", got.NumChains())
	}
}

func TestReadDraws_Missing(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.ReadDraws(context.Background(), "missing"); err == nil {
		t.Error("ReadDraws() on missing run should fail")
	}
}

func TestWriteTruth_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.WriteRun(ctx, createTestRun("run-1")); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	want := model.Truth{"sigma": 1.0, "beta[1]": -0.5}
	if err := s.WriteTruth(ctx, "run-1", want); err != nil {
		t.Fatalf("WriteTruth() failed: %v", err)
	}

	got, err := s.ReadTruth(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadTruth() failed: %v", err)
	}
	if len(got) != 2 || got["sigma"] != 1.0 || got["beta[1]"] != -0.5 {
		t.Errorf("ReadTruth() = %v, want %v", got, want)
	}
}

func TestReadTruth_RealDataRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.WriteRun(ctx, createTestRun("run-1")); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}

	// Real-data runs have no truths; reading them yields an empty map.
	got, err := s.ReadTruth(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadTruth() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadTruth() = %v, want empty", got)
	}
}

func TestWriteReports(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.WriteRun(ctx, createTestRun("run-1")); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}

	diag := &diagnose.Report{
		Threshold: 1.1,
		Params: []diagnose.ParamDiagnostic{
			{Name: "sigma", Rhat: 1.01, OK: true},
			{Name: "beta[1]", Rhat: 1.25, OK: false},
		},
	}
	if err := s.WriteDiagnostics(ctx, "run-1", diag); err != nil {
		t.Fatalf("WriteDiagnostics() failed: %v", err)
	}

	sums := []diagnose.ParamSummary{
		{Name: "sigma", Mean: 1.0, SD: 0.1, Q2_5: 0.8, Q25: 0.95, Median: 1.0, Q75: 1.05, Q97_5: 1.2},
	}
	if err := s.WriteSummaries(ctx, "run-1", sums); err != nil {
		t.Fatalf("WriteSummaries() failed: %v", err)
	}

	rec := &recovery.Report{
		Params: []recovery.ParamRecovery{
			{Name: "sigma", Truth: 1.0, Mean: 1.02, Discrepancy: 0.02, Lower: 0.8, Upper: 1.2, Covered: true},
		},
		Covered: 1, Total: 1, Coverage: 1.0,
	}
	if err := s.WriteRecovery(ctx, "run-1", rec); err != nil {
		t.Fatalf("WriteRecovery() failed: %v", err)
	}

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM diagnostics WHERE run_id = 'run-1'").Scan(&n); err != nil {
		t.Fatalf("count diagnostics: %v", err)
	}
	if n != 2 {
		t.Errorf("diagnostics rows = %d, want 2", n)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM recoveries WHERE covered = 1").Scan(&n); err != nil {
		t.Fatalf("count recoveries: %v", err)
	}
	if n != 1 {
		t.Errorf("covered recoveries = %d, want 1", n)
	}
}
