package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeff-regier/example-models/internal/ir"
)

// createTestStore creates a store backed by a temp file.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun builds run metadata with minimal required fields.
func createTestRun(id string) Run {
	return Run{
		ID:            id,
		ModelName:     "rasch_latent_reg",
		Family:        ir.FamilyRasch,
		SpecHash:      "spec-hash",
		DataHash:      "data-hash",
		Chains:        4,
		IterWarmup:    1000,
		IterSampling:  1000,
		Seed:          42,
		RunnerVersion: ir.RunnerVersion,
		CreatedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	checks := map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
	}
	for name, want := range checks {
		if err := s.verifyPragma(name, want); err != nil {
			t.Errorf("pragma check failed: %v", err)
		}
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	s2.Close()
}

func TestOpen_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestWriteRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := createTestRun("run-1")
	if err := s.WriteRun(ctx, want); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if *got != want {
		t.Errorf("GetRun() = %+v, want %+v", *got, want)
	}
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("run-1")
	if err := s.WriteRun(ctx, run); err != nil {
		t.Fatalf("first WriteRun() failed: %v", err)
	}
	// Second write with the same ID is silently ignored.
	run.ModelName = "changed"
	if err := s.WriteRun(ctx, run); err != nil {
		t.Fatalf("second WriteRun() failed: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if got.ModelName != "rasch_latent_reg" {
		t.Errorf("ModelName = %q, want first write preserved", got.ModelName)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.GetRun(context.Background(), "missing"); err == nil {
		t.Error("GetRun() on missing run should fail")
	}
}

func TestListRuns_Order(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// UUIDv7-style IDs sort lexically by creation time.
	for _, id := range []string{"run-b", "run-a", "run-c"} {
		if err := s.WriteRun(ctx, createTestRun(id)); err != nil {
			t.Fatalf("WriteRun(%s) failed: %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("ListRuns() returned %d runs, want 3", len(runs))
	}
	for i, want := range []string{"run-a", "run-b", "run-c"} {
		if runs[i].ID != want {
			t.Errorf("runs[%d].ID = %q, want %q", i, runs[i].ID, want)
		}
	}
}
