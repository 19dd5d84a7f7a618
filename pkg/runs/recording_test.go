package runs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stimtools/stimopt/pkg/engine"
	"github.com/stimtools/stimopt/pkg/models"
	"github.com/stimtools/stimopt/pkg/opt"
)

type stubEngine struct {
	result *engine.Result
	err    error
	calls  int
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) ValidateConnection(ctx context.Context) error { return nil }

func (s *stubEngine) Optimize(ctx context.Context, spec *opt.Optimization) (*engine.Result, error) {
	s.calls++
	return s.result, s.err
}

func recordingSpec() *opt.Optimization {
	spec := opt.New("single_target")
	spec.Leadfield = "leadfield.hdf5"
	target := spec.AddTarget()
	target.Position = []float64{-55.4, -20.7, 73.4}
	return spec
}

func TestRecordingEngineSuccess(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	stub := &stubEngine{
		result: &engine.Result{
			RunName:   "single_target",
			Engine:    "stub",
			OutputDir: "optimizations/single_target",
			Currents: []models.ElectrodeCurrent{
				{Channel: "AF4", Current: 0.002},
				{Channel: "P7", Current: -0.002},
			},
			Objective: 0.87,
		},
	}

	rec := NewRecordingEngine(stub, store, "single_target")
	if _, err := rec.Optimize(context.Background(), recordingSpec()); err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if stub.calls != 1 {
		t.Errorf("wrapped engine called %d times, want 1", stub.calls)
	}

	records, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("List() returned %d records, want 1", len(records))
	}

	got := records[0]
	if got.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, StatusCompleted)
	}
	if got.Protocol != "single_target" {
		t.Errorf("Protocol = %q, want %q", got.Protocol, "single_target")
	}
	if got.Engine != "stub" {
		t.Errorf("Engine = %q, want %q", got.Engine, "stub")
	}
	if len(got.Currents) != 2 {
		t.Errorf("Currents length = %d, want 2", len(got.Currents))
	}
	if got.Objective != 0.87 {
		t.Errorf("Objective = %v, want 0.87", got.Objective)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if got.Spec == nil || got.Spec.Leadfield != "leadfield.hdf5" {
		t.Errorf("Spec snapshot not preserved: %+v", got.Spec)
	}
}

func TestRecordingEngineFailure(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	stub := &stubEngine{err: errors.New("solver exited with status 3")}

	rec := NewRecordingEngine(stub, store, "single_target")
	if _, err := rec.Optimize(context.Background(), recordingSpec()); err == nil {
		t.Fatal("Optimize() should surface the engine error")
	}

	records, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("List() returned %d records, want 1", len(records))
	}
	if records[0].Status != StatusFailed {
		t.Errorf("Status = %q, want %q", records[0].Status, StatusFailed)
	}
	if records[0].Error == "" {
		t.Error("Error not recorded")
	}
}

func TestRecordingEngineSpecSnapshotIsolated(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	stub := &stubEngine{result: &engine.Result{RunName: "single_target", Engine: "stub"}}
	rec := NewRecordingEngine(stub, store, "single_target")

	spec := recordingSpec()
	if _, err := rec.Optimize(context.Background(), spec); err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}

	// Mutating the caller's spec after the run must not touch the record
	spec.Targets[0].Position[0] = 0

	records, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if records[0].Spec.Targets[0].Position[0] != -55.4 {
		t.Errorf("record spec mutated through caller: %v", records[0].Spec.Targets[0].Position)
	}
}
