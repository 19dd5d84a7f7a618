package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stimtools/stimopt/pkg/config"
	"github.com/stimtools/stimopt/pkg/opt"
)

func testSpec(leadfield string) *opt.Optimization {
	o := opt.New("optimization/single_target")
	o.Leadfield = leadfield
	o.MaxActiveElectrodes = 8
	target := o.AddTarget()
	target.Position = []float64{-55.4, -20.7, 73.4}
	target.Intensity = 0.2
	return o
}

// writeSolver writes an executable stand-in for the solver binary. It is
// invoked as `solver optimize --spec <file> --output <dir>`.
func writeSolver(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("solver stub requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "tesolve")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("Failed to write solver stub: %v", err)
	}
	return path
}

func writeLeadfield(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leadfield.hdf5")
	if err := os.WriteFile(path, []byte("stub"), 0644); err != nil {
		t.Fatalf("Failed to write leadfield stub: %v", err)
	}
	return path
}

func TestLocalEngineMissingLeadfield(t *testing.T) {
	e := NewLocalEngine(&config.Engine{
		Name:      "local",
		Type:      config.EngineTypeLocal,
		Command:   "tesolve",
		OutputDir: t.TempDir(),
	})

	spec := testSpec(filepath.Join(t.TempDir(), "missing.hdf5"))
	if _, err := e.Optimize(context.Background(), spec); err == nil {
		t.Errorf("Expected error for missing leadfield file")
	}
}

func TestLocalEngineRejectsLeadfieldRef(t *testing.T) {
	e := NewLocalEngine(&config.Engine{
		Name:      "local",
		Type:      config.EngineTypeLocal,
		Command:   "tesolve",
		OutputDir: t.TempDir(),
	})

	spec := testSpec("lf://ernie-10-10")
	_, err := e.Optimize(context.Background(), spec)
	if err == nil {
		t.Fatalf("Expected error for leadfield registry reference")
	}
	if !strings.Contains(err.Error(), "remote engine") {
		t.Errorf("Error should point at remote engines, got: %v", err)
	}
}

func TestLocalEngineRunsSolver(t *testing.T) {
	solver := writeSolver(t, `#!/bin/sh
printf '%s' '{"currents":[{"channel":"F3","current":0.002},{"channel":"F4","current":-0.002}],"targets":[{"position":[-55.4,-20.7,73.4],"intensity":0.21}],"objective":0.042}' > "$5/solution.json"
`)
	outputDir := t.TempDir()

	e := NewLocalEngine(&config.Engine{
		Name:      "local",
		Type:      config.EngineTypeLocal,
		Command:   solver,
		OutputDir: outputDir,
	})

	spec := testSpec(writeLeadfield(t))
	result, err := e.Optimize(context.Background(), spec)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if result.RunName != "optimization/single_target" {
		t.Errorf("Unexpected run name: %s", result.RunName)
	}
	if result.Engine != "local" {
		t.Errorf("Unexpected engine name: %s", result.Engine)
	}

	wantDir := filepath.Join(outputDir, "optimization", "single_target")
	if result.OutputDir != wantDir {
		t.Errorf("Expected output dir %s, got %s", wantDir, result.OutputDir)
	}

	// The spec must have been written for the solver
	if _, err := os.Stat(filepath.Join(wantDir, "job.yaml")); err != nil {
		t.Errorf("Expected job.yaml in run directory: %v", err)
	}

	if len(result.Currents) != 2 {
		t.Fatalf("Expected 2 electrode currents, got %d", len(result.Currents))
	}
	if result.Currents[0].Channel != "F3" || result.Currents[0].Current != 0.002 {
		t.Errorf("Unexpected first electrode: %+v", result.Currents[0])
	}
	if len(result.Targets) != 1 || result.Targets[0].Intensity != 0.21 {
		t.Errorf("Unexpected target metrics: %+v", result.Targets)
	}
	if result.Objective != 0.042 {
		t.Errorf("Expected objective 0.042, got %g", result.Objective)
	}
}

func TestLocalEngineSolverFailure(t *testing.T) {
	solver := writeSolver(t, `#!/bin/sh
echo "leadfield: could not map electrodes" >&2
exit 3
`)

	e := NewLocalEngine(&config.Engine{
		Name:      "local",
		Type:      config.EngineTypeLocal,
		Command:   solver,
		OutputDir: t.TempDir(),
	})

	spec := testSpec(writeLeadfield(t))
	_, err := e.Optimize(context.Background(), spec)
	if err == nil {
		t.Fatalf("Expected error for failing solver")
	}
	if !strings.Contains(err.Error(), "status 3") {
		t.Errorf("Error should carry the exit status, got: %v", err)
	}
	if !strings.Contains(err.Error(), "could not map electrodes") {
		t.Errorf("Error should carry the solver output, got: %v", err)
	}
}

func TestLocalEngineNoSolutionFile(t *testing.T) {
	solver := writeSolver(t, `#!/bin/sh
exit 0
`)

	e := NewLocalEngine(&config.Engine{
		Name:      "local",
		Type:      config.EngineTypeLocal,
		Command:   solver,
		OutputDir: t.TempDir(),
	})

	spec := testSpec(writeLeadfield(t))
	result, err := e.Optimize(context.Background(), spec)
	if err != nil {
		t.Fatalf("Run without solution file should succeed: %v", err)
	}
	if result.Currents != nil {
		t.Errorf("Expected no parsed currents, got %+v", result.Currents)
	}
}

func TestReadSolutionFile(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "solution.json")
	if err := os.WriteFile(valid, []byte(`{"currents":[{"channel":"C3","current":0.001}]}`), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	solution, err := readSolutionFile(valid)
	if err != nil {
		t.Fatalf("Failed to read solution: %v", err)
	}
	if len(solution.Currents) != 1 || solution.Currents[0].Channel != "C3" {
		t.Errorf("Unexpected solution: %+v", solution)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	if _, err := readSolutionFile(corrupt); err == nil {
		t.Errorf("Expected error for corrupt solution file")
	}

	_, err = readSolutionFile(filepath.Join(dir, "absent.json"))
	if !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error to pass through, got: %v", err)
	}
}
