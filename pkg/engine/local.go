package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/stimtools/stimopt/pkg/config"
	"github.com/stimtools/stimopt/pkg/logger"
	"github.com/stimtools/stimopt/pkg/models"
	"github.com/stimtools/stimopt/pkg/opt"
)

// solutionFile is the solver output parsed after a local run. Older
// solvers that only write mesh artifacts simply don't produce it.
const solutionFile = "solution.json"

// LocalEngine runs the solver binary as a subprocess. The solver is
// invoked as `<command> optimize --spec <file> --output <dir>` and is
// expected to write its artifacts into the output directory.
type LocalEngine struct {
	name      string
	command   string
	outputDir string
}

// NewLocalEngine creates a local engine from its configuration entry
func NewLocalEngine(cfg *config.Engine) *LocalEngine {
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = "optimizations"
	}
	return &LocalEngine{
		name:      cfg.Name,
		command:   cfg.Command,
		outputDir: outputDir,
	}
}

// Name returns the configured engine name
func (e *LocalEngine) Name() string {
	return e.name
}

// ValidateConnection checks that the solver binary resolves on PATH
func (e *LocalEngine) ValidateConnection(ctx context.Context) error {
	if _, err := exec.LookPath(e.command); err != nil {
		return fmt.Errorf("solver binary not found: %w", err)
	}
	return nil
}

// Optimize writes the spec into the run directory, invokes the solver and
// parses the solution it leaves behind
func (e *LocalEngine) Optimize(ctx context.Context, spec *opt.Optimization) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid optimization spec: %w", err)
	}

	if IsLeadfieldRef(spec.Leadfield) {
		return nil, fmt.Errorf("leadfield reference %q requires a remote engine", spec.Leadfield)
	}
	if _, err := os.Stat(spec.Leadfield); err != nil {
		return nil, fmt.Errorf("leadfield not readable: %w", err)
	}

	runDir := filepath.Join(e.outputDir, filepath.FromSlash(spec.Name))
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	specPath := filepath.Join(runDir, "job.yaml")
	if err := opt.Save(spec, specPath); err != nil {
		return nil, fmt.Errorf("failed to write job spec: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"engine": e.name,
		"run":    spec.Name,
	}).Infof("Running %s", e.command)

	started := time.Now()
	cmd := exec.CommandContext(ctx, e.command, "optimize", "--spec", specPath, "--output", runDir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("solver exited with status %d: %s",
				exitErr.ExitCode(), tailOf(output))
		}
		return nil, fmt.Errorf("failed to run solver: %w", err)
	}

	result := &Result{
		RunName:   spec.Name,
		Engine:    e.name,
		OutputDir: runDir,
		StartedAt: started,
		Duration:  time.Since(started),
	}

	solution, err := readSolutionFile(filepath.Join(runDir, solutionFile))
	switch {
	case os.IsNotExist(err):
		logger.Debugf("Solver left no %s in %s", solutionFile, runDir)
	case err != nil:
		return nil, err
	default:
		result.Currents = solution.Currents
		result.Targets = solution.Targets
		result.Objective = solution.Objective
	}

	return result, nil
}

// readSolutionFile parses the solver's solution output. Not-exist errors
// pass through unwrapped so callers can distinguish them.
func readSolutionFile(path string) (*models.SolutionResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var solution models.SolutionResponse
	if err := json.Unmarshal(data, &solution); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &solution, nil
}

// tailOf trims solver output to a readable error suffix
func tailOf(output []byte) string {
	s := strings.TrimSpace(string(output))
	const limit = 2000
	if len(s) > limit {
		return "..." + s[len(s)-limit:]
	}
	return s
}
