package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/stimtools/stimopt/pkg/config"
	"github.com/stimtools/stimopt/pkg/models"
	"github.com/stimtools/stimopt/pkg/opt"
)

// Engine dispatches assembled optimization specs to an external solver.
// Implementations own everything behind the dispatch boundary: the solver
// itself, the leadfield format and the electrode model.
type Engine interface {
	// Name returns the configured engine name
	Name() string

	// ValidateConnection checks that the engine can accept work
	ValidateConnection(ctx context.Context) error

	// Optimize runs the spec to completion and returns the outcome.
	// Blocks until the solver finishes or ctx is canceled.
	Optimize(ctx context.Context, spec *opt.Optimization) (*Result, error)
}

// Result is the outcome of a dispatched optimization
type Result struct {
	// Run name from the dispatched spec
	RunName string
	// Name of the engine that ran it
	Engine string
	// Remote job ID, empty for local runs
	JobID string
	// Local artifact directory, empty for remote runs
	OutputDir string
	// Optimized montage, nil when the solver reported none
	Currents []models.ElectrodeCurrent
	// Achieved field metrics per target
	Targets []models.TargetField
	// Final objective value
	Objective float64
	// Dispatch timing
	StartedAt time.Time
	Duration  time.Duration
}

// New builds an engine from its configuration entry. Remote engines
// authenticate with the API key from the configured env var; use
// NewWithTokenManager for SSO.
func New(cfg *config.Engine) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case config.EngineTypeLocal:
		return NewLocalEngine(cfg), nil
	case config.EngineTypeRemote:
		return NewRemoteEngine(cfg)
	default:
		return nil, fmt.Errorf("unknown engine type %q", cfg.Type)
	}
}

// NewWithTokenManager builds a remote engine that authenticates through
// the given token manager instead of an API key
func NewWithTokenManager(cfg *config.Engine, tm TokenManager) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Type != config.EngineTypeRemote {
		return nil, fmt.Errorf("token authentication requires a remote engine, got type %q", cfg.Type)
	}

	client, err := NewClient(Config{
		BaseURL:      cfg.URL,
		TokenManager: tm,
	})
	if err != nil {
		return nil, err
	}

	return NewRemoteEngineWithClient(cfg, client), nil
}
