package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/stimtools/stimopt/pkg/config"
	"github.com/stimtools/stimopt/pkg/logger"
	"github.com/stimtools/stimopt/pkg/models"
	"github.com/stimtools/stimopt/pkg/opt"
)

const defaultPollInterval = 2 * time.Second

// RemoteEngine submits specs to an optimization service and polls the
// job until it reaches a terminal state
type RemoteEngine struct {
	name         string
	client       *Client
	studyID      string
	pollInterval time.Duration
}

// NewRemoteEngine creates a remote engine authenticating with the API key
// from the engine's configured env var
func NewRemoteEngine(cfg *config.Engine) (*RemoteEngine, error) {
	client, err := NewClient(Config{
		BaseURL: cfg.URL,
		APIKey:  GetAPIKey(cfg.APIKeyEnv),
	})
	if err != nil {
		return nil, err
	}

	return NewRemoteEngineWithClient(cfg, client), nil
}

// NewRemoteEngineWithClient creates a remote engine around an existing
// client, used for SSO-authenticated clients
func NewRemoteEngineWithClient(cfg *config.Engine, client *Client) *RemoteEngine {
	return &RemoteEngine{
		name:         cfg.Name,
		client:       client,
		studyID:      cfg.StudyID,
		pollInterval: defaultPollInterval,
	}
}

// Name returns the configured engine name
func (e *RemoteEngine) Name() string {
	return e.name
}

// Client exposes the underlying service client for registry queries
func (e *RemoteEngine) Client() *Client {
	return e.client
}

// ValidateConnection checks that the service is reachable
func (e *RemoteEngine) ValidateConnection(ctx context.Context) error {
	return e.client.Health(ctx)
}

// Optimize submits the spec, waits for the job to finish and fetches the
// solution. Canceling ctx sends a best-effort cancel to the service.
func (e *RemoteEngine) Optimize(ctx context.Context, spec *opt.Optimization) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid optimization spec: %w", err)
	}

	if e.studyID != "" {
		ctx = WithStudyID(ctx, e.studyID)
	}

	// Resolve registry references up front so a typo fails before the
	// job is queued
	if IsLeadfieldRef(spec.Leadfield) {
		name := LeadfieldRefName(spec.Leadfield)
		leadfield, err := e.client.GetLeadfield(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("leadfield %q is not registered with the service: %w", name, err)
		}
		logger.Debugf("Using registered leadfield %s (%s, %d electrodes)",
			leadfield.Name, leadfield.Montage, leadfield.Electrodes)
	}

	started := time.Now()
	job, err := e.client.SubmitOptimization(ctx, &models.SubmitOptimizationRequest{Spec: spec})
	if err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"engine": e.name,
		"job":    job.ID.String(),
	}).Infof("Submitted %s", spec.Name)

	final, err := e.waitForCompletion(ctx, job)
	if err != nil {
		return nil, err
	}

	if final.Status != models.JobCompleted {
		if final.Error != "" {
			return nil, fmt.Errorf("job %s %s: %s", job.ID, final.Status, final.Error)
		}
		return nil, fmt.Errorf("job %s %s", job.ID, final.Status)
	}

	solution, err := e.client.GetSolution(ctx, job.ID.String())
	if err != nil {
		return nil, err
	}

	return &Result{
		RunName:   spec.Name,
		Engine:    e.name,
		JobID:     job.ID.String(),
		Currents:  solution.Currents,
		Targets:   solution.Targets,
		Objective: solution.Objective,
		StartedAt: started,
		Duration:  time.Since(started),
	}, nil
}

func (e *RemoteEngine) waitForCompletion(ctx context.Context, job *models.JobResponse) (*models.JobResponse, error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Detached context so the cancel request survives the canceled ctx
			cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := e.client.CancelJob(cancelCtx, job.ID.String()); err != nil {
				logger.Warnf("Failed to cancel job %s: %v", job.ID, err)
			}
			cancel()
			return nil, ctx.Err()
		case <-ticker.C:
			current, err := e.client.GetJob(ctx, job.ID.String())
			if err != nil {
				return nil, fmt.Errorf("failed to poll job %s: %w", job.ID, err)
			}
			if current.Status.Terminal() {
				return current, nil
			}
			logger.Debugf("Job %s: %s", job.ID, current.Status)
		}
	}
}
