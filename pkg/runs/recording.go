package runs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stimtools/stimopt/pkg/engine"
	"github.com/stimtools/stimopt/pkg/logger"
	"github.com/stimtools/stimopt/pkg/opt"
)

// RecordingEngine wraps an engine so every dispatch leaves a record in the
// store. Protocols run against it like any other engine and stay unaware of
// the bookkeeping.
type RecordingEngine struct {
	engine.Engine

	store    *Store
	protocol string
}

// NewRecordingEngine wraps inner so its dispatches are recorded under the
// given protocol name
func NewRecordingEngine(inner engine.Engine, store *Store, protocol string) *RecordingEngine {
	return &RecordingEngine{
		Engine:   inner,
		store:    store,
		protocol: protocol,
	}
}

// Optimize records the dispatch, runs the wrapped engine and records the
// outcome. Store failures are logged, never surfaced: bookkeeping must not
// take down a run.
func (r *RecordingEngine) Optimize(ctx context.Context, spec *opt.Optimization) (*engine.Result, error) {
	rec := &Record{
		ID:          uuid.New().String(),
		Name:        spec.Name,
		Protocol:    r.protocol,
		Engine:      r.Engine.Name(),
		Status:      StatusRunning,
		Spec:        spec.Clone(),
		SubmittedAt: time.Now().UTC(),
	}
	if err := r.store.Put(rec); err != nil {
		logger.Warnf("Failed to record run %s: %v", rec.ID, err)
	}

	result, err := r.Engine.Optimize(ctx, spec)

	now := time.Now().UTC()
	rec.CompletedAt = &now
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
	} else {
		rec.Status = StatusCompleted
		rec.JobID = result.JobID
		rec.OutputDir = result.OutputDir
		rec.Currents = result.Currents
		rec.Targets = result.Targets
		rec.Objective = result.Objective
	}
	if perr := r.store.Put(rec); perr != nil {
		logger.Warnf("Failed to update run record %s: %v", rec.ID, perr)
	}

	return result, err
}
