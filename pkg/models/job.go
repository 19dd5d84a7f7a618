package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stimtools/stimopt/pkg/opt"
)

// JobStatus is the lifecycle state of a submitted optimization job
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobCanceled  JobStatus = "CANCELED"
)

// Terminal reports whether the job has finished, successfully or not
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCanceled:
		return true
	}
	return false
}

// SubmitOptimizationRequest is the request body for submitting an
// optimization to the service
type SubmitOptimizationRequest struct {
	// The full optimization specification to solve.
	Spec *opt.Optimization `json:"spec"`
	// Optional free-form labels attached to the job.
	Tags []string `json:"tags,omitempty"`
}

// JobResponse describes a submitted optimization job as returned by the API
type JobResponse struct {
	// The unique identifier of the job.
	ID uuid.UUID `json:"id"`
	// The run name from the submitted spec.
	Name string `json:"name"`
	// The current lifecycle state of the job.
	Status JobStatus `json:"status"`
	// Failure detail, set when the status is FAILED.
	Error string `json:"error,omitempty"`
	// Timestamp indicating when the job was accepted.
	SubmittedAt time.Time `json:"submitted_at"`
	// Timestamp indicating when the solver started. Null while queued.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// Timestamp indicating when the job reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
