package engine

import (
	"context"
	"fmt"
	"net/http"

	"github.com/stimtools/stimopt/pkg/models"
)

// SubmitOptimization submits a spec to the service and returns the queued job
func (c *Client) SubmitOptimization(ctx context.Context, req *models.SubmitOptimizationRequest) (*models.JobResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/optimizations", req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit optimization: %w", err)
	}

	var job models.JobResponse
	if err := decodeResponse(resp, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job response: %w", err)
	}

	return &job, nil
}

// GetJob retrieves a job by ID
func (c *Client) GetJob(ctx context.Context, jobID string) (*models.JobResponse, error) {
	path := fmt.Sprintf("/v1/optimizations/%s", jobID)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job models.JobResponse
	if err := decodeResponse(resp, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job response: %w", err)
	}

	return &job, nil
}

// GetSolution retrieves the solver output of a completed job
func (c *Client) GetSolution(ctx context.Context, jobID string) (*models.SolutionResponse, error) {
	path := fmt.Sprintf("/v1/optimizations/%s/solution", jobID)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get solution: %w", err)
	}

	var solution models.SolutionResponse
	if err := decodeResponse(resp, &solution); err != nil {
		return nil, fmt.Errorf("failed to decode solution response: %w", err)
	}

	return &solution, nil
}

// CancelJob asks the service to stop a queued or running job
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	path := fmt.Sprintf("/v1/optimizations/%s", jobID)
	resp, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	defer closeBody(resp.Body)

	return nil
}

// ListJobs retrieves a page of the caller's jobs, newest first
func (c *Client) ListJobs(ctx context.Context, page int) (*models.PaginatedResponse[models.JobResponse], error) {
	path := "/v1/optimizations"
	if page > 0 {
		path = fmt.Sprintf("%s?page=%d", path, page)
	}
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	var result models.PaginatedResponse[models.JobResponse]
	if err := decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode job list: %w", err)
	}

	return &result, nil
}
