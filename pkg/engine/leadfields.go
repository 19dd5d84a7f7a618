package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/stimtools/stimopt/pkg/models"
)

// LeadfieldRefScheme marks a spec leadfield field as a reference into the
// service's leadfield registry rather than a local file path
const LeadfieldRefScheme = "lf://"

// IsLeadfieldRef reports whether path references a registered leadfield
func IsLeadfieldRef(path string) bool {
	return strings.HasPrefix(path, LeadfieldRefScheme)
}

// LeadfieldRefName extracts the registry name from a leadfield reference
func LeadfieldRefName(path string) string {
	return strings.TrimPrefix(path, LeadfieldRefScheme)
}

// ListLeadfields retrieves the leadfields registered with the service
func (c *Client) ListLeadfields(ctx context.Context) (*models.PaginatedResponse[models.LeadfieldResponse], error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/leadfields", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list leadfields: %w", err)
	}

	var result models.PaginatedResponse[models.LeadfieldResponse]
	if err := decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode leadfield list: %w", err)
	}

	return &result, nil
}

// GetLeadfield retrieves a registered leadfield by name
func (c *Client) GetLeadfield(ctx context.Context, name string) (*models.LeadfieldResponse, error) {
	path := fmt.Sprintf("/v1/leadfields/%s", name)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get leadfield: %w", err)
	}

	var leadfield models.LeadfieldResponse
	if err := decodeResponse(resp, &leadfield); err != nil {
		return nil, fmt.Errorf("failed to decode leadfield response: %w", err)
	}

	return &leadfield, nil
}
