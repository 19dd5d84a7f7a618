package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/stimtools/stimopt/pkg/logger"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// StudyIDContextKey is the context key for the study scope header
const StudyIDContextKey contextKey = "stimopt-study-id"

// Client is the HTTP client for the optimization service
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	tokenManager TokenManager
}

// TokenManager supplies bearer tokens for SSO-authenticated clients
type TokenManager interface {
	GetAccessToken(ctx context.Context) (string, error)
}

// Config holds the configuration for the service client
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	TokenManager TokenManager // Optional: for SSO authentication
}

// NewClient creates a new service client with the given configuration
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:      u.String(),
		apiKey:       cfg.APIKey,
		tokenManager: cfg.TokenManager,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// doRequest performs an HTTP request with authentication and error handling
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	fullURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	// Scope the request to a study when one is set in the context
	if studyID, ok := ctx.Value(StudyIDContextKey).(string); ok && studyID != "" {
		req.Header.Set("X-Study-ID", studyID)
	}

	if c.tokenManager != nil {
		token, err := c.tokenManager.GetAccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	} else if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer closeBody(resp.Body)
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return resp, nil
}

// decodeResponse decodes a JSON response into the provided interface
func decodeResponse(resp *http.Response, v interface{}) error {
	defer closeBody(resp.Body)

	if v == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logger.Errorf("failed to close response body: %v", err)
	}
}

// Health checks that the optimization service is reachable and serving
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/health", nil)
	if err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}
	return decodeResponse(resp, nil)
}

// WithStudyID returns a new context with the study scope set
func WithStudyID(ctx context.Context, studyID string) context.Context {
	return context.WithValue(ctx, StudyIDContextKey, studyID)
}
