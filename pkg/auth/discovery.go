package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/stimtools/stimopt/pkg/logger"
)

// FetchAuthConfig asks an optimization service for its SSO configuration.
// Services expose it unauthenticated so clients can bootstrap a login.
func FetchAuthConfig(ctx context.Context, serviceURL string) (AuthConfig, error) {
	if _, err := url.Parse(serviceURL); err != nil {
		return AuthConfig{}, fmt.Errorf("invalid service URL: %w", err)
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}

	endpoint := fmt.Sprintf("%s/v1/auth/config", serviceURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return AuthConfig{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return AuthConfig{}, fmt.Errorf("failed to fetch auth config: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Errorf("failed to close response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return AuthConfig{}, fmt.Errorf("failed to fetch auth config: status %d", resp.StatusCode)
	}

	var config AuthConfig
	if err := json.NewDecoder(resp.Body).Decode(&config); err != nil {
		return AuthConfig{}, fmt.Errorf("failed to decode auth config: %w", err)
	}

	if config.KeycloakURL == "" || config.Realm == "" {
		return AuthConfig{}, fmt.Errorf("incomplete auth config in response")
	}
	if config.ClientID == "" {
		config.ClientID = DefaultAuthConfig().ClientID
	}

	return config, nil
}

// AuthenticateWithService signs in using the SSO configuration advertised
// by the service, falling back to the stock configuration when the service
// does not advertise one
func AuthenticateWithService(ctx context.Context, serviceURL string) (*TokenManager, error) {
	config, err := FetchAuthConfig(ctx, serviceURL)
	if err != nil {
		logger.Warnf("Could not fetch auth config from service, using defaults: %v", err)
		config = DefaultAuthConfig()
	}

	return AuthenticateUser(ctx, config)
}
