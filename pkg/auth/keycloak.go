package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stimtools/stimopt/pkg/logger"
)

// KeycloakConfig holds the OIDC endpoint configuration
type KeycloakConfig struct {
	BaseURL  string
	Realm    string
	ClientID string
	Timeout  time.Duration
}

// TokenResponse is the Keycloak token endpoint response
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
}

// KeycloakClient talks to the Keycloak token endpoint
type KeycloakClient struct {
	config     KeycloakConfig
	httpClient *http.Client
}

// NewKeycloakClient creates a new Keycloak client
func NewKeycloakClient(config KeycloakConfig) *KeycloakClient {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &KeycloakClient{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Authenticate performs password-based authentication
func (k *KeycloakClient) Authenticate(ctx context.Context, username, password string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("client_id", k.config.ClientID)
	data.Set("username", username)
	data.Set("password", password)

	return k.requestToken(ctx, data)
}

// RefreshToken exchanges a refresh token for a new access token
func (k *KeycloakClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", k.config.ClientID)
	data.Set("refresh_token", refreshToken)

	return k.requestToken(ctx, data)
}

// requestToken posts a grant to the token endpoint. Both grant types share
// the endpoint and the error envelope.
func (k *KeycloakClient) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.config.BaseURL, k.config.Realm)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Errorf("failed to close response body: %v", cerr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("invalid credentials")
		}

		var errorResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("token request failed: HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("token request failed: %s", errorResp.ErrorDescription)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	return &tokenResp, nil
}
