package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/stimtools/stimopt/pkg/engine"
)

// Credential environment variables, for non-interactive use
const (
	EnvEmail    = "STIMOPT_EMAIL"
	EnvPassword = "STIMOPT_PASSWORD"
)

// AuthConfig holds the SSO configuration for an optimization service
type AuthConfig struct {
	KeycloakURL string `json:"keycloak_url"`
	Realm       string `json:"realm"`
	ClientID    string `json:"client_id"`
}

// DefaultAuthConfig returns the stock SSO configuration, honoring
// STIMOPT_AUTH_URL for self-hosted deployments
func DefaultAuthConfig() AuthConfig {
	keycloakURL := os.Getenv("STIMOPT_AUTH_URL")
	if keycloakURL == "" {
		keycloakURL = "https://auth.stimtools.dev"
	}

	return AuthConfig{
		KeycloakURL: keycloakURL,
		Realm:       "stimtools",
		ClientID:    "stimopt-cli",
	}
}

// AuthenticateUser collects credentials and signs in against Keycloak.
// Credentials come from the environment when set, otherwise the user is
// prompted; the password prompt never echoes.
func AuthenticateUser(ctx context.Context, config AuthConfig) (*TokenManager, error) {
	email := os.Getenv(EnvEmail)
	password := os.Getenv(EnvPassword)

	if email == "" || password == "" {
		fmt.Println("🔐 Service Sign-In")
		fmt.Println(strings.Repeat("=", 50))

		if email == "" {
			fmt.Print("Email: ")
			if _, err := fmt.Scanln(&email); err != nil {
				return nil, err
			}
		}

		if password == "" {
			fmt.Print("Password: ")
			passwordBytes, err := term.ReadPassword(syscall.Stdin)
			if err != nil {
				return nil, fmt.Errorf("failed to read password: %w", err)
			}
			fmt.Println()
			password = string(passwordBytes)
		}
	} else {
		fmt.Println("🔐 Using credentials from environment")
	}

	keycloakClient := NewKeycloakClient(KeycloakConfig{
		BaseURL:  config.KeycloakURL,
		Realm:    config.Realm,
		ClientID: config.ClientID,
	})

	fmt.Println("\n🔄 Authenticating...")
	tokenResp, err := keycloakClient.Authenticate(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println("✅ Authentication successful!")

	return NewTokenManager(keycloakClient, tokenResp), nil
}

// CreateAuthenticatedClient creates a service client whose requests carry
// tokens from the manager
func CreateAuthenticatedClient(baseURL string, tokenManager *TokenManager) (*engine.Client, error) {
	return engine.NewClient(engine.Config{
		BaseURL:      baseURL,
		TokenManager: tokenManager,
	})
}
