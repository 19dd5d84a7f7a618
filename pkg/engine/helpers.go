package engine

import (
	"os"
	"time"
)

// NewServiceClient creates a service client with API key authentication.
// This is a convenience wrapper around NewClient.
func NewServiceClient(baseURL string, apiKey string) (*Client, error) {
	cfg := Config{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Timeout: 30 * time.Second,
	}

	return NewClient(cfg)
}

// GetAPIKey retrieves the API key from an environment variable
func GetAPIKey(envVarName string) string {
	if envVarName == "" {
		return ""
	}
	return os.Getenv(envVarName)
}
