package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchAuthConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/auth/config" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(AuthConfig{
			KeycloakURL: "https://sso.lab.org",
			Realm:       "neuro",
			ClientID:    "lab-cli",
		})
	}))
	defer server.Close()

	config, err := FetchAuthConfig(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchAuthConfig() error = %v", err)
	}
	if config.KeycloakURL != "https://sso.lab.org" {
		t.Errorf("KeycloakURL = %q", config.KeycloakURL)
	}
	if config.Realm != "neuro" {
		t.Errorf("Realm = %q", config.Realm)
	}
	if config.ClientID != "lab-cli" {
		t.Errorf("ClientID = %q", config.ClientID)
	}
}

func TestFetchAuthConfigFillsClientID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(AuthConfig{
			KeycloakURL: "https://sso.lab.org",
			Realm:       "neuro",
		})
	}))
	defer server.Close()

	config, err := FetchAuthConfig(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchAuthConfig() error = %v", err)
	}
	if config.ClientID != DefaultAuthConfig().ClientID {
		t.Errorf("ClientID = %q, want default", config.ClientID)
	}
}

func TestFetchAuthConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		},
		{
			name: "incomplete config",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(AuthConfig{Realm: "neuro"})
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			if _, err := FetchAuthConfig(context.Background(), server.URL); err == nil {
				t.Error("FetchAuthConfig() should fail")
			}
		})
	}
}
