package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const tokenPath = "/realms/stimtools/protocol/openid-connect/token"

type fakeKeycloak struct {
	grants       atomic.Int32
	lastGrant    atomic.Value
	rejectLogins bool
}

func (f *fakeKeycloak) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		grant := r.PostForm.Get("grant_type")
		f.grants.Add(1)
		f.lastGrant.Store(grant)

		if r.PostForm.Get("client_id") != "stimopt-cli" {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusBadRequest)
			return
		}

		switch grant {
		case "password":
			if f.rejectLogins || r.PostForm.Get("password") != "hunter2" {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusUnauthorized)
				return
			}
		case "refresh_token":
			if r.PostForm.Get("refresh_token") == "" {
				http.Error(w, `{"error":"invalid_grant","error_description":"missing refresh token"}`, http.StatusBadRequest)
				return
			}
		default:
			http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
			return
		}

		_ = json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "access-" + grant,
			RefreshToken: "refresh-" + grant,
			ExpiresIn:    3600,
			TokenType:    "Bearer",
		})
	})
	return mux
}

func newTestKeycloak(t *testing.T) (*fakeKeycloak, *KeycloakClient) {
	t.Helper()
	fake := &fakeKeycloak{}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	client := NewKeycloakClient(KeycloakConfig{
		BaseURL:  server.URL,
		Realm:    "stimtools",
		ClientID: "stimopt-cli",
	})
	return fake, client
}

func TestAuthenticate(t *testing.T) {
	_, client := newTestKeycloak(t)

	tokenResp, err := client.Authenticate(context.Background(), "user@lab.org", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if tokenResp.AccessToken != "access-password" {
		t.Errorf("AccessToken = %q, want %q", tokenResp.AccessToken, "access-password")
	}
	if tokenResp.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %d, want 3600", tokenResp.ExpiresIn)
	}
}

func TestAuthenticateInvalidCredentials(t *testing.T) {
	_, client := newTestKeycloak(t)

	_, err := client.Authenticate(context.Background(), "user@lab.org", "wrong")
	if err == nil || !strings.Contains(err.Error(), "invalid credentials") {
		t.Errorf("Authenticate() error = %v, want invalid credentials", err)
	}
}

func TestRefreshToken(t *testing.T) {
	_, client := newTestKeycloak(t)

	tokenResp, err := client.RefreshToken(context.Background(), "refresh-password")
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if tokenResp.AccessToken != "access-refresh_token" {
		t.Errorf("AccessToken = %q, want %q", tokenResp.AccessToken, "access-refresh_token")
	}
}

func TestTokenManagerCachesFreshToken(t *testing.T) {
	fake, client := newTestKeycloak(t)

	tm := NewTokenManager(client, &TokenResponse{
		AccessToken:  "seeded",
		RefreshToken: "seeded-refresh",
		ExpiresIn:    3600,
	})

	for i := 0; i < 3; i++ {
		token, err := tm.GetAccessToken(context.Background())
		if err != nil {
			t.Fatalf("GetAccessToken() error = %v", err)
		}
		if token != "seeded" {
			t.Errorf("GetAccessToken() = %q, want seeded token", token)
		}
	}

	if got := fake.grants.Load(); got != 0 {
		t.Errorf("token endpoint hit %d times for a fresh token, want 0", got)
	}
}

func TestTokenManagerRefreshesStaleToken(t *testing.T) {
	fake, client := newTestKeycloak(t)

	// ExpiresIn below the refresh margin means the token is already stale
	tm := NewTokenManager(client, &TokenResponse{
		AccessToken:  "stale",
		RefreshToken: "seeded-refresh",
		ExpiresIn:    1,
	})

	token, err := tm.GetAccessToken(context.Background())
	if err != nil {
		t.Fatalf("GetAccessToken() error = %v", err)
	}
	if token != "access-refresh_token" {
		t.Errorf("GetAccessToken() = %q, want refreshed token", token)
	}
	if grant, _ := fake.lastGrant.Load().(string); grant != "refresh_token" {
		t.Errorf("last grant = %q, want refresh_token", grant)
	}

	// Second call uses the refreshed token without another round trip
	before := fake.grants.Load()
	if _, err := tm.GetAccessToken(context.Background()); err != nil {
		t.Fatalf("GetAccessToken() error = %v", err)
	}
	if got := fake.grants.Load(); got != before {
		t.Errorf("token endpoint hit again after refresh: %d -> %d", before, got)
	}
}

func TestTokenManagerStore(t *testing.T) {
	_, client := newTestKeycloak(t)

	tm := NewTokenManager(client, &TokenResponse{AccessToken: "old", ExpiresIn: 1})
	if !tm.Expired() && tm.fresh() {
		t.Error("short-lived token should not be fresh")
	}

	tm.Store(&TokenResponse{AccessToken: "new", RefreshToken: "new-refresh", ExpiresIn: 3600})

	token, err := tm.GetAccessToken(context.Background())
	if err != nil {
		t.Fatalf("GetAccessToken() error = %v", err)
	}
	if token != "new" {
		t.Errorf("GetAccessToken() = %q, want %q", token, "new")
	}
	if tm.Expired() {
		t.Error("Expired() = true after storing a fresh token")
	}
}
