package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Tokens are renewed this long before they actually expire
const refreshMargin = 30 * time.Second

// TokenManager hands out access tokens, refreshing them transparently as
// they approach expiry
type TokenManager struct {
	oidc         *KeycloakClient
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	mu           sync.RWMutex
}

// NewTokenManager creates a token manager seeded with an initial token
func NewTokenManager(oidc *KeycloakClient, tokenResp *TokenResponse) *TokenManager {
	tm := &TokenManager{oidc: oidc}
	tm.Store(tokenResp)
	return tm
}

// GetAccessToken returns a valid access token, refreshing if necessary
func (tm *TokenManager) GetAccessToken(ctx context.Context) (string, error) {
	tm.mu.RLock()
	if tm.fresh() {
		token := tm.accessToken
		tm.mu.RUnlock()
		return token, nil
	}
	tm.mu.RUnlock()

	tm.mu.Lock()
	defer tm.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock
	if tm.fresh() {
		return tm.accessToken, nil
	}

	tokenResp, err := tm.oidc.RefreshToken(ctx, tm.refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	tm.store(tokenResp)

	return tm.accessToken, nil
}

// Store replaces the held tokens, e.g. after a fresh login
func (tm *TokenManager) Store(tokenResp *TokenResponse) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.store(tokenResp)
}

func (tm *TokenManager) store(tokenResp *TokenResponse) {
	tm.accessToken = tokenResp.AccessToken
	tm.refreshToken = tokenResp.RefreshToken
	tm.expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
}

// fresh reports whether the access token is still usable. Callers hold the
// lock.
func (tm *TokenManager) fresh() bool {
	return time.Now().Before(tm.expiresAt.Add(-refreshMargin))
}

// Expired reports whether the access token has passed its expiry
func (tm *TokenManager) Expired() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return time.Now().After(tm.expiresAt)
}
