// Package oauth2 implements a process-wide OAuth2 client-credentials token
// cache. While a token is valid, sequential callers observe exactly one
// network fetch per expiry window. The backing store is injectable so a
// single-instance deployment uses memory and a multi-instance deployment
// can share tokens through Redis without changing call sites.
package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"crm-gateway/internal/common/cache"
	"crm-gateway/internal/common/errors"
	"crm-gateway/internal/common/logging"
)

// TokenResponse maps the standard OAuth 2.0 token response fields (RFC 6749).
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// Token is the cached representation with an absolute expiry.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// refreshSkew treats tokens as expired slightly early so an in-flight
// request never carries a token that dies mid-call.
const refreshSkew = 30 * time.Second

// IsValid reports whether the token can still be used, honoring the
// refresh skew. Zero-expiry tokens never expire.
func (t *Token) IsValid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Add(refreshSkew).Before(t.ExpiresAt)
}

// ExpiringWithin reports whether the token expires inside the window.
func (t *Token) ExpiringWithin(window time.Duration) bool {
	if t == nil || t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(window).After(t.ExpiresAt)
}

// Config holds the client-credentials parameters for one provider.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Manager caches one provider's access token. Concurrent refreshes are
// collapsed by a mutex with a double check; if two instances race through
// a shared Redis backend anyway, the write is last-write-wins and the
// extra fetch is benign.
type Manager struct {
	mu         sync.Mutex
	config     Config
	store      cache.Cache
	cacheKey   string
	httpClient *http.Client
	logger     logging.Logger
}

// NewManager creates a token manager for one provider. store may be a
// local or Redis-backed cache; key namespaces the token within it.
func NewManager(config Config, store cache.Cache, key string, httpClient *http.Client, logger logging.Logger) *Manager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Manager{
		config:     config,
		store:      store,
		cacheKey:   "oauth2:token:" + key,
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetToken returns a valid access token, fetching a new one only when the
// cached token is absent or expired.
func (m *Manager) GetToken(ctx context.Context) (*Token, error) {
	if token := m.load(ctx); token.IsValid() {
		return token, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have refreshed while we waited on the lock.
	if token := m.load(ctx); token.IsValid() {
		return token, nil
	}

	return m.fetchToken(ctx)
}

// AuthorizationHeader returns a ready-to-use "Bearer <token>" value.
func (m *Manager) AuthorizationHeader(ctx context.Context) (string, error) {
	token, err := m.GetToken(ctx)
	if err != nil {
		return "", err
	}

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return fmt.Sprintf("%s %s", tokenType, token.AccessToken), nil
}

// Reset clears the cache back to empty unconditionally. Used by tests to
// simulate cold starts and by operators to force a re-fetch.
func (m *Manager) Reset(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Delete(ctx, m.cacheKey); err != nil {
		m.logger.Warn("Failed to clear cached token", logging.Err(err))
	}
}

// RefreshIfExpiring proactively replaces a token that expires within the
// window. Called from the periodic sweep so request paths rarely pay the
// token fetch latency.
func (m *Manager) RefreshIfExpiring(ctx context.Context, window time.Duration) error {
	token := m.load(ctx)
	if token == nil || token.AccessToken == "" || !token.ExpiringWithin(window) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if token := m.load(ctx); token.IsValid() && !token.ExpiringWithin(window) {
		return nil
	}

	m.logger.Debug("Proactively refreshing token", logging.String("cache_key", m.cacheKey))
	_, err := m.fetchToken(ctx)
	return err
}

// load reads the cached token; any deserialization problem reads as empty.
func (m *Manager) load(ctx context.Context) *Token {
	data, found := m.store.Get(ctx, m.cacheKey)
	if !found {
		return nil
	}
	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil
	}
	return &token
}

// fetchToken performs one client-credentials POST and caches the result.
// Callers must hold the mutex.
func (m *Manager) fetchToken(ctx context.Context) (*Token, error) {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", m.config.ClientID)
	data.Set("client_secret", m.config.ClientSecret)
	if len(m.config.Scopes) > 0 {
		data.Set("scope", strings.Join(m.config.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.Internal("failed to create token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, errors.Internal("token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Internal("failed to read token response", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errors.AuthenticationFailed("oauth2 token endpoint")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.APIError("oauth2 token endpoint", resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, errors.Internal("failed to parse token response", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.Internal("no access token in response", nil)
	}

	token := &Token{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
	}
	ttl := time.Hour
	if tokenResp.ExpiresIn > 0 {
		ttl = time.Duration(tokenResp.ExpiresIn) * time.Second
	}
	token.ExpiresAt = time.Now().Add(ttl)

	serialized, err := json.Marshal(token)
	if err != nil {
		return nil, errors.Internal("failed to serialize token", err)
	}
	if err := m.store.Set(ctx, m.cacheKey, serialized, ttl); err != nil {
		// A failed cache write costs one extra fetch later, not correctness.
		m.logger.Warn("Failed to cache token", logging.Err(err))
	}

	m.logger.Debug("Fetched new access token",
		logging.String("cache_key", m.cacheKey),
		logging.Any("expires_at", token.ExpiresAt),
	)

	return token, nil
}
