package oauth2

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-gateway/internal/common/cache"
	"crm-gateway/internal/common/errors"
)

func newTokenServer(t *testing.T, fetches *int32, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(fetches, 1)

		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		require.Equal(t, "client-id", r.Form.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken: "token-123",
			TokenType:   "Bearer",
			ExpiresIn:   expiresIn,
		})
	}))
}

func newTestManager(srv *httptest.Server) *Manager {
	store := cache.NewLocalCache(time.Hour, time.Hour)
	return NewManager(Config{
		TokenURL:     srv.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}, store, "test", srv.Client(), nil)
}

func TestManager_SingleFetchWhileValid(t *testing.T) {
	var fetches int32
	srv := newTokenServer(t, &fetches, 3600)
	defer srv.Close()

	m := newTestManager(srv)
	ctx := context.Background()

	first, err := m.GetToken(ctx)
	require.NoError(t, err)
	second, err := m.GetToken(ctx)
	require.NoError(t, err)

	assert.Equal(t, "token-123", first.AccessToken)
	assert.Equal(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))
}

func TestManager_ResetForcesRefetch(t *testing.T) {
	var fetches int32
	srv := newTokenServer(t, &fetches, 3600)
	defer srv.Close()

	m := newTestManager(srv)
	ctx := context.Background()

	_, err := m.GetToken(ctx)
	require.NoError(t, err)

	m.Reset(ctx)

	_, err = m.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}

func TestManager_ExpiredTokenRefetched(t *testing.T) {
	var fetches int32
	// expires_in below the refresh skew means the token is already stale.
	srv := newTokenServer(t, &fetches, 1)
	defer srv.Close()

	m := newTestManager(srv)
	ctx := context.Background()

	_, err := m.GetToken(ctx)
	require.NoError(t, err)
	_, err = m.GetToken(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}

func TestManager_AuthorizationHeader(t *testing.T) {
	var fetches int32
	srv := newTokenServer(t, &fetches, 3600)
	defer srv.Close()

	m := newTestManager(srv)

	header, err := m.AuthorizationHeader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer token-123", header)
}

func TestManager_UnauthorizedTokenEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := newTestManager(srv)

	_, err := m.GetToken(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeAuthenticationFailed))
}

func TestManager_TokenEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := newTestManager(srv)

	_, err := m.GetToken(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeAPIError))
}

func TestToken_IsValid(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		token := &Token{AccessToken: "t", ExpiresAt: time.Now().Add(time.Hour)}
		assert.True(t, token.IsValid())
	})

	t.Run("inside refresh skew", func(t *testing.T) {
		token := &Token{AccessToken: "t", ExpiresAt: time.Now().Add(10 * time.Second)}
		assert.False(t, token.IsValid())
	})

	t.Run("expired", func(t *testing.T) {
		token := &Token{AccessToken: "t", ExpiresAt: time.Now().Add(-time.Minute)}
		assert.False(t, token.IsValid())
	})

	t.Run("nil and empty", func(t *testing.T) {
		var token *Token
		assert.False(t, token.IsValid())
		assert.False(t, (&Token{}).IsValid())
	})
}

func TestManager_RefreshIfExpiring(t *testing.T) {
	var fetches int32
	srv := newTokenServer(t, &fetches, 3600)
	defer srv.Close()

	m := newTestManager(srv)
	ctx := context.Background()

	// Nothing cached: the sweep is a no-op.
	require.NoError(t, m.RefreshIfExpiring(ctx, 10*time.Minute))
	assert.Equal(t, int32(0), atomic.LoadInt32(&fetches))

	_, err := m.GetToken(ctx)
	require.NoError(t, err)

	// Fresh token outside the window: still no refresh.
	require.NoError(t, m.RefreshIfExpiring(ctx, 10*time.Minute))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))

	// Window wider than the token lifetime forces a refresh.
	require.NoError(t, m.RefreshIfExpiring(ctx, 2*time.Hour))
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}
