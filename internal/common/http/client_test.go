package http

import (
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-gateway/internal/common/errors"
	"crm-gateway/internal/common/utils"
)

func fastRetry(attempts int) utils.RetryConfig {
	return utils.RetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
}

func buildGet(url string) func(ctx context.Context) (*nethttp.Request, error) {
	return func(ctx context.Context) (*nethttp.Request, error) {
		return nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, url, nil)
	}
}

func TestCaller_Success(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("X-Custom", "yes")
		w.WriteHeader(nethttp.StatusCreated)
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	caller := NewCaller("test", srv.Client(), fastRetry(3), nil)

	resp, err := caller.Do(context.Background(), buildGet(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusCreated, resp.StatusCode)
	assert.Equal(t, "yes", resp.Header.Get("X-Custom"))
	assert.JSONEq(t, `{"id":"1"}`, string(resp.Body))
}

func TestCaller_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(nethttp.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	caller := NewCaller("test", srv.Client(), fastRetry(3), nil)

	_, err := caller.Do(context.Background(), buildGet(srv.URL))
	assert.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCaller_AuthFailureNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(nethttp.StatusUnauthorized)
	}))
	defer srv.Close()

	caller := NewCaller("test", srv.Client(), fastRetry(3), nil)

	_, err := caller.Do(context.Background(), buildGet(srv.URL))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeAuthenticationFailed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCaller_RateLimitRetriedThenSurfaced(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(nethttp.StatusTooManyRequests)
	}))
	defer srv.Close()

	caller := NewCaller("test", srv.Client(), fastRetry(2), nil)

	_, err := caller.Do(context.Background(), buildGet(srv.URL))
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	appErr := errors.AsAppError(err)
	assert.Equal(t, errors.CodeRateLimit, appErr.Code)
	assert.Equal(t, "60", appErr.Details["retryAfter"])
}

func TestCaller_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(nethttp.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"bad field"}`))
	}))
	defer srv.Close()

	caller := NewCaller("test", srv.Client(), fastRetry(3), nil)

	_, err := caller.Do(context.Background(), buildGet(srv.URL))
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	appErr := errors.AsAppError(err)
	assert.Equal(t, errors.CodeAPIError, appErr.Code)
	assert.Equal(t, 422, appErr.Details["providerStatus"])
	assert.Contains(t, appErr.Details["providerDetails"], "bad field")
}

func TestNewHTTPClient_Options(t *testing.T) {
	client := NewHTTPClient(WithTimeout(5 * time.Second))
	assert.Equal(t, 5*time.Second, client.Timeout)
}
