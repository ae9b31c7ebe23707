package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"crm-gateway/internal/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	t.Run("preflight short-circuits", func(t *testing.T) {
		var reachedNext bool
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reachedNext = true
		})

		rec := httptest.NewRecorder()
		CORS(next).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/integrations/airtable/sync", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.False(t, reachedNext)
	})

	t.Run("non-preflight passes through with headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		CORS(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestLogging_PassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	Logging(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(nil, &ratelimit.Config{
		DefaultLimit:  2,
		DefaultWindow: time.Hour,
		Enabled:       true,
	}, nil)

	wrapped := RateLimit(limiter)(okHandler())

	request := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/webhooks/lead", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.9")
		wrapped.ServeHTTP(rec, r)
		return rec
	}

	assert.Equal(t, http.StatusOK, request().Code)
	assert.Equal(t, http.StatusOK, request().Code)

	rec := request()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
}
