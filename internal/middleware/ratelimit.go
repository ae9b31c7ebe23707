package middleware

import (
	"net/http"
	"strconv"

	"crm-gateway/internal/common/errors"
	"crm-gateway/internal/envelope"
	"crm-gateway/internal/ratelimit"
)

// RateLimit rejects requests whose source exceeded the configured window
// with a 429 and an advisory Retry-After header. The limiter itself
// decides between the shared Redis counter and the local fallback.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ratelimit.SourceKey(r)
			if !limiter.Allow(r.Context(), key) {
				retryAfter := limiter.RetryAfterSeconds()
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				envelope.WriteError(w,
					errors.RateLimited("gateway", strconv.Itoa(retryAfter)),
					r.Header.Get("X-Correlation-ID"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
