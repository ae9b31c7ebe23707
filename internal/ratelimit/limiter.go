// Package ratelimit provides a best-effort per-source throttle. With Redis
// configured it uses a fixed-window counter shared across instances;
// otherwise it falls back to per-key in-process token buckets, which reset
// on cold start and enforce no global guarantee.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"crm-gateway/internal/common/logging"
	"crm-gateway/internal/redis"
)

type Limiter struct {
	redis  *redis.Client
	config *Config
	logger logging.Logger

	mu    sync.Mutex
	local map[string]*localEntry
}

type Config struct {
	DefaultLimit  int           `json:"default_limit"`
	DefaultWindow time.Duration `json:"default_window"`
	Enabled       bool          `json:"enabled"`
}

type localEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// localCleanupAge is how long an idle per-key bucket survives.
const localCleanupAge = 10 * time.Minute

// NewLimiter creates a limiter. redisClient may be nil for local-only mode.
func NewLimiter(redisClient *redis.Client, config *Config, logger logging.Logger) *Limiter {
	if config == nil {
		config = &Config{
			DefaultLimit:  100,
			DefaultWindow: time.Minute,
			Enabled:       true,
		}
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Limiter{
		redis:  redisClient,
		config: config,
		logger: logger,
		local:  make(map[string]*localEntry),
	}
}

// Allow reports whether the keyed source may proceed. Errors from the
// shared counter fail open: a broken Redis should not take the gateway
// down with it.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if !l.config.Enabled || key == "" {
		return true
	}

	if l.redis != nil {
		count, err := l.redis.IncrementWindow(ctx, fmt.Sprintf("rate:%s", key), l.config.DefaultWindow)
		if err != nil {
			l.logger.Warn("Rate limit check failed, allowing request", logging.Err(err))
			return true
		}
		return count <= l.config.DefaultLimit
	}

	return l.localLimiter(key).Allow()
}

// localLimiter gets or creates the in-process bucket for a key.
func (l *Limiter) localLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.local[key]
	if !exists {
		perSecond := rate.Limit(float64(l.config.DefaultLimit) / l.config.DefaultWindow.Seconds())
		entry = &localEntry{
			limiter: rate.NewLimiter(perSecond, l.config.DefaultLimit),
		}
		l.local[key] = entry
		l.cleanupLocked()
	}
	entry.lastUsed = time.Now()

	return entry.limiter
}

// cleanupLocked drops idle buckets. Callers must hold the mutex.
func (l *Limiter) cleanupLocked() {
	cutoff := time.Now().Add(-localCleanupAge)
	for key, entry := range l.local {
		if entry.lastUsed.Before(cutoff) {
			delete(l.local, key)
		}
	}
}

// RetryAfterSeconds is the advisory Retry-After value for rejected calls.
func (l *Limiter) RetryAfterSeconds() int {
	return int(l.config.DefaultWindow.Seconds())
}

// SourceKey derives the rate-limit key for a request from the usual proxy
// headers, falling back to the socket address.
func SourceKey(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.Header.Get("X-Real-IP")
	}
	if ip == "" {
		ip = r.RemoteAddr
	}
	return fmt.Sprintf("ip:%s", ip)
}
