package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-gateway/internal/redis"
)

func newMiniredisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewLimiter_DefaultsWithNilConfig(t *testing.T) {
	limiter := NewLimiter(nil, nil, nil)

	assert.NotNil(t, limiter)
	assert.Equal(t, 100, limiter.config.DefaultLimit)
	assert.Equal(t, time.Minute, limiter.config.DefaultWindow)
	assert.True(t, limiter.config.Enabled)
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(nil, &Config{DefaultLimit: 1, DefaultWindow: time.Minute, Enabled: false}, nil)

	for i := 0; i < 10; i++ {
		assert.True(t, limiter.Allow(context.Background(), "ip:1.2.3.4"))
	}
}

func TestLimiter_RedisFixedWindow(t *testing.T) {
	client := newMiniredisClient(t)
	limiter := NewLimiter(client, &Config{DefaultLimit: 3, DefaultWindow: time.Minute, Enabled: true}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(ctx, "ip:1.2.3.4"), "request %d", i)
	}
	assert.False(t, limiter.Allow(ctx, "ip:1.2.3.4"))

	// Another source has its own counter.
	assert.True(t, limiter.Allow(ctx, "ip:5.6.7.8"))
}

func TestLimiter_RedisFailureFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)

	limiter := NewLimiter(client, &Config{DefaultLimit: 1, DefaultWindow: time.Minute, Enabled: true}, nil)
	ctx := context.Background()

	require.True(t, limiter.Allow(ctx, "ip:1.2.3.4"))

	// A dead Redis must not reject traffic.
	mr.Close()
	assert.True(t, limiter.Allow(ctx, "ip:1.2.3.4"))
	assert.True(t, limiter.Allow(ctx, "ip:1.2.3.4"))
}

func TestLimiter_LocalFallback(t *testing.T) {
	limiter := NewLimiter(nil, &Config{DefaultLimit: 2, DefaultWindow: time.Hour, Enabled: true}, nil)
	ctx := context.Background()

	// The bucket starts full at the limit and refills over the window.
	assert.True(t, limiter.Allow(ctx, "ip:1.2.3.4"))
	assert.True(t, limiter.Allow(ctx, "ip:1.2.3.4"))
	assert.False(t, limiter.Allow(ctx, "ip:1.2.3.4"))

	assert.True(t, limiter.Allow(ctx, "ip:9.9.9.9"))
}

func TestLimiter_EmptyKeyAllowed(t *testing.T) {
	limiter := NewLimiter(nil, &Config{DefaultLimit: 1, DefaultWindow: time.Minute, Enabled: true}, nil)
	assert.True(t, limiter.Allow(context.Background(), ""))
}

func TestLimiter_RetryAfterSeconds(t *testing.T) {
	limiter := NewLimiter(nil, &Config{DefaultLimit: 1, DefaultWindow: 90 * time.Second, Enabled: true}, nil)
	assert.Equal(t, 90, limiter.RetryAfterSeconds())
}

func TestSourceKey(t *testing.T) {
	t.Run("x-forwarded-for", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.7")
		assert.Equal(t, "ip:203.0.113.7", SourceKey(r))
	})

	t.Run("x-real-ip", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", nil)
		r.Header.Set("X-Real-IP", "203.0.113.8")
		assert.Equal(t, "ip:203.0.113.8", SourceKey(r))
	})

	t.Run("remote addr fallback", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", nil)
		r.RemoteAddr = "192.0.2.1:9999"
		assert.Equal(t, "ip:192.0.2.1:9999", SourceKey(r))
	})
}
