// Package utils provides utility functions for the CRM gateway: retry with
// exponential backoff and correlation-id generation.
package utils

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"crm-gateway/internal/common/logging"
)

// RetryConfig holds configuration for retry operations with exponential
// backoff. The executor is failure-agnostic: every error is retried up to
// the attempt limit unless RetryableErrors says otherwise, and the final
// attempt's error is returned unchanged so callers can classify it.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial attempt)
	MaxAttempts int

	// BaseDelay is the backoff unit; attempt n waits BaseDelay * 2^n plus jitter
	BaseDelay time.Duration

	// MaxDelay caps exponential growth; zero means no cap
	MaxDelay time.Duration

	// RetryableErrors determines which errors should trigger a retry.
	// If nil, all errors are considered retryable.
	RetryableErrors func(error) bool

	// Logger receives a warning per failed attempt; defaults to the global logger
	Logger logging.Logger
}

// maxJitter bounds the random component added to each backoff delay.
const maxJitter = 100 * time.Millisecond

// DefaultRetryConfig returns a sensible default retry configuration:
// 3 attempts, 250ms base delay, 30s cap, all errors retryable.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    30 * time.Second,
	}
}

// RetryWithBackoff executes fn with exponential backoff. fn receives the
// zero-based attempt index. Between attempts the executor sleeps
// BaseDelay * 2^attempt + jitter(0..100ms), logs a warning with the
// attempt count and computed delay, and honors context cancellation.
// State is local to the call; there is no cross-request retry budget.
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func(attempt int) error) error {
	logger := config.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := fn(attempt); err == nil {
			return nil
		} else {
			lastErr = err

			if config.RetryableErrors != nil && !config.RetryableErrors(err) {
				return err
			}
			if attempt == config.MaxAttempts-1 {
				break
			}
		}

		delay := backoffDelay(config.BaseDelay, attempt, config.MaxDelay)
		logger.Warn("Attempt failed, retrying",
			logging.Int("attempt", attempt+1),
			logging.Int("max_attempts", config.MaxAttempts),
			logging.Duration("delay", delay),
			logging.Err(lastErr),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return lastErr
}

// backoffDelay computes base * 2^attempt + jitter, capped at max.
func backoffDelay(base time.Duration, attempt int, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if max > 0 && delay >= max {
			delay = max
			break
		}
	}
	if max > 0 && delay > max {
		delay = max
	}
	return delay + time.Duration(randomInt64n(int64(maxJitter)))
}

// randomInt64n returns a random int64 in [0, n) using crypto/rand, falling
// back to time-based randomness if the generator fails.
func randomInt64n(n int64) int64 {
	if n <= 0 {
		return 0
	}

	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return time.Now().UnixNano() % n
	}

	val := int64(bytes[0])<<56 | int64(bytes[1])<<48 | int64(bytes[2])<<40 | int64(bytes[3])<<32 |
		int64(bytes[4])<<24 | int64(bytes[5])<<16 | int64(bytes[6])<<8 | int64(bytes[7])

	if val < 0 {
		val = -val
	}

	return val % n
}
