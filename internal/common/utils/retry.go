// Package utils holds small helpers shared by the external clients.
package utils

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig holds configuration for retry operations with exponential backoff.
//
// Used by the registry clients so that a transient network failure on one
// organisation or postcode does not leave the key unresolved for the run.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial attempt)
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay caps exponential growth of the delay
	MaxDelay time.Duration

	// BackoffFactor is the multiplier applied to the delay after each attempt
	BackoffFactor float64

	// JitterFactor adds up to this fraction of the delay at random (0.0-1.0)
	JitterFactor float64

	// Retryable decides which errors trigger a retry.
	// If nil, all errors are retried.
	Retryable func(error) bool
}

// DefaultRetryConfig returns the retry policy used for external fetches.
//
// Default settings:
//   - MaxAttempts: 3 (initial attempt + 2 retries)
//   - InitialDelay: 500ms
//   - MaxDelay: 10 seconds
//   - BackoffFactor: 2.0
//   - JitterFactor: 0.1
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// RetryWithBackoff executes fn until it succeeds, returns a non-retryable
// error, runs out of attempts or ctx is done.
//
// Returns:
//   - nil if fn succeeds within the attempt limit
//   - the original error if it is not retryable
//   - "retry cancelled" wrapping ctx.Err() if the context ends while waiting
//   - "max retries exceeded" wrapping the last error otherwise
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if config.Retryable != nil && !config.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		wait := delay
		if config.JitterFactor > 0 && delay > 0 {
			wait += time.Duration(rand.Int63n(int64(float64(delay)*config.JitterFactor) + 1))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
