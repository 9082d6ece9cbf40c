package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastRetry(attempts int) RetryConfig {
	config := DefaultRetryConfig()
	config.MaxAttempts = attempts
	config.InitialDelay = time.Millisecond
	config.MaxDelay = 5 * time.Millisecond
	return config
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	assert.Equal(t, 3, config.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, config.InitialDelay)
	assert.Equal(t, 2.0, config.BackoffFactor)
	assert.Nil(t, config.Retryable)
}

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastRetry(3), func() error {
		attempts++
		if attempts < 2 {
			return errors.New("temporary error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	testError := errors.New("persistent error")

	err := RetryWithBackoff(context.Background(), fastRetry(3), func() error {
		attempts++
		return testError
	})

	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.ErrorIs(t, err, testError)
}

func TestRetryWithBackoff_NonRetryable(t *testing.T) {
	notFound := errors.New("not found")
	config := fastRetry(5)
	config.Retryable = func(err error) bool { return !errors.Is(err, notFound) }

	attempts := 0
	err := RetryWithBackoff(context.Background(), config, func() error {
		attempts++
		return notFound
	})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, notFound, err)
}

func TestRetryWithBackoff_SingleAttempt(t *testing.T) {
	testError := errors.New("once")
	err := RetryWithBackoff(context.Background(), fastRetry(0), func() error { return testError })
	assert.Equal(t, testError, err)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := fastRetry(5)
	config.InitialDelay = time.Second

	attempts := 0
	err := RetryWithBackoff(ctx, config, func() error {
		attempts++
		cancel()
		return errors.New("fails")
	})

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "retry cancelled")
}
