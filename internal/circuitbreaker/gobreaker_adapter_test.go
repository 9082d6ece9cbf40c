package circuitbreaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-insights/internal/common/errors"
	"grant-insights/internal/common/logging"
)

func testConfig(failures int) Config {
	return Config{MaxFailures: failures, Timeout: 50 * time.Millisecond, MaxConcurrentRequests: 1}
}

func TestGoBreakerAdapter(t *testing.T) {
	logger := logging.GetGlobalLogger()

	t.Run("basic operation", func(t *testing.T) {
		cb := NewGoBreaker("test-basic", testConfig(2), logger)
		assert.Equal(t, StateClosed, cb.State())

		require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, "test-basic", cb.Name())
	})

	t.Run("circuit opens after failures", func(t *testing.T) {
		cb := NewGoBreaker("test-failures", testConfig(3), logger)

		for i := 0; i < 3; i++ {
			err := cb.Execute(context.Background(), func() error { return fmt.Errorf("failure %d", i) })
			assert.Error(t, err)
		}
		assert.True(t, cb.IsOpen())

		err := cb.Execute(context.Background(), func() error {
			t.Fatal("should not be called while open")
			return nil
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeLookup))
		assert.Contains(t, err.Error(), "open")
	})

	t.Run("not found does not trip", func(t *testing.T) {
		cb := NewGoBreaker("test-not-found", testConfig(2), logger)

		for i := 0; i < 5; i++ {
			err := cb.Execute(context.Background(), func() error { return errors.NotFoundError("organisation GB-CHC-1") })
			assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
		}
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("half-open then closed", func(t *testing.T) {
		cb := NewGoBreaker("test-half-open", testConfig(2), logger)
		for i := 0; i < 2; i++ {
			_ = cb.Execute(context.Background(), func() error { return fmt.Errorf("failure") })
		}
		require.Equal(t, StateOpen, cb.State())

		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, StateHalfOpen, cb.State())

		require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("cancelled context skips call", func(t *testing.T) {
		cb := NewGoBreaker("test-ctx", testConfig(2), logger)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := cb.Execute(ctx, func() error { called = true; return nil })
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("invalid config falls back to defaults", func(t *testing.T) {
		cb := NewGoBreaker("test-invalid", Config{}, nil)
		for i := 0; i < DefaultConfig().MaxFailures-1; i++ {
			_ = cb.Execute(context.Background(), func() error { return fmt.Errorf("failure") })
		}
		assert.Equal(t, StateClosed, cb.State())
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
