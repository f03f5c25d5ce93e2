package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/coverforge/authd/internal/errors"
)

func TestWithRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	out, err := withRetry(context.Background(), retryConfig{Attempts: 3, Backoff: time.Millisecond},
		apperrors.IsValidation,
		func(context.Context) (string, error) {
			calls++
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, calls)
}

func TestWithRetryTerminalErrorShortCircuits(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), retryConfig{Attempts: 3, Backoff: time.Millisecond},
		apperrors.IsValidation,
		func(context.Context) (string, error) {
			calls++
			return "", apperrors.ValidationField("password", "Password should be at least 8 characters")
		})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 1, calls, "terminal errors must not be retried")
}

func TestWithRetryRetriesTransientUntilBudget(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), retryConfig{Attempts: 3, Backoff: time.Millisecond},
		apperrors.IsValidation,
		func(context.Context) (string, error) {
			calls++
			return "", apperrors.Transient("connection reset")
		})

	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	assert.Equal(t, 3, calls)
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	out, err := withRetry(context.Background(), retryConfig{Attempts: 3, Backoff: time.Millisecond},
		nil,
		func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, apperrors.Transient("flaky")
			}
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, 3, calls)
}

func TestWithRetryLinearBackoff(t *testing.T) {
	backoff := 20 * time.Millisecond
	start := time.Now()
	calls := 0
	_, _ = withRetry(context.Background(), retryConfig{Attempts: 3, Backoff: backoff},
		nil,
		func(context.Context) (struct{}, error) {
			calls++
			return struct{}{}, apperrors.Transient("nope")
		})
	elapsed := time.Since(start)

	assert.Equal(t, 3, calls)
	// Waits are attempt*backoff: 20ms then 40ms, 60ms total.
	assert.GreaterOrEqual(t, elapsed, 3*backoff)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := withRetry(ctx, retryConfig{Attempts: 5, Backoff: time.Second},
		nil,
		func(context.Context) (struct{}, error) {
			calls++
			return struct{}{}, apperrors.Transient("nope")
		})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithRetryZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), retryConfig{}, nil,
		func(context.Context) (struct{}, error) {
			calls++
			return struct{}{}, apperrors.Transient("nope")
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
