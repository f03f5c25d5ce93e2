package service

import (
	"context"
	"time"
)

// retryConfig bounds a retry loop: Attempts total tries with linear backoff
// (attempt × Backoff) between them.
type retryConfig struct {
	Attempts int
	Backoff  time.Duration
}

// withRetry runs op up to cfg.Attempts times. Errors matching terminal are
// returned immediately without further attempts; everything else is retried
// until the budget is spent and the last error is returned.
func withRetry[T any](ctx context.Context, cfg retryConfig, terminal func(error) bool, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if terminal != nil && terminal(err) {
			return zero, err
		}
		lastErr = err

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(time.Duration(attempt) * cfg.Backoff):
			}
		}
	}
	return zero, lastErr
}
