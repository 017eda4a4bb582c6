package gcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds an exponential backoff loop.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	// AttemptTimeout caps each attempt; zero leaves the parent deadline alone.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy is four attempts starting at one second, 50s per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, InitialBackoff: time.Second, AttemptTimeout: 50 * time.Second}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry runs op until it succeeds, returns a Permanent error, the attempts
// are exhausted or ctx is done.
func Retry(ctx context.Context, policy RetryPolicy, name string, op func(ctx context.Context) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	backoff := policy.InitialBackoff
	var lastErr error

	for i := 0; i < policy.MaxAttempts; i++ {
		err := func() error {
			attemptCtx := ctx
			if policy.AttemptTimeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, policy.AttemptTimeout)
				defer cancel()
			}
			return op(attemptCtx)
		}()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
		if i == policy.MaxAttempts-1 {
			break
		}

		slog.Warn(
			"Operation failed, will retry.",
			"operation", name,
			"attempt", i+1,
			"maxRetries", policy.MaxAttempts,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "operation", name, "error", ctx.Err())
			return ctx.Err()
		}
	}
	slog.Error("Operation failed after all retries.", "operation", name, "error", lastErr)
	return fmt.Errorf("%s failed after %d attempts: %w", name, policy.MaxAttempts, lastErr)
}
