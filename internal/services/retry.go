package services

import (
	"context"
	"fmt"
	"time"
)

// newTimer starts the wait used between retries and polls. Tests swap it
// for channels they control.
var newTimer = func(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// waitFor waits for d unless ctx is cancelled first.
func waitFor(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}

	fired, stop := newTimer(d)
	defer stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-fired:
		return nil
	}
}

// RetryPolicy retries transient failures with exponential backoff:
// Multiplier * 2^(attempt-1), clamped to [MinWait, MaxWait].
type RetryPolicy struct {
	MaxAttempts int
	Multiplier  time.Duration
	MinWait     time.Duration
	MaxWait     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Multiplier:  time.Second,
		MinWait:     4 * time.Second,
		MaxWait:     10 * time.Second,
	}
}

// Backoff is the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := p.Multiplier
	for i := 1; i < attempt && wait < p.MaxWait; i++ {
		wait *= 2
	}
	if wait < p.MinWait {
		wait = p.MinWait
	}
	if p.MaxWait > 0 && wait > p.MaxWait {
		wait = p.MaxWait
	}
	return wait
}

// withRetry runs op until it succeeds, returns a non-transient error, or
// the attempts run out.
func withRetry[T any](ctx context.Context, p RetryPolicy, op func(context.Context) (T, error), onRetry func(attempt int, wait time.Duration, err error)) (T, error) {
	var zero T
	attempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		wait := p.Backoff(attempt)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}
		if err := waitFor(ctx, wait); err != nil {
			return zero, fmt.Errorf("context cancelled: %w", err)
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
