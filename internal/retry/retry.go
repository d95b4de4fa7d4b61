// Package retry implements a bounded retry policy with pluggable backoff.
package retry

import (
	"context"
	"time"
)

// BackoffFunc returns the delay to wait after a failed attempt.
// Attempts are counted from zero.
type BackoffFunc func(attempt int) time.Duration

// Exponential doubles the base delay per attempt: base * 2^attempt.
func Exponential(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base << attempt
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy is a bounded retry policy. Every error from the wrapped call is
// treated as transient until attempts are exhausted.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	Sleep       SleepFunc

	// OnRetry fires before each backoff wait with the zero-based attempt
	// index that just failed and its error.
	OnRetry func(attempt int, err error)
}

// Do invokes fn up to MaxAttempts times, waiting Backoff(attempt) between
// attempts. It returns nil on the first success, or the last error once
// attempts are exhausted.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = defaultSleep
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == p.MaxAttempts-1 {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}
		if p.Backoff != nil {
			if err := sleep(ctx, p.Backoff(attempt)); err != nil {
				return err
			}
		}
	}
	return lastErr
}
