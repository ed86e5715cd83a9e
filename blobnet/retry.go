package blobnet

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// RetryPolicy controls how network operations are retried.
// Delays follow base * 2^attempt, capped at MaxDelay, with uniform jitter of
// up to Jitter added to every wait.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration

	// IsRetryable classifies an error as worth retrying. Defaults to
	// retrying only errors marked ErrTransient.
	IsRetryable func(err error) bool

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy is the standard network retry budget.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
		Jitter:      500 * time.Millisecond,
	}
}

// Do runs fn until it succeeds, fails non-retryably, exhausts the attempt
// budget, or ctx expires. Budget exhaustion is reported as
// ErrStorageUnavailable wrapping the last failure; context expiry as
// ErrTimeout.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	retryable := p.IsRetryable
	if retryable == nil {
		retryable = func(err error) bool { return errors.Is(err, ErrTransient) }
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.delay(attempt-1)); err != nil {
				return fmt.Errorf("%w: %v (after %d attempts: %v)", ErrTimeout, err, attempt, lastErr)
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v (last: %v)", ErrTimeout, ctxErr, lastErr)
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("%w: %d attempts exhausted: %w", ErrStorageUnavailable, attempts, lastErr)
}

// delay computes the wait before retry number attempt+1.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
