package errs

import (
	"context"
	"time"
)

// BackoffPolicy computes the wait duration before retry attempt n
// (1-indexed: n is the attempt that just failed).
type BackoffPolicy func(attempt int) time.Duration

// Quadratic is the §4.1/§4.5 retry policy: attempt² seconds.
func Quadratic(attempt int) time.Duration {
	return time.Duration(attempt*attempt) * time.Second
}

// MaxAttempts is the fixed retry budget spec.md §4.1/§4.5/§7 specify for
// every transient-remote retry loop in this system.
const MaxAttempts = 6

// WithBackoff runs fn up to MaxAttempts times, sleeping per policy
// between attempts, retrying only while fn's error is transient (per
// Classify) and ctx is not done. It returns the last error once the
// budget is exhausted, or immediately on a non-transient error.
//
// Grounded on network.Net.KeepConnecting's retry-loop shape: a for loop
// bounded by ctx, a backoff computed from the attempt count, and a
// timer-or-ctx-done select between attempts — generalized here from an
// unbounded reconnect loop to a bounded-attempt retry budget.
func WithBackoff(ctx context.Context, policy BackoffPolicy, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}
		if attempt == MaxAttempts {
			break
		}
		timer := time.NewTimer(policy(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}
