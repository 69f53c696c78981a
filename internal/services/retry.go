// Package services: retry policy
//
// Both waiting steps of the publish protocol (container status polling and
// the publish call's "not ready" retry) share this explicit bounded-retry
// policy object instead of ad hoc sleep loops, so each can be exercised in
// tests with an injected sleep function and a fake error sequence.
package services

import (
	"context"
	"time"
)

// RetryPolicy describes a bounded retry loop: how many attempts to make,
// how long to wait between them, and which errors are worth retrying.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff returns the delay before the given retry; attempt counts
	// from 1 for the wait after the first failure.
	Backoff func(attempt int) time.Duration
	// Retryable reports whether the error justifies another attempt.
	// A nil predicate retries every error.
	Retryable func(error) bool
	// Sleep waits for d or until the context is done. A nil Sleep uses the
	// real clock; tests inject a recording stub.
	Sleep func(ctx context.Context, d time.Duration) error
}

// LinearBackoff returns a backoff function growing as attempt × base
// (15s, 30s, 45s… for base 15s), the spacing the publish platform expects
// for its "media not yet ready" condition.
func LinearBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return time.Duration(attempt) * base
	}
}

// FixedBackoff returns a constant delay regardless of attempt, used by the
// container status poll loop.
func FixedBackoff(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// Do runs fn until it succeeds, the attempt budget is exhausted, an error
// is not retryable, or the context is cancelled. The last error is
// returned; a cancelled context returns ctx.Err().
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		var d time.Duration
		if p.Backoff != nil {
			d = p.Backoff(attempt)
		}
		if serr := sleep(ctx, d); serr != nil {
			return serr
		}
	}
	return err
}

// sleepCtx blocks for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
