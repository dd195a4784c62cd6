// Package retry wraps fallible calls with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// Policy controls how a call is retried
type Policy struct {
	// MaxAttempts is the total number of calls, including the first one
	MaxAttempts int

	// InitialDelay is the wait before the second attempt
	InitialDelay time.Duration

	// Multiplier scales the delay after every failed attempt
	Multiplier float64

	// MaxDelay caps a single wait; zero means no cap
	MaxDelay time.Duration

	// NoRetry marks errors that must be returned without further attempts
	NoRetry func(error) bool

	// OnRetry is called before each wait with the failed attempt's error
	OnRetry func(err error, wait time.Duration)
}

// Do calls fn until it succeeds, the policy is exhausted, NoRetry matches, or
// ctx is done. It returns the last error seen.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = p.InitialDelay
	expBackoff.RandomizationFactor = 0
	expBackoff.Multiplier = p.Multiplier
	if expBackoff.Multiplier < 1 {
		expBackoff.Multiplier = 1
	}
	expBackoff.MaxInterval = p.MaxDelay
	if expBackoff.MaxInterval <= 0 {
		expBackoff.MaxInterval = time.Duration(1<<63 - 1)
	}
	expBackoff.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(attempts-1)), ctx)

	var lastErr error
	operation := func() error {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return backoff.Permanent(lastErr)
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if p.NoRetry != nil && p.NoRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = p.OnRetry
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
