// Package retry re-runs a unit of work that lost a concurrency race, with exponential backoff and jitter.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/marketplace-escrow-ledger/internal/config"
)

// Policy bounds how often and how fast an operation is retried
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// FromConfig builds a Policy from RETRY_* settings
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
	}
}

// Do calls fn until it succeeds, returns an error retryable rejects, runs out of attempts
// or ctx is cancelled. onRetry, if set, is called before each new attempt.
func Do(ctx context.Context, p Policy, retryable func(error) bool, onRetry func(err error, attempt int), fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, _ time.Duration) {
		if onRetry != nil {
			onRetry(err, attempt)
		}
	}

	return backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx), notify)
}
