// -----------------------------------------------------------------------
// Retry Policy - Explicit exponential backoff with jitter
// -----------------------------------------------------------------------

package common

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy describes how transient failures are retried. It is an
// explicit value passed to the clients and the queue completion path
// rather than behavior inherited from a base type.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Jitter      float64 // fraction of the delay added as random jitter, e.g. 0.2
}

// NewRetryPolicy builds a policy from validated config.
func NewRetryPolicy(cfg RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: Duration(cfg.BackoffBase),
		BackoffMax:  Duration(cfg.BackoffMax),
		Jitter:      0.2,
	}
}

// Backoff returns the delay before the given 1-based retry attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BackoffBase << (attempt - 1)
	if delay > p.BackoffMax || delay <= 0 {
		delay = p.BackoffMax
	}
	if p.Jitter > 0 {
		delay += time.Duration(rand.Float64() * p.Jitter * float64(delay))
	}
	return delay
}

// Do runs fn up to MaxAttempts times, sleeping the backoff between
// attempts while the error is retryable. Context cancellation interrupts
// the wait and returns the last error.
func (p RetryPolicy) Do(ctx context.Context, retryable func(error) bool, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(p.Backoff(attempt)):
		}
	}
	return err
}
