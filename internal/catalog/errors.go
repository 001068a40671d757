package catalog

import (
	"errors"
	"fmt"
)

// Kind classifies a catalog failure for the retry policy.
type Kind int

const (
	// KindNotFound - the catalog has no such paper. Terminal.
	KindNotFound Kind = iota
	// KindRateLimited - 429 after exhausting the attempt budget. Retryable
	// through the queue after backoff.
	KindRateLimited
	// KindTransient - network error or 5xx after exhausting the attempt
	// budget. Retryable through the queue after backoff.
	KindTransient
	// KindPermanent - non-404 4xx or a malformed response. Terminal.
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	default:
		return "permanent"
	}
}

// Error is the typed error returned by all catalog operations.
type Error struct {
	Kind       Kind
	StatusCode int
	Op         string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %s: %s (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("catalog %s: %s (status %d)", e.Op, e.Kind, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the queue should retry the job after backoff.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTransient
}

// KindOf extracts the failure kind from err, defaulting to KindPermanent
// for errors that did not originate in the catalog client.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindPermanent
}

// IsNotFound reports whether err is a catalog not-found failure.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsRetryable reports whether err warrants a queue-level retry.
func IsRetryable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	return false
}
