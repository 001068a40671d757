// -----------------------------------------------------------------------
// Retry Classification - Which handler failures earn another queue pass
// -----------------------------------------------------------------------

package workers

import (
	"context"
	"errors"

	"github.com/ternarybob/refnet/internal/catalog"
)

// retryableError marks a failure worth re-enqueueing.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable wraps err so the pool re-enqueues the job with retry_count
// incremented instead of failing it for good.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// shouldRetry reports whether the pool should give the job another pass.
// Catalog errors carry their own taxonomy; a soft-timeout abort is always
// worth retrying.
func shouldRetry(err error) bool {
	var re *retryableError
	if errors.As(err, &re) {
		return true
	}
	if catalog.IsRetryable(err) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
