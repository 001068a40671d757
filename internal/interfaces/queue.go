package interfaces

import (
	"context"
	"time"
)

// QueueNotifier is the thin wake-up broker layered over the durable queue
// table. Notifications are hints only: losing one delays work until the
// next poll tick, it never loses the work itself.
type QueueNotifier interface {
	// Notify signals that a pending row exists for stage. Failures are
	// swallowed: workers fall back to their poll ticker.
	Notify(ctx context.Context, stage string)

	// Wait blocks until a notification for stage arrives or the timeout
	// elapses. Returns false on timeout.
	Wait(ctx context.Context, stage string, timeout time.Duration) (bool, error)

	Close() error
}
