// -----------------------------------------------------------------------
// Queue Notifier - goqite wake-up hints layered over the durable queue.
// The processing_queue table stays authoritative; a lost or duplicate
// hint costs at most one poll interval.
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"maragu.dev/goqite"

	"github.com/ternarybob/refnet/internal/interfaces"
)

// Notifier implements interfaces.QueueNotifier over one goqite queue per
// stage, sharing the graph store's SQLite handle.
type Notifier struct {
	db         *sql.DB
	visibility time.Duration
	logger     arbor.ILogger

	mu     sync.Mutex
	queues map[string]*goqite.Queue
}

// Compile-time interface assertion
var _ interfaces.QueueNotifier = (*Notifier)(nil)

// NewNotifier sets up the goqite tables and returns the broker.
func NewNotifier(db *sql.DB, visibility time.Duration, logger arbor.ILogger) (*Notifier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := goqite.Setup(ctx, db); err != nil {
		// Expected on subsequent startups
		if !strings.Contains(err.Error(), "already exists") {
			return nil, err
		}
	}

	if visibility <= 0 {
		visibility = 10 * time.Second
	}

	return &Notifier{
		db:         db,
		visibility: visibility,
		logger:     logger,
		queues:     make(map[string]*goqite.Queue),
	}, nil
}

func (n *Notifier) queue(stage string) *goqite.Queue {
	n.mu.Lock()
	defer n.mu.Unlock()

	q, ok := n.queues[stage]
	if !ok {
		q = goqite.New(goqite.NewOpts{
			DB:      n.db,
			Name:    "refnet_" + stage,
			Timeout: n.visibility,
		})
		n.queues[stage] = q
	}
	return q
}

// Notify sends a wake-up hint for the stage. Failures are logged, never
// propagated: workers fall back to their poll ticker.
func (n *Notifier) Notify(ctx context.Context, stage string) {
	if err := n.queue(stage).Send(ctx, goqite.Message{Body: []byte(stage)}); err != nil {
		n.logger.Warn().Err(err).Str("stage", stage).Msg("Failed to send queue hint")
	}
}

// Wait blocks up to timeout for a hint on the stage. Returns true when a
// hint arrived, false on timeout.
func (n *Notifier) Wait(ctx context.Context, stage string, timeout time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := n.queue(stage).ReceiveAndWait(waitCtx, 100*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return false, nil
		}
		return false, err
	}
	if msg == nil {
		return false, nil
	}

	// Hints are single-use
	deleteCtx, cancelDelete := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelDelete()
	if err := n.queue(stage).Delete(deleteCtx, msg.ID); err != nil {
		n.logger.Warn().Err(err).Str("stage", stage).Msg("Failed to delete queue hint")
	}
	return true, nil
}

// Close is a no-op; the broker shares the storage connection.
func (n *Notifier) Close() error {
	return nil
}

// NopNotifier is used when the broker is disabled; workers rely on the
// poll ticker alone.
type NopNotifier struct{}

var _ interfaces.QueueNotifier = (*NopNotifier)(nil)

func (NopNotifier) Notify(ctx context.Context, stage string) {}

func (NopNotifier) Wait(ctx context.Context, stage string, timeout time.Duration) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(timeout):
		return false, nil
	}
}

func (NopNotifier) Close() error { return nil }
