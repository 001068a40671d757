// -----------------------------------------------------------------------
// Enqueuer - Single enqueue path: durable row first, then wake-up hint
// -----------------------------------------------------------------------

package queue

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/interfaces"
	"github.com/ternarybob/refnet/internal/models"
)

// Enqueuer couples the durable queue with the broker. Every producer
// (ingress, workers, dispatcher) goes through it so the row-then-hint
// ordering holds everywhere.
type Enqueuer struct {
	queue    interfaces.QueueStorage
	notifier interfaces.QueueNotifier
	logger   arbor.ILogger
}

// NewEnqueuer creates the shared enqueue path.
func NewEnqueuer(queue interfaces.QueueStorage, notifier interfaces.QueueNotifier, logger arbor.ILogger) *Enqueuer {
	return &Enqueuer{queue: queue, notifier: notifier, logger: logger}
}

// Enqueue writes the durable row and then hints the stage's workers.
func (e *Enqueuer) Enqueue(ctx context.Context, item *models.QueueItem) (string, error) {
	id, err := e.queue.Enqueue(ctx, item)
	if err != nil {
		return "", err
	}

	e.notifier.Notify(ctx, item.TaskType)

	e.logger.Debug().
		Str("item_id", id).
		Str("paper_id", item.PaperID).
		Str("stage", item.TaskType).
		Int("priority", item.Priority).
		Msg("Enqueued work item")
	return id, nil
}
