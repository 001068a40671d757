// -----------------------------------------------------------------------
// Worker Pool - Claim-process-complete loop over one queue stage
// -----------------------------------------------------------------------

package workers

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
	"github.com/ternarybob/refnet/internal/models"
	"github.com/ternarybob/refnet/internal/queue"
)

// Handler processes one claimed queue item. A nil return completes the
// item; an error fails it, and retryable errors are re-enqueued while the
// retry budget lasts.
type Handler interface {
	Stage() string
	Handle(ctx context.Context, item *models.QueueItem) error
}

// Pool runs a fixed number of goroutines against one stage of the durable
// queue. Workers block on broker hints between polls; the poll interval
// bounds how stale a lost hint can make them.
type Pool struct {
	handler      Handler
	queue        interfaces.QueueStorage
	notifier     interfaces.QueueNotifier
	enqueuer     *queue.Enqueuer
	concurrency  int
	pollInterval time.Duration
	jobTimeout   time.Duration
	logger       arbor.ILogger

	wg sync.WaitGroup
}

// NewPool creates a pool for the handler's stage.
func NewPool(handler Handler, qs interfaces.QueueStorage, notifier interfaces.QueueNotifier,
	enqueuer *queue.Enqueuer, concurrency int, pollInterval, jobTimeout time.Duration,
	logger arbor.ILogger) *Pool {

	if concurrency < 1 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Pool{
		handler:      handler,
		queue:        qs,
		notifier:     notifier,
		enqueuer:     enqueuer,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		jobTimeout:   jobTimeout,
		logger:       logger,
	}
}

// Start launches the workers. They run until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	stage := p.handler.Stage()
	p.logger.Info().
		Str("stage", stage).
		Int("concurrency", p.concurrency).
		Msg("Starting worker pool")

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.run(ctx, common.NewWorkerID(stage))
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, workerID string) {
	defer p.wg.Done()
	stage := p.handler.Stage()

	for {
		if ctx.Err() != nil {
			return
		}

		item, err := p.queue.Claim(ctx, stage, workerID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn().Err(err).Str("stage", stage).Msg("Failed to claim queue item")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.pollInterval):
			}
			continue
		}

		if item == nil {
			// Queue drained; sleep on the broker until hinted or the poll
			// interval elapses.
			if _, err := p.notifier.Wait(ctx, stage, p.pollInterval); err != nil && ctx.Err() == nil {
				p.logger.Warn().Err(err).Str("stage", stage).Msg("Broker wait failed")
			}
			continue
		}

		p.process(ctx, workerID, item)
	}
}

func (p *Pool) process(ctx context.Context, workerID string, item *models.QueueItem) {
	start := time.Now()

	jobCtx := ctx
	cancel := context.CancelFunc(func() {})
	if p.jobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, p.jobTimeout)
	}
	err := p.handler.Handle(jobCtx, item)
	cancel()
	elapsed := time.Since(start)

	// Completion must land even mid-shutdown, or the row sits running
	// until the lease reclaim.
	finishCtx, finishCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer finishCancel()

	if err == nil {
		if cerr := p.queue.Complete(finishCtx, item.ID, models.QueueCompleted, "", elapsed); cerr != nil {
			p.logger.Warn().Err(cerr).Str("item_id", item.ID).Msg("Failed to complete queue item")
		}
		p.logger.Debug().
			Str("item_id", item.ID).
			Str("paper_id", item.PaperID).
			Str("stage", item.TaskType).
			Str("worker_id", workerID).
			Int64("elapsed_ms", elapsed.Milliseconds()).
			Msg("Job completed")
		return
	}

	p.logger.Warn().
		Err(err).
		Str("item_id", item.ID).
		Str("paper_id", item.PaperID).
		Str("stage", item.TaskType).
		Int("retry_count", item.RetryCount).
		Msg("Job failed")

	if cerr := p.queue.Complete(finishCtx, item.ID, models.QueueFailed, err.Error(), elapsed); cerr != nil {
		p.logger.Warn().Err(cerr).Str("item_id", item.ID).Msg("Failed to fail queue item")
	}

	if shouldRetry(err) && item.RetryCount < item.MaxRetries {
		retry, rerr := models.NewQueueItem(item.PaperID, item.TaskType, item.Priority, nil)
		if rerr != nil {
			p.logger.Error().Err(rerr).Str("paper_id", item.PaperID).Msg("Failed to build retry item")
			return
		}
		retry.Parameters = item.Parameters
		retry.RetryCount = item.RetryCount + 1
		retry.MaxRetries = item.MaxRetries
		if _, rerr := p.enqueuer.Enqueue(finishCtx, retry); rerr != nil {
			p.logger.Error().Err(rerr).Str("paper_id", item.PaperID).Msg("Failed to re-enqueue retry")
		}
	}
}
