// -----------------------------------------------------------------------
// Dispatcher - Scheduled queue maintenance: pending repair, lease reclaim,
// terminal purge and stats recompute
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
	"github.com/ternarybob/refnet/internal/models"
)

// Dispatcher runs the periodic maintenance sweeps. Each sweep is also
// callable directly, the cron only provides the cadence.
type Dispatcher struct {
	papers    interfaces.PaperStorage
	queue     interfaces.QueueStorage
	enqueuer  *Enqueuer
	config    *common.DispatcherConfig
	lease     time.Duration
	retention time.Duration
	cron      *cron.Cron
	logger    arbor.ILogger
}

// NewDispatcher creates the maintenance dispatcher.
func NewDispatcher(papers interfaces.PaperStorage, queue interfaces.QueueStorage, enqueuer *Enqueuer, cfg *common.Config, logger arbor.ILogger) *Dispatcher {
	return &Dispatcher{
		papers:    papers,
		queue:     queue,
		enqueuer:  enqueuer,
		config:    &cfg.Dispatcher,
		lease:     common.Duration(cfg.Queue.Lease),
		retention: common.Duration(cfg.Queue.Retention),
		cron:      cron.New(),
		logger:    logger,
	}
}

// Start registers the cron schedules and starts the ticker.
func (d *Dispatcher) Start() error {
	schedules := []struct {
		spec string
		def  string
		run  func()
	}{
		{d.config.PendingSchedule, "*/5 * * * *", func() { d.runLogged("pending sweep", d.RunPendingSweep) }},
		{d.config.ReclaimSchedule, "*/10 * * * *", func() { d.runLogged("lease reclaim", d.RunReclaim) }},
		{d.config.PurgeSchedule, "0 3 * * *", func() { d.runLogged("terminal purge", d.RunPurge) }},
		{d.config.StatsSchedule, "0 * * * *", func() { d.runLogged("stats recompute", d.RunStats) }},
	}

	for _, s := range schedules {
		spec := s.spec
		if spec == "" {
			spec = s.def
		}
		if _, err := d.cron.AddFunc(spec, s.run); err != nil {
			return err
		}
	}

	d.cron.Start()
	d.logger.Info().Msg("Dispatcher started")
	return nil
}

// Stop halts the cron ticker; running sweeps finish.
func (d *Dispatcher) Stop() {
	ctx := d.cron.Stop()
	<-ctx.Done()
	d.logger.Info().Msg("Dispatcher stopped")
}

func (d *Dispatcher) runLogged(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := fn(ctx); err != nil {
		d.logger.Error().Err(err).Str("sweep", name).Msg("Dispatcher sweep failed")
	}
}

// RunPendingSweep re-enqueues papers owed a summarize run that lost their
// queue row (crash between status write and enqueue). Crawl rows are not
// repairable this way: a placeholder's pending crawl status is the normal
// frontier state and its hop distance is only known at discovery time.
// Generate items are re-created by the summarize completion path.
func (d *Dispatcher) RunPendingSweep(ctx context.Context) error {
	limit := d.config.PendingLimit
	if limit <= 0 {
		limit = 100
	}

	papers, err := d.papers.ListPendingPapers(ctx, "summary", limit)
	if err != nil {
		return err
	}

	repaired := 0
	for _, p := range papers {
		if p.CrawlStatus != models.StatusCompleted || p.PDFURL == "" {
			continue
		}
		if p.PDFStatus != models.StatusPending && p.PDFStatus != models.StatusRunning {
			continue
		}

		busy, err := d.queue.HasNonTerminal(ctx, p.PaperID, models.StageSummarize)
		if err != nil {
			return err
		}
		if busy {
			continue
		}

		item, err := models.NewQueueItem(p.PaperID, models.StageSummarize, models.PrioritySummarize, nil)
		if err != nil {
			return err
		}
		if _, err := d.enqueuer.Enqueue(ctx, item); err != nil {
			return err
		}
		repaired++
	}

	if repaired > 0 {
		d.logger.Info().Int("repaired", repaired).Msg("Re-enqueued orphaned summarize work")
	}
	return nil
}

// RunReclaim reverts expired running leases.
func (d *Dispatcher) RunReclaim(ctx context.Context) error {
	lease := d.lease
	if lease <= 0 {
		lease = 30 * time.Minute
	}
	_, err := d.queue.Reclaim(ctx, lease)
	return err
}

// RunPurge deletes terminal rows past retention.
func (d *Dispatcher) RunPurge(ctx context.Context) error {
	retention := d.retention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	n, err := d.queue.Purge(ctx, retention)
	if err != nil {
		return err
	}
	if n > 0 {
		d.logger.Info().Int("purged", n).Msg("Purged terminal queue rows")
	}
	return nil
}

// RunStats logs the graph aggregates; the vault index writer renders the
// same numbers on generate.
func (d *Dispatcher) RunStats(ctx context.Context) error {
	stats, err := d.papers.GetStats(ctx)
	if err != nil {
		return err
	}

	counts, err := d.queue.CountByStatus(ctx, "")
	if err != nil {
		return err
	}

	d.logger.Info().
		Int("papers", stats.TotalPapers).
		Int("citations", stats.TotalCitations).
		Int("queue_pending", counts[models.QueuePending]).
		Int("queue_running", counts[models.QueueRunning]).
		Int("queue_failed", counts[models.QueueFailed]).
		Msg("Graph stats")
	return nil
}
