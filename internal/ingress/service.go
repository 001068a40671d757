// -----------------------------------------------------------------------
// Ingress - Seed intake: the single entry point that starts a crawl
// -----------------------------------------------------------------------

package ingress

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
	"github.com/ternarybob/refnet/internal/models"
	"github.com/ternarybob/refnet/internal/queue"
)

// Service accepts seed papers and hands them to the crawl pipeline. The
// seed gets the maximum priority at hop zero; everything downstream flows
// from the queue.
type Service struct {
	papers   interfaces.PaperStorage
	queue    interfaces.QueueStorage
	catalog  interfaces.CatalogClient
	enqueuer *queue.Enqueuer
	maxDepth int
	logger   arbor.ILogger
}

// CrawlStatus is the progress snapshot for one paper.
type CrawlStatus struct {
	PaperID       string         `json:"paper_id"`
	Title         string         `json:"title,omitempty"`
	CrawlStatus   string         `json:"crawl_status"`
	PDFStatus     string         `json:"pdf_status"`
	SummaryStatus string         `json:"summary_status"`
	Queue         map[string]int `json:"queue"`
}

// NewService creates the ingress service.
func NewService(papers interfaces.PaperStorage, queueStore interfaces.QueueStorage,
	catalog interfaces.CatalogClient, enqueuer *queue.Enqueuer,
	cfg *common.Config, logger arbor.ILogger) *Service {

	return &Service{
		papers:   papers,
		queue:    queueStore,
		catalog:  catalog,
		enqueuer: enqueuer,
		maxDepth: cfg.Crawler.MaxDepth,
		logger:   logger,
	}
}

// StartCrawl seeds a crawl from paperID. maxHops <= 0 falls back to the
// configured depth. Returns the queue item id representing the seed crawl;
// re-seeding an in-flight paper returns the existing item.
func (s *Service) StartCrawl(ctx context.Context, paperID string, maxHops int) (string, error) {
	if paperID == "" {
		return "", fmt.Errorf("seed paper id is required")
	}
	if maxHops <= 0 {
		maxHops = s.maxDepth
	}

	if err := s.papers.UpsertPaper(ctx, models.NewPlaceholderPaper(paperID)); err != nil {
		return "", fmt.Errorf("failed to seed paper %s: %w", paperID, err)
	}

	item, err := models.NewQueueItem(paperID, models.StageCrawl, models.PriorityMax,
		models.CrawlParams{HopCount: 0, MaxHops: maxHops})
	if err != nil {
		return "", err
	}

	taskID, err := s.enqueuer.Enqueue(ctx, item)
	if err != nil {
		return "", err
	}

	s.logger.Info().
		Str("paper_id", paperID).
		Str("task_id", taskID).
		Int("max_hops", maxHops).
		Msg("Crawl seeded")
	return taskID, nil
}

// Status reports a paper's stage statuses plus its queue row counts.
func (s *Service) Status(ctx context.Context, paperID string) (*CrawlStatus, error) {
	paper, err := s.papers.GetPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}

	status := &CrawlStatus{
		PaperID:       paper.PaperID,
		Title:         paper.Title,
		CrawlStatus:   paper.CrawlStatus,
		PDFStatus:     paper.PDFStatus,
		SummaryStatus: paper.SummaryStatus,
		Queue:         map[string]int{},
	}

	for _, stage := range []string{models.StageCrawl, models.StageSummarize, models.StageGenerate} {
		pending, err := s.queue.HasNonTerminal(ctx, paperID, stage)
		if err != nil {
			return nil, err
		}
		if pending {
			status.Queue[stage]++
		}
	}
	return status, nil
}

// Search proxies a free-text catalog query, for picking a seed.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*interfaces.CatalogPaper, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.catalog.Search(ctx, query, limit)
}
