// -----------------------------------------------------------------------
// Crawl Worker - Fetches catalog metadata and expands the citation frontier
// -----------------------------------------------------------------------

package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/catalog"
	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
	"github.com/ternarybob/refnet/internal/models"
	"github.com/ternarybob/refnet/internal/queue"
	"github.com/ternarybob/refnet/internal/storage/sqlite"
)

// CrawlWorker processes crawl items: it pulls one paper's metadata from
// the catalog, persists the node plus its neighbor edges, and enqueues the
// neighbors that clear the depth bound and priority floor.
type CrawlWorker struct {
	papers    interfaces.PaperStorage
	catalog   interfaces.CatalogClient
	enqueuer  *queue.Enqueuer
	staleness time.Duration
	delay     time.Duration
	neighbors int
	maxDepth  int
	logger    arbor.ILogger
}

// Compile-time interface assertion
var _ Handler = (*CrawlWorker)(nil)

// NewCrawlWorker creates the crawl stage handler.
func NewCrawlWorker(papers interfaces.PaperStorage, cat interfaces.CatalogClient,
	enqueuer *queue.Enqueuer, cfg *common.Config, logger arbor.ILogger) *CrawlWorker {

	return &CrawlWorker{
		papers:    papers,
		catalog:   cat,
		enqueuer:  enqueuer,
		staleness: common.Duration(cfg.Crawler.StalenessWindow),
		delay:     time.Duration(cfg.Crawler.DelaySeconds) * time.Second,
		neighbors: cfg.Catalog.NeighborLimit,
		maxDepth:  cfg.Crawler.MaxDepth,
		logger:    logger,
	}
}

func (w *CrawlWorker) Stage() string { return models.StageCrawl }

func (w *CrawlWorker) Handle(ctx context.Context, item *models.QueueItem) error {
	params, err := item.CrawlParams()
	if err != nil {
		return fmt.Errorf("bad crawl parameters: %w", err)
	}
	hop := params.HopCount
	maxHops := params.MaxHops
	if maxHops <= 0 {
		maxHops = w.maxDepth
	}

	if err := w.papers.SetStatus(ctx, item.PaperID, sqlite.StageFieldCrawl, models.StatusRunning, ""); err != nil {
		return err
	}

	// A recently completed crawl is reused rather than re-fetched; only
	// the downstream stages are re-triggered.
	if existing, err := w.papers.GetPaper(ctx, item.PaperID); err == nil &&
		existing.CrawlStatus == models.StatusCompleted &&
		existing.LastCrawledAt != nil &&
		time.Since(*existing.LastCrawledAt) < w.staleness {

		w.logger.Debug().
			Str("paper_id", item.PaperID).
			Str("last_crawled_at", existing.LastCrawledAt.Format(time.RFC3339)).
			Msg("Crawl still fresh, skipping catalog fetch")
		if err := w.papers.SetStatus(ctx, item.PaperID, sqlite.StageFieldCrawl, models.StatusCompleted, ""); err != nil {
			return err
		}
		return w.enqueueNext(ctx, item.PaperID, existing.PDFURL, hop, maxHops)
	}

	cat, err := w.catalog.GetPaper(ctx, item.PaperID)
	if err != nil {
		if catalog.IsNotFound(err) {
			w.logger.Info().Str("paper_id", item.PaperID).Msg("Paper not in catalog")
			if serr := w.papers.SetStatus(ctx, item.PaperID, sqlite.StageFieldCrawl, models.StatusFailed, "not_found"); serr != nil {
				return serr
			}
			// Not retryable, so the queue row lands failed with the
			// not-found reason recorded.
			return err
		}
		w.fail(ctx, item.PaperID, err)
		return err
	}

	if err := w.persistPaper(ctx, cat); err != nil {
		w.fail(ctx, item.PaperID, err)
		return err
	}

	if hop < maxHops {
		if err := w.expandFrontier(ctx, item.PaperID, hop, maxHops); err != nil {
			w.fail(ctx, item.PaperID, err)
			return err
		}
	}

	if err := w.papers.SetStatus(ctx, item.PaperID, sqlite.StageFieldCrawl, models.StatusCompleted, ""); err != nil {
		return err
	}

	w.logger.Info().
		Str("paper_id", item.PaperID).
		Str("title", cat.Title).
		Int("hop", hop).
		Msg("Crawled paper")

	return w.enqueueNext(ctx, item.PaperID, cat.PDFURL, hop, maxHops)
}

// persistPaper writes the paper node and everything hanging off it in
// one transaction, so a crash mid-write never leaves a half-recorded
// paper.
func (w *CrawlWorker) persistPaper(ctx context.Context, cat *interfaces.CatalogPaper) error {
	return w.papers.WithTx(ctx, func(papers interfaces.PaperStorage) error {
		p := models.NewPlaceholderPaper(cat.PaperID)
		p.Title = cat.Title
		p.Abstract = cat.Abstract
		p.Year = cat.Year
		p.CitationCount = cat.CitationCount
		p.ReferenceCount = cat.ReferenceCount
		p.InfluenceScore = cat.InfluenceScore
		p.IsOpenAccess = cat.IsOpenAccess
		p.Language = cat.Language
		p.PDFURL = cat.PDFURL

		if cat.VenueName != "" {
			id, err := papers.UpsertVenue(ctx, cat.VenueName, cat.VenueType)
			if err != nil {
				return err
			}
			p.VenueID = &id
		}
		if cat.JournalName != "" {
			id, err := papers.UpsertJournal(ctx, cat.JournalName)
			if err != nil {
				return err
			}
			p.JournalID = &id
		}

		if err := papers.UpsertPaper(ctx, p); err != nil {
			return err
		}

		for i, a := range cat.Authors {
			if a.AuthorID == "" {
				continue
			}
			author := &models.Author{
				AuthorID:      a.AuthorID,
				Name:          a.Name,
				PaperCount:    a.PaperCount,
				CitationCount: a.CitationCount,
				HIndex:        a.HIndex,
				ORCID:         a.ORCID,
				CreatedAt:     time.Now().UTC(),
				UpdatedAt:     time.Now().UTC(),
			}
			if err := papers.UpsertAuthor(ctx, author); err != nil {
				return err
			}
			if err := papers.LinkAuthor(ctx, cat.PaperID, a.AuthorID, i); err != nil {
				return err
			}
		}

		for idType, value := range cat.ExternalIDs {
			if value == "" {
				continue
			}
			ext := &models.ExternalID{PaperID: cat.PaperID, IDType: idType, ExternalID: value}
			if err := papers.UpsertExternalID(ctx, ext); err != nil {
				return err
			}
		}

		if len(cat.FieldsOfStudy) > 0 {
			kws := make([]*models.Keyword, 0, len(cat.FieldsOfStudy))
			for _, field := range cat.FieldsOfStudy {
				if field == "" {
					continue
				}
				kws = append(kws, &models.Keyword{
					PaperID:   cat.PaperID,
					Keyword:   field,
					Relevance: 0.5,
					Method:    "fields_of_study",
				})
			}
			if len(kws) > 0 {
				if err := papers.ReplaceKeywords(ctx, cat.PaperID, kws); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// expandFrontier pulls both edge directions and enqueues crawl jobs for
// neighbors clearing the priority floor at hop+1.
func (w *CrawlWorker) expandFrontier(ctx context.Context, paperID string, hop, maxHops int) error {
	if err := w.pace(ctx); err != nil {
		return err
	}
	citations, err := w.catalog.GetCitations(ctx, paperID, w.neighbors, 0)
	if err != nil {
		return err
	}
	if err := w.linkNeighbors(ctx, paperID, citations, models.RelationCitation, hop, maxHops); err != nil {
		return err
	}

	if err := w.pace(ctx); err != nil {
		return err
	}
	references, err := w.catalog.GetReferences(ctx, paperID, w.neighbors, 0)
	if err != nil {
		return err
	}
	return w.linkNeighbors(ctx, paperID, references, models.RelationReference, hop, maxHops)
}

func (w *CrawlWorker) linkNeighbors(ctx context.Context, paperID string,
	neighbors []*interfaces.CatalogPaper, relationType string, hop, maxHops int) error {

	for _, n := range neighbors {
		if n.PaperID == "" || n.PaperID == paperID {
			continue
		}

		// Placeholder row: id and counts only, the neighbor's own crawl
		// fills in the rest.
		placeholder := models.NewPlaceholderPaper(n.PaperID)
		placeholder.CitationCount = n.CitationCount
		placeholder.ReferenceCount = n.ReferenceCount
		if err := w.papers.UpsertPaper(ctx, placeholder); err != nil {
			return err
		}

		edge := &models.PaperRelation{
			SourcePaperID: paperID,
			TargetPaperID: n.PaperID,
			RelationType:  relationType,
			HopCount:      hop + 1,
		}
		if err := w.papers.InsertEdge(ctx, edge); err != nil {
			return err
		}

		if !queue.ShouldCrawl(hop+1, maxHops, n.CitationCount) {
			continue
		}
		crawlItem, err := models.NewQueueItem(n.PaperID, models.StageCrawl,
			queue.CrawlPriority(hop+1, maxHops, n.CitationCount),
			models.CrawlParams{HopCount: hop + 1, MaxHops: maxHops})
		if err != nil {
			return err
		}
		if _, err := w.enqueuer.Enqueue(ctx, crawlItem); err != nil {
			return err
		}
	}
	return nil
}

// enqueueNext routes the paper to summarize when a PDF is known, otherwise
// straight to generate. Hop context rides along for the generate followup.
func (w *CrawlWorker) enqueueNext(ctx context.Context, paperID, pdfURL string, hop, maxHops int) error {
	params := models.CrawlParams{HopCount: hop, MaxHops: maxHops}

	stage := models.StageGenerate
	priority := models.PriorityGenerate
	if pdfURL != "" {
		stage = models.StageSummarize
		priority = models.PrioritySummarize
	}

	next, err := models.NewQueueItem(paperID, stage, priority, params)
	if err != nil {
		return err
	}
	_, err = w.enqueuer.Enqueue(ctx, next)
	return err
}

func (w *CrawlWorker) fail(ctx context.Context, paperID string, cause error) {
	if err := w.papers.SetStatus(ctx, paperID, sqlite.StageFieldCrawl, models.StatusFailed, cause.Error()); err != nil {
		w.logger.Warn().Err(err).Str("paper_id", paperID).Msg("Failed to record crawl failure")
	}
}

// pace enforces the minimum interval between catalog calls.
func (w *CrawlWorker) pace(ctx context.Context) error {
	if w.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(w.delay):
		return nil
	}
}
