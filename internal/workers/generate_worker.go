// -----------------------------------------------------------------------
// Generate Worker - Renders vault pages and re-seeds promising references
// -----------------------------------------------------------------------

package workers

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
	"github.com/ternarybob/refnet/internal/models"
	"github.com/ternarybob/refnet/internal/queue"
	"github.com/ternarybob/refnet/internal/vault"
)

const neighborRenderLimit = 200

// GenerateWorker processes generate items: it assembles everything known
// about a paper into its vault page, refreshes the index, and gives a few
// still-placeholder references another shot at the crawl queue.
type GenerateWorker struct {
	papers    interfaces.PaperStorage
	writer    *vault.Writer
	enqueuer  *queue.Enqueuer
	followups int
	maxDepth  int
	logger    arbor.ILogger
}

// Compile-time interface assertion
var _ Handler = (*GenerateWorker)(nil)

// NewGenerateWorker creates the generate stage handler.
func NewGenerateWorker(papers interfaces.PaperStorage, writer *vault.Writer,
	enqueuer *queue.Enqueuer, cfg *common.Config, logger arbor.ILogger) *GenerateWorker {

	return &GenerateWorker{
		papers:    papers,
		writer:    writer,
		enqueuer:  enqueuer,
		followups: cfg.Crawler.FollowupReferences,
		maxDepth:  cfg.Crawler.MaxDepth,
		logger:    logger,
	}
}

func (w *GenerateWorker) Stage() string { return models.StageGenerate }

func (w *GenerateWorker) Handle(ctx context.Context, item *models.QueueItem) error {
	params, err := item.CrawlParams()
	if err != nil {
		return fmt.Errorf("bad generate parameters: %w", err)
	}
	maxHops := params.MaxHops
	if maxHops <= 0 {
		maxHops = w.maxDepth
	}

	doc, err := w.loadDoc(ctx, item.PaperID)
	if err != nil {
		return err
	}

	if err := w.writer.WritePaper(doc); err != nil {
		return err
	}

	stats, err := w.papers.GetStats(ctx)
	if err != nil {
		return err
	}
	if err := w.writer.WriteIndex(stats); err != nil {
		return err
	}
	if err := w.writer.EnsureViewerConfig(); err != nil {
		return err
	}

	w.logger.Info().
		Str("paper_id", item.PaperID).
		Str("title", doc.Paper.Title).
		Msg("Generated vault page")

	if params.HopCount < maxHops {
		return w.followUpReferences(ctx, item.PaperID, params.HopCount, maxHops)
	}
	return nil
}

// loadDoc gathers the paper and everything rendered alongside it.
func (w *GenerateWorker) loadDoc(ctx context.Context, paperID string) (*vault.PaperDoc, error) {
	paper, err := w.papers.GetPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to load paper %s: %w", paperID, err)
	}

	authors, err := w.papers.GetAuthors(ctx, paperID)
	if err != nil {
		return nil, err
	}
	keywords, err := w.papers.GetKeywords(ctx, paperID)
	if err != nil {
		return nil, err
	}
	neighbors, err := w.papers.GetNeighbors(ctx, paperID, neighborRenderLimit)
	if err != nil {
		return nil, err
	}
	externalIDs, err := w.papers.GetExternalIDs(ctx, paperID)
	if err != nil {
		return nil, err
	}

	doc := &vault.PaperDoc{
		Paper:       paper,
		Authors:     authors,
		Keywords:    keywords,
		Neighbors:   neighbors,
		ExternalIDs: externalIDs,
	}

	if paper.VenueID != nil {
		if venue, verr := w.papers.GetVenue(ctx, *paper.VenueID); verr == nil {
			doc.VenueName = venue.Name
		}
	}
	if paper.JournalID != nil {
		if journal, jerr := w.papers.GetJournal(ctx, *paper.JournalID); jerr == nil {
			doc.JournalName = journal.Name
		}
	}
	return doc, nil
}

// followUpReferences re-enqueues a bounded number of this paper's
// references that are still uncrawled placeholders. Citation counts come
// from the placeholder rows, so scoring matches first discovery.
func (w *GenerateWorker) followUpReferences(ctx context.Context, paperID string, hop, maxHops int) error {
	if w.followups <= 0 {
		return nil
	}

	refs, err := w.papers.ListPlaceholderReferences(ctx, paperID, w.followups)
	if err != nil {
		return err
	}

	for _, refID := range refs {
		ref, err := w.papers.GetPaper(ctx, refID)
		if err != nil {
			w.logger.Warn().Err(err).Str("paper_id", refID).Msg("Failed to load placeholder reference")
			continue
		}
		if !queue.ShouldCrawl(hop+1, maxHops, ref.CitationCount) {
			continue
		}
		crawlItem, err := models.NewQueueItem(refID, models.StageCrawl,
			queue.CrawlPriority(hop+1, maxHops, ref.CitationCount),
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
