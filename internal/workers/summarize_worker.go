// -----------------------------------------------------------------------
// Summarize Worker - PDF fetch, text extraction and AI summarization
// -----------------------------------------------------------------------

package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
	"github.com/ternarybob/refnet/internal/models"
	"github.com/ternarybob/refnet/internal/queue"
	"github.com/ternarybob/refnet/internal/services/llm"
	"github.com/ternarybob/refnet/internal/storage/sqlite"
)

// SummarizeWorker processes summarize items: fetch the paper's PDF (cache
// first), extract its text and run the summarizer. A paper without a
// usable PDF is routed to generate rather than retried.
type SummarizeWorker struct {
	papers     interfaces.PaperStorage
	fetcher    interfaces.PDFFetcher
	extractor  interfaces.PDFExtractor
	cache      interfaces.PDFCache
	summarizer interfaces.Summarizer
	enqueuer   *queue.Enqueuer
	maxTokens  int
	keywords   int
	logger     arbor.ILogger
}

// Compile-time interface assertion
var _ Handler = (*SummarizeWorker)(nil)

// NewSummarizeWorker creates the summarize stage handler.
func NewSummarizeWorker(papers interfaces.PaperStorage, fetcher interfaces.PDFFetcher,
	extractor interfaces.PDFExtractor, cache interfaces.PDFCache,
	summarizer interfaces.Summarizer, enqueuer *queue.Enqueuer,
	cfg *common.Config, logger arbor.ILogger) *SummarizeWorker {

	return &SummarizeWorker{
		papers:     papers,
		fetcher:    fetcher,
		extractor:  extractor,
		cache:      cache,
		summarizer: summarizer,
		enqueuer:   enqueuer,
		maxTokens:  cfg.LLM.MaxTokens,
		keywords:   10,
		logger:     logger,
	}
}

func (w *SummarizeWorker) Stage() string { return models.StageSummarize }

func (w *SummarizeWorker) Handle(ctx context.Context, item *models.QueueItem) error {
	params, err := item.CrawlParams()
	if err != nil {
		return fmt.Errorf("bad summarize parameters: %w", err)
	}

	paper, err := w.papers.GetPaper(ctx, item.PaperID)
	if err != nil {
		return fmt.Errorf("failed to load paper %s: %w", item.PaperID, err)
	}

	if err := w.papers.SetStatus(ctx, paper.PaperID, sqlite.StageFieldPDF, models.StatusRunning, ""); err != nil {
		return err
	}

	data, err := w.obtainPDF(ctx, paper)
	if errors.Is(err, interfaces.ErrPDFUnavailable) {
		w.logger.Info().
			Str("paper_id", paper.PaperID).
			Str("pdf_url", paper.PDFURL).
			Msg("PDF unavailable")
		if serr := w.papers.SetStatus(ctx, paper.PaperID, sqlite.StageFieldPDF, models.StatusUnavailable, err.Error()); serr != nil {
			return serr
		}
		if serr := w.papers.SetStatus(ctx, paper.PaperID, sqlite.StageFieldSummary, models.StatusFailed, "no_pdf"); serr != nil {
			return serr
		}
		return w.enqueueGenerate(ctx, paper.PaperID, params)
	}
	if err != nil {
		w.failStage(ctx, paper.PaperID, sqlite.StageFieldPDF, err)
		return Retryable(err)
	}
	if err := w.papers.SetStatus(ctx, paper.PaperID, sqlite.StageFieldPDF, models.StatusCompleted, ""); err != nil {
		return err
	}

	if err := w.papers.SetStatus(ctx, paper.PaperID, sqlite.StageFieldSummary, models.StatusRunning, ""); err != nil {
		return err
	}

	text, err := w.extractor.ExtractText(ctx, data)
	if err != nil {
		w.failStage(ctx, paper.PaperID, sqlite.StageFieldSummary, err)
		return err
	}
	if text == "" {
		w.logger.Info().Str("paper_id", paper.PaperID).Msg("PDF yielded no usable text")
		if serr := w.papers.SetStatus(ctx, paper.PaperID, sqlite.StageFieldSummary, models.StatusFailed, "extraction_failed"); serr != nil {
			return serr
		}
		return w.enqueueGenerate(ctx, paper.PaperID, params)
	}

	summary, err := w.summarizer.Summarize(ctx, text, w.maxTokens)
	if err != nil {
		w.failStage(ctx, paper.PaperID, sqlite.StageFieldSummary, err)
		// Only transient provider failures earn another queue pass; a bad
		// key or request would fail identically every time.
		if llm.IsRetryable(err) {
			return Retryable(err)
		}
		return err
	}

	now := time.Now().UTC()
	update := models.NewPlaceholderPaper(paper.PaperID)
	update.Summary = summary
	update.SummaryModel = w.summarizer.Model()
	update.SummaryCreatedAt = &now
	if err := w.papers.UpsertPaper(ctx, update); err != nil {
		return err
	}
	if err := w.papers.SetStatus(ctx, paper.PaperID, sqlite.StageFieldSummary, models.StatusCompleted, ""); err != nil {
		return err
	}

	// Keywords are best-effort: a summary without them is still a summary.
	if kws, kerr := w.summarizer.Keywords(ctx, text, w.keywords); kerr != nil {
		w.logger.Warn().Err(kerr).Str("paper_id", paper.PaperID).Msg("Keyword extraction failed")
	} else if len(kws) > 0 {
		records := make([]*models.Keyword, 0, len(kws))
		for i, kw := range kws {
			records = append(records, &models.Keyword{
				PaperID:   paper.PaperID,
				Keyword:   kw,
				Relevance: 1 - float64(i)/float64(len(kws)),
				Method:    "llm",
			})
		}
		if kerr := w.papers.ReplaceKeywords(ctx, paper.PaperID, records); kerr != nil {
			w.logger.Warn().Err(kerr).Str("paper_id", paper.PaperID).Msg("Failed to store keywords")
		}
	}

	w.logger.Info().
		Str("paper_id", paper.PaperID).
		Str("model", w.summarizer.Model()).
		Int("text_bytes", len(text)).
		Msg("Summarized paper")

	return w.enqueueGenerate(ctx, paper.PaperID, params)
}

// obtainPDF returns the PDF bytes, consulting the content-hash cache
// before the network. A fetched file's hash and size are recorded on the
// paper row.
func (w *SummarizeWorker) obtainPDF(ctx context.Context, paper *models.Paper) ([]byte, error) {
	if paper.PDFHash != "" {
		data, ok, err := w.cache.Get(ctx, paper.PDFHash)
		if err != nil {
			w.logger.Warn().Err(err).Str("paper_id", paper.PaperID).Msg("PDF cache read failed")
		} else if ok {
			w.logger.Debug().
				Str("paper_id", paper.PaperID).
				Str("pdf_hash", paper.PDFHash).
				Msg("PDF cache hit")
			return data, nil
		}
	}

	if paper.PDFURL == "" {
		return nil, fmt.Errorf("%w: no pdf url", interfaces.ErrPDFUnavailable)
	}

	file, err := w.fetcher.Fetch(ctx, paper.PDFURL)
	if err != nil {
		return nil, err
	}

	update := models.NewPlaceholderPaper(paper.PaperID)
	update.PDFHash = file.Hash
	update.PDFSize = file.Size
	if uerr := w.papers.UpsertPaper(ctx, update); uerr != nil {
		return nil, uerr
	}
	return file.Data, nil
}

func (w *SummarizeWorker) enqueueGenerate(ctx context.Context, paperID string, params models.CrawlParams) error {
	item, err := models.NewQueueItem(paperID, models.StageGenerate, models.PriorityGenerate, params)
	if err != nil {
		return err
	}
	_, err = w.enqueuer.Enqueue(ctx, item)
	return err
}

func (w *SummarizeWorker) failStage(ctx context.Context, paperID, stage string, cause error) {
	if err := w.papers.SetStatus(ctx, paperID, stage, models.StatusFailed, cause.Error()); err != nil {
		w.logger.Warn().Err(err).Str("paper_id", paperID).Msg("Failed to record stage failure")
	}
}
