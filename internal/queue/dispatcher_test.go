package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/models"
	"github.com/ternarybob/refnet/internal/storage/sqlite"
)

func newTestDispatcher(t *testing.T, mgr *sqlite.Manager) *Dispatcher {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Dispatcher.PendingLimit = 50
	enqueuer := NewEnqueuer(mgr.Queue(), NopNotifier{}, common.GetLogger())
	return NewDispatcher(mgr.Papers(), mgr.Queue(), enqueuer, cfg, common.GetLogger())
}

func TestPendingSweepRepairsOrphanedSummarize(t *testing.T) {
	mgr := newTestStore(t)
	dispatcher := newTestDispatcher(t, mgr)
	ctx := context.Background()

	// Crawled paper with a known PDF but no summarize queue row.
	p := models.NewPlaceholderPaper("orphan")
	p.Title = "Crawled but lost its queue row"
	p.PDFURL = "https://example.org/orphan.pdf"
	require.NoError(t, mgr.Papers().UpsertPaper(ctx, p))
	require.NoError(t, mgr.Papers().SetStatus(ctx, "orphan", sqlite.StageFieldCrawl, models.StatusCompleted, ""))

	require.NoError(t, dispatcher.RunPendingSweep(ctx))

	busy, err := mgr.Queue().HasNonTerminal(ctx, "orphan", models.StageSummarize)
	require.NoError(t, err)
	assert.True(t, busy)

	item, err := mgr.Queue().Claim(ctx, models.StageSummarize, "worker_1")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "orphan", item.PaperID)
	assert.Equal(t, models.PrioritySummarize, item.Priority)
}

func TestPendingSweepSkipsPapersWithoutPDF(t *testing.T) {
	mgr := newTestStore(t)
	dispatcher := newTestDispatcher(t, mgr)
	ctx := context.Background()

	p := models.NewPlaceholderPaper("no-pdf")
	p.Title = "Crawled, no open-access PDF"
	require.NoError(t, mgr.Papers().UpsertPaper(ctx, p))
	require.NoError(t, mgr.Papers().SetStatus(ctx, "no-pdf", sqlite.StageFieldCrawl, models.StatusCompleted, ""))

	require.NoError(t, dispatcher.RunPendingSweep(ctx))

	busy, err := mgr.Queue().HasNonTerminal(ctx, "no-pdf", models.StageSummarize)
	require.NoError(t, err)
	assert.False(t, busy)
}

func TestPendingSweepSkipsUncrawledPlaceholders(t *testing.T) {
	mgr := newTestStore(t)
	dispatcher := newTestDispatcher(t, mgr)
	ctx := context.Background()

	require.NoError(t, mgr.Papers().UpsertPaper(ctx, models.NewPlaceholderPaper("frontier")))

	require.NoError(t, dispatcher.RunPendingSweep(ctx))

	busy, err := mgr.Queue().HasNonTerminal(ctx, "frontier", models.StageSummarize)
	require.NoError(t, err)
	assert.False(t, busy)

	// Crawl is never repaired by the sweep either.
	busy, err = mgr.Queue().HasNonTerminal(ctx, "frontier", models.StageCrawl)
	require.NoError(t, err)
	assert.False(t, busy)
}

func TestPendingSweepDoesNotDuplicate(t *testing.T) {
	mgr := newTestStore(t)
	dispatcher := newTestDispatcher(t, mgr)
	ctx := context.Background()

	p := models.NewPlaceholderPaper("queued")
	p.Title = "Already queued"
	p.PDFURL = "https://example.org/queued.pdf"
	require.NoError(t, mgr.Papers().UpsertPaper(ctx, p))
	require.NoError(t, mgr.Papers().SetStatus(ctx, "queued", sqlite.StageFieldCrawl, models.StatusCompleted, ""))

	require.NoError(t, dispatcher.RunPendingSweep(ctx))
	require.NoError(t, dispatcher.RunPendingSweep(ctx))

	counts, err := mgr.Queue().CountByStatus(ctx, models.StageSummarize)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.QueuePending])
}

func TestMaintenanceSweepsRunClean(t *testing.T) {
	mgr := newTestStore(t)
	dispatcher := newTestDispatcher(t, mgr)
	ctx := context.Background()

	assert.NoError(t, dispatcher.RunReclaim(ctx))
	assert.NoError(t, dispatcher.RunPurge(ctx))
	assert.NoError(t, dispatcher.RunStats(ctx))
}
