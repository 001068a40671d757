package workers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/models"
	"github.com/ternarybob/refnet/internal/vault"
)

func newGenerateWorker(t *testing.T, env *testEnv) (*GenerateWorker, *vault.Writer) {
	t.Helper()
	writer, err := vault.NewWriter(&common.VaultConfig{Path: t.TempDir()}, common.GetLogger())
	require.NoError(t, err)
	return NewGenerateWorker(env.mgr.Papers(), writer, env.enq, env.cfg, common.GetLogger()), writer
}

func TestGenerateWorkerWritesVault(t *testing.T) {
	env := newTestEnv(t)
	w, writer := newGenerateWorker(t, env)
	ctx := context.Background()

	year := 2017
	p := models.NewPlaceholderPaper("g1")
	p.Title = "Attention Is All You Need"
	p.Year = &year
	p.Summary = "Attention-only model."
	require.NoError(t, env.mgr.Papers().UpsertPaper(ctx, p))

	item := mustItem(t, "g1", models.StageGenerate, models.PriorityGenerate,
		models.CrawlParams{HopCount: 2, MaxHops: 2})
	require.NoError(t, w.Handle(ctx, item))

	page, err := os.ReadFile(filepath.Join(writer.Path(), "papers", "g1.md"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "# Attention Is All You Need")
	assert.Contains(t, string(page), "Attention-only model.")

	_, err = os.Stat(filepath.Join(writer.Path(), "README.md"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(writer.Path(), ".refnet", "graph.json"))
	assert.NoError(t, err)
}

func TestGenerateWorkerFollowsUpPlaceholderReferences(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Crawler.FollowupReferences = 2
	w, _ := newGenerateWorker(t, env)
	ctx := context.Background()

	p := models.NewPlaceholderPaper("g2")
	p.Title = "Hub Paper"
	require.NoError(t, env.mgr.Papers().UpsertPaper(ctx, p))

	// Three uncrawled references with distinct citation counts; only the
	// two most cited are re-enqueued.
	for id, citations := range map[string]int{"r-big": 50, "r-mid": 5, "r-zero": 0} {
		ref := models.NewPlaceholderPaper(id)
		ref.CitationCount = citations
		require.NoError(t, env.mgr.Papers().UpsertPaper(ctx, ref))
		require.NoError(t, env.mgr.Papers().InsertEdge(ctx, &models.PaperRelation{
			SourcePaperID: "g2", TargetPaperID: id,
			RelationType: models.RelationReference, HopCount: 1,
		}))
	}

	item := mustItem(t, "g2", models.StageGenerate, models.PriorityGenerate,
		models.CrawlParams{HopCount: 0, MaxHops: 2})
	require.NoError(t, w.Handle(ctx, item))

	first := env.claimNext(t, models.StageCrawl)
	assert.Equal(t, "r-big", first.PaperID)
	assert.Equal(t, 38, first.Priority)
	params, err := first.CrawlParams()
	require.NoError(t, err)
	assert.Equal(t, 1, params.HopCount)

	second := env.claimNext(t, models.StageCrawl)
	assert.Equal(t, "r-mid", second.PaperID)

	third, err := env.mgr.Queue().Claim(ctx, models.StageCrawl, "test-worker")
	require.NoError(t, err)
	assert.Nil(t, third, "only the followup budget may be re-enqueued")
}

func TestGenerateWorkerAtDepthBoundSkipsFollowup(t *testing.T) {
	env := newTestEnv(t)
	w, _ := newGenerateWorker(t, env)
	ctx := context.Background()

	p := models.NewPlaceholderPaper("g3")
	p.Title = "Boundary Paper"
	require.NoError(t, env.mgr.Papers().UpsertPaper(ctx, p))

	ref := models.NewPlaceholderPaper("r-edge")
	ref.CitationCount = 100
	require.NoError(t, env.mgr.Papers().UpsertPaper(ctx, ref))
	require.NoError(t, env.mgr.Papers().InsertEdge(ctx, &models.PaperRelation{
		SourcePaperID: "g3", TargetPaperID: "r-edge",
		RelationType: models.RelationReference, HopCount: 2,
	}))

	item := mustItem(t, "g3", models.StageGenerate, models.PriorityGenerate,
		models.CrawlParams{HopCount: 2, MaxHops: 2})
	require.NoError(t, w.Handle(ctx, item))

	claimed, err := env.mgr.Queue().Claim(ctx, models.StageCrawl, "test-worker")
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestGenerateWorkerMissingPaperFails(t *testing.T) {
	env := newTestEnv(t)
	w, _ := newGenerateWorker(t, env)

	item := mustItem(t, "absent", models.StageGenerate, models.PriorityGenerate, nil)
	err := w.Handle(context.Background(), item)
	require.Error(t, err)
	assert.False(t, shouldRetry(err))
}
