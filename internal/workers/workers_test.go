package workers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/refnet/internal/catalog"
	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
	"github.com/ternarybob/refnet/internal/models"
	"github.com/ternarybob/refnet/internal/queue"
	"github.com/ternarybob/refnet/internal/storage/sqlite"
)

type testEnv struct {
	mgr *sqlite.Manager
	cfg *common.Config
	enq *queue.Enqueuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := common.GetLogger()
	cfg := common.NewDefaultConfig()
	cfg.Crawler.DelaySeconds = 0

	mgr, err := sqlite.NewManager(logger, &common.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "refnet.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	return &testEnv{
		mgr: mgr,
		cfg: cfg,
		enq: queue.NewEnqueuer(mgr.Queue(), queue.NopNotifier{}, logger),
	}
}

// seedPlaceholder writes the minimal paper row a queue item refers to.
func (e *testEnv) seedPlaceholder(t *testing.T, paperID string) {
	t.Helper()
	require.NoError(t, e.mgr.Papers().UpsertPaper(context.Background(),
		models.NewPlaceholderPaper(paperID)))
}

func mustItem(t *testing.T, paperID, stage string, priority int, params any) *models.QueueItem {
	t.Helper()
	item, err := models.NewQueueItem(paperID, stage, priority, params)
	require.NoError(t, err)
	return item
}

// claimNext pulls the highest-priority pending item for a stage, failing
// the test when the queue is empty.
func (e *testEnv) claimNext(t *testing.T, stage string) *models.QueueItem {
	t.Helper()
	item, err := e.mgr.Queue().Claim(context.Background(), stage, "test-worker")
	require.NoError(t, err)
	require.NotNil(t, item, "expected a pending %s item", stage)
	return item
}

// --- fakes ---

type fakeCatalog struct {
	papers     map[string]*interfaces.CatalogPaper
	citations  map[string][]*interfaces.CatalogPaper
	references map[string][]*interfaces.CatalogPaper
	errs       map[string]error

	paperCalls int
	edgeCalls  int
}

var _ interfaces.CatalogClient = (*fakeCatalog)(nil)

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		papers:     map[string]*interfaces.CatalogPaper{},
		citations:  map[string][]*interfaces.CatalogPaper{},
		references: map[string][]*interfaces.CatalogPaper{},
		errs:       map[string]error{},
	}
}

func (f *fakeCatalog) GetPaper(ctx context.Context, paperID string) (*interfaces.CatalogPaper, error) {
	f.paperCalls++
	if err, ok := f.errs[paperID]; ok {
		return nil, err
	}
	if p, ok := f.papers[paperID]; ok {
		return p, nil
	}
	return nil, &catalog.Error{Kind: catalog.KindNotFound, StatusCode: 404, Op: "get_paper"}
}

func (f *fakeCatalog) GetCitations(ctx context.Context, paperID string, limit, offset int) ([]*interfaces.CatalogPaper, error) {
	f.edgeCalls++
	return f.citations[paperID], nil
}

func (f *fakeCatalog) GetReferences(ctx context.Context, paperID string, limit, offset int) ([]*interfaces.CatalogPaper, error) {
	f.edgeCalls++
	return f.references[paperID], nil
}

func (f *fakeCatalog) Search(ctx context.Context, query string, limit int) ([]*interfaces.CatalogPaper, error) {
	return nil, nil
}

type fakeFetcher struct {
	file  *interfaces.PDFFile
	err   error
	calls int
}

var _ interfaces.PDFFetcher = (*fakeFetcher)(nil)

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*interfaces.PDFFile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.file, nil
}

type fakeExtractor struct {
	text string
	err  error
}

var _ interfaces.PDFExtractor = (*fakeExtractor)(nil)

func (f *fakeExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	return f.text, f.err
}

type fakeSummarizer struct {
	summary     string
	keywords    []string
	summaryErr  error
	keywordsErr error
}

var _ interfaces.Summarizer = (*fakeSummarizer)(nil)

func (f *fakeSummarizer) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	return f.summary, f.summaryErr
}

func (f *fakeSummarizer) Keywords(ctx context.Context, text string, k int) ([]string, error) {
	return f.keywords, f.keywordsErr
}

func (f *fakeSummarizer) Model() string { return "fake-model-1" }
func (f *fakeSummarizer) Close() error  { return nil }

type memCache struct {
	blobs map[string][]byte
}

var _ interfaces.PDFCache = (*memCache)(nil)

func newMemCache() *memCache { return &memCache{blobs: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, hash string) ([]byte, bool, error) {
	data, ok := c.blobs[hash]
	return data, ok, nil
}

func (c *memCache) Put(ctx context.Context, hash string, data []byte) error {
	c.blobs[hash] = data
	return nil
}

func (c *memCache) Close() error { return nil }
