package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/refnet/internal/models"
)

// GraphStats are the aggregates rendered into the vault index.
type GraphStats struct {
	TotalPapers    int
	TotalCitations int
	YearHistogram  map[int]int
	TopCited       []*models.Paper
	MostRecent     []*models.Paper
}

// PaperStorage is the graph side of the store: papers, authors, edges,
// external ids and keywords. All writes run inside transactions; upserts
// are idempotent.
type PaperStorage interface {
	// WithTx runs fn against a store whose writes all land in one
	// transaction; any error rolls the whole batch back. Nested calls
	// join the outer transaction.
	WithTx(ctx context.Context, fn func(PaperStorage) error) error

	// UpsertPaper creates the paper or merges its non-zero fields into the
	// existing row, bumping updated_at.
	UpsertPaper(ctx context.Context, p *models.Paper) error

	GetPaper(ctx context.Context, paperID string) (*models.Paper, error)

	// SetStatus updates one stage's status column, optionally recording an
	// error message, and stamps last_crawled_at when the crawl stage completes.
	SetStatus(ctx context.Context, paperID, stage, status, errMsg string) error

	// ListPendingPapers returns papers whose given stage is pending,
	// ordered by citation count desc then created_at asc.
	ListPendingPapers(ctx context.Context, stage string, limit int) ([]*models.Paper, error)

	UpsertAuthor(ctx context.Context, a *models.Author) error
	LinkAuthor(ctx context.Context, paperID, authorID string, position int) error
	GetAuthors(ctx context.Context, paperID string) ([]*models.Author, error)

	// InsertEdge is a no-op when the (source, target, type) triple exists;
	// hop_count is lowered when the new value is smaller.
	InsertEdge(ctx context.Context, rel *models.PaperRelation) error
	GetNeighbors(ctx context.Context, paperID string, limit int) (*models.Neighbors, error)

	UpsertVenue(ctx context.Context, name, venueType string) (int64, error)
	UpsertJournal(ctx context.Context, name string) (int64, error)
	GetVenue(ctx context.Context, id int64) (*models.Venue, error)
	GetJournal(ctx context.Context, id int64) (*models.Journal, error)

	UpsertExternalID(ctx context.Context, id *models.ExternalID) error
	GetExternalIDs(ctx context.Context, paperID string) ([]*models.ExternalID, error)

	ReplaceKeywords(ctx context.Context, paperID string, kws []*models.Keyword) error
	GetKeywords(ctx context.Context, paperID string) ([]*models.Keyword, error)

	// ListPlaceholderReferences returns up to limit reference targets of
	// paperID whose rows are still placeholders with crawl pending.
	ListPlaceholderReferences(ctx context.Context, paperID string, limit int) ([]string, error)

	GetStats(ctx context.Context) (*GraphStats, error)
}

// QueueStorage is the durable work queue over the processing_queue table.
type QueueStorage interface {
	// Enqueue inserts a pending item unless a non-terminal row for the
	// same (paper, stage) exists, in which case the existing row's
	// priority is raised to the max of old and new. Returns the id of the
	// row that represents the work.
	Enqueue(ctx context.Context, item *models.QueueItem) (string, error)

	// Claim atomically moves the highest-priority pending row for stage to
	// running. Returns nil when the queue is empty.
	Claim(ctx context.Context, stage, workerID string) (*models.QueueItem, error)

	// Complete finishes a running item with completed or failed and
	// records the execution time and error message.
	Complete(ctx context.Context, itemID, status, errMsg string, execTime time.Duration) error

	// Reclaim reverts running rows whose lease expired back to pending
	// with retry_count incremented; rows over max_retries go failed.
	// Returns the number of rows touched.
	Reclaim(ctx context.Context, lease time.Duration) (int, error)

	// Purge deletes terminal rows older than the retention window.
	Purge(ctx context.Context, retention time.Duration) (int, error)

	GetItem(ctx context.Context, itemID string) (*models.QueueItem, error)
	CountByStatus(ctx context.Context, stage string) (map[string]int, error)

	// HasNonTerminal reports whether a pending or running row exists for
	// the (paper, stage) pair.
	HasNonTerminal(ctx context.Context, paperID, stage string) (bool, error)
}

// StorageManager bundles the store facets plus lifecycle.
type StorageManager interface {
	Papers() PaperStorage
	Queue() QueueStorage
	Close() error
}
