// -----------------------------------------------------------------------
// Paper Storage - Citation graph persistence with merge-on-upsert
// -----------------------------------------------------------------------

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/interfaces"
	"github.com/ternarybob/refnet/internal/models"
)

// Stage names accepted by SetStatus, mapping to the papers status columns.
const (
	StageFieldCrawl   = "crawl"
	StageFieldPDF     = "pdf"
	StageFieldSummary = "summary"
)

// dbtx is the querier the store methods run against, satisfied by both
// *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PaperStore implements interfaces.PaperStorage over SQLite.
type PaperStore struct {
	db     *SQLiteDB
	q      dbtx
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.PaperStorage = (*PaperStore)(nil)

// NewPaperStore creates the paper storage facet.
func NewPaperStore(db *SQLiteDB, logger arbor.ILogger) *PaperStore {
	return &PaperStore{db: db, q: db.db, logger: logger}
}

// WithTx runs fn against a store bound to one transaction; any error
// rolls the whole batch back. A nested call joins the outer transaction
// instead of opening a second one, which would deadlock on the single
// connection.
func (s *PaperStore) WithTx(ctx context.Context, fn func(interfaces.PaperStorage) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&PaperStore{db: s.db, q: tx, logger: s.logger}); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertPaper creates the paper or merges its non-zero fields into the
// existing row. Status columns are never merged here; SetStatus owns them.
// The database serializes concurrent upserts of the same primary key.
func (s *PaperStore) UpsertPaper(ctx context.Context, p *models.Paper) error {
	now := time.Now().UTC().Unix()
	created := p.CreatedAt.UTC().Unix()
	if p.CreatedAt.IsZero() {
		created = now
	}

	crawlStatus := orDefault(p.CrawlStatus, models.StatusPending)
	pdfStatus := orDefault(p.PDFStatus, models.StatusPending)
	summaryStatus := orDefault(p.SummaryStatus, models.StatusPending)

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO papers (
			paper_id, title, abstract, year, citation_count, reference_count,
			influence_score, is_open_access, language, venue_id, journal_id,
			pdf_url, pdf_hash, pdf_size, summary, summary_model, summary_created_at,
			crawl_status, pdf_status, summary_status, last_crawled_at,
			created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(paper_id) DO UPDATE SET
			title = CASE WHEN excluded.title <> '' THEN excluded.title ELSE papers.title END,
			abstract = CASE WHEN excluded.abstract <> '' THEN excluded.abstract ELSE papers.abstract END,
			year = COALESCE(excluded.year, papers.year),
			citation_count = CASE WHEN excluded.citation_count > 0 THEN excluded.citation_count ELSE papers.citation_count END,
			reference_count = CASE WHEN excluded.reference_count > 0 THEN excluded.reference_count ELSE papers.reference_count END,
			influence_score = COALESCE(excluded.influence_score, papers.influence_score),
			is_open_access = CASE WHEN excluded.is_open_access <> 0 THEN excluded.is_open_access ELSE papers.is_open_access END,
			language = CASE WHEN excluded.language <> '' THEN excluded.language ELSE papers.language END,
			venue_id = COALESCE(excluded.venue_id, papers.venue_id),
			journal_id = COALESCE(excluded.journal_id, papers.journal_id),
			pdf_url = CASE WHEN excluded.pdf_url <> '' THEN excluded.pdf_url ELSE papers.pdf_url END,
			pdf_hash = CASE WHEN excluded.pdf_hash <> '' THEN excluded.pdf_hash ELSE papers.pdf_hash END,
			pdf_size = CASE WHEN excluded.pdf_size > 0 THEN excluded.pdf_size ELSE papers.pdf_size END,
			summary = CASE WHEN excluded.summary <> '' THEN excluded.summary ELSE papers.summary END,
			summary_model = CASE WHEN excluded.summary_model <> '' THEN excluded.summary_model ELSE papers.summary_model END,
			summary_created_at = COALESCE(excluded.summary_created_at, papers.summary_created_at),
			last_crawled_at = COALESCE(excluded.last_crawled_at, papers.last_crawled_at),
			updated_at = excluded.updated_at`,
		p.PaperID, p.Title, p.Abstract, p.Year, p.CitationCount, p.ReferenceCount,
		p.InfluenceScore, boolToInt(p.IsOpenAccess), p.Language, p.VenueID, p.JournalID,
		p.PDFURL, p.PDFHash, p.PDFSize, p.Summary, p.SummaryModel, nullTime(p.SummaryCreatedAt),
		crawlStatus, pdfStatus, summaryStatus, nullTime(p.LastCrawledAt),
		created, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert paper %s: %w", p.PaperID, err)
	}
	return nil
}

const paperColumns = `paper_id, title, abstract, year, citation_count, reference_count,
	influence_score, is_open_access, language, venue_id, journal_id,
	pdf_url, pdf_hash, pdf_size, summary, summary_model, summary_created_at,
	crawl_status, pdf_status, summary_status, last_crawled_at, created_at, updated_at`

// GetPaper loads one paper, or sql.ErrNoRows when absent.
func (s *PaperStore) GetPaper(ctx context.Context, paperID string) (*models.Paper, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE paper_id = ?`, paperID)
	return scanPaper(row)
}

// SetStatus updates one stage's status column. Crawl completion also
// stamps last_crawled_at. Failure details live on the queue row; here the
// message is only logged.
func (s *PaperStore) SetStatus(ctx context.Context, paperID, stage, status, errMsg string) error {
	var query string
	switch stage {
	case StageFieldCrawl:
		if status == models.StatusCompleted {
			query = `UPDATE papers SET crawl_status = ?, last_crawled_at = strftime('%s','now'), updated_at = strftime('%s','now') WHERE paper_id = ?`
		} else {
			query = `UPDATE papers SET crawl_status = ?, updated_at = strftime('%s','now') WHERE paper_id = ?`
		}
	case StageFieldPDF:
		query = `UPDATE papers SET pdf_status = ?, updated_at = strftime('%s','now') WHERE paper_id = ?`
	case StageFieldSummary:
		query = `UPDATE papers SET summary_status = ?, updated_at = strftime('%s','now') WHERE paper_id = ?`
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}

	result, err := s.q.ExecContext(ctx, query, status, paperID)
	if err != nil {
		return fmt.Errorf("failed to set %s status for %s: %w", stage, paperID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("paper %s not found", paperID)
	}

	if errMsg != "" {
		s.logger.Warn().
			Str("paper_id", paperID).
			Str("stage", stage).
			Str("status", status).
			Str("error", errMsg).
			Msg("Stage failed")
	}
	return nil
}

// ListPendingPapers returns papers whose given stage column is pending,
// most-cited first so dispatcher repair follows crawl priority.
func (s *PaperStore) ListPendingPapers(ctx context.Context, stage string, limit int) ([]*models.Paper, error) {
	var column string
	switch stage {
	case StageFieldCrawl:
		column = "crawl_status"
	case StageFieldPDF:
		column = "pdf_status"
	case StageFieldSummary:
		column = "summary_status"
	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT `+paperColumns+` FROM papers
		 WHERE `+column+` = ? ORDER BY citation_count DESC, created_at ASC LIMIT ?`,
		models.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending papers: %w", err)
	}
	defer rows.Close()

	return collectPapers(rows)
}

// ListPlaceholderReferences returns reference targets of paperID that are
// still placeholders awaiting their own crawl, most-cited first.
func (s *PaperStore) ListPlaceholderReferences(ctx context.Context, paperID string, limit int) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT r.target_paper_id
		FROM paper_relations r
		JOIN papers p ON p.paper_id = r.target_paper_id
		WHERE r.source_paper_id = ? AND r.relation_type = ?
		  AND p.crawl_status = ? AND p.title = ''
		ORDER BY p.citation_count DESC, p.created_at ASC
		LIMIT ?`,
		paperID, models.RelationReference, models.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list placeholder references: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetStats computes the aggregates rendered into the vault index.
func (s *PaperStore) GetStats(ctx context.Context) (*interfaces.GraphStats, error) {
	stats := &interfaces.GraphStats{YearHistogram: map[int]int{}}

	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(citation_count), 0) FROM papers WHERE title <> ''`).
		Scan(&stats.TotalPapers, &stats.TotalCitations)
	if err != nil {
		return nil, fmt.Errorf("failed to compute totals: %w", err)
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT year, COUNT(*) FROM papers WHERE year IS NOT NULL AND title <> '' GROUP BY year`)
	if err != nil {
		return nil, fmt.Errorf("failed to compute year histogram: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var year, count int
		if err := rows.Scan(&year, &count); err != nil {
			return nil, err
		}
		stats.YearHistogram[year] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	top, err := s.q.QueryContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE title <> ''
		 ORDER BY citation_count DESC, paper_id ASC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("failed to list top cited: %w", err)
	}
	defer top.Close()
	if stats.TopCited, err = collectPapers(top); err != nil {
		return nil, err
	}

	recent, err := s.q.QueryContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE title <> ''
		 ORDER BY created_at DESC, paper_id ASC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent papers: %w", err)
	}
	defer recent.Close()
	if stats.MostRecent, err = collectPapers(recent); err != nil {
		return nil, err
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (*models.Paper, error) {
	var p models.Paper
	var year sql.NullInt64
	var influence sql.NullFloat64
	var isOpenAccess int
	var venueID, journalID sql.NullInt64
	var summaryCreated, lastCrawled sql.NullInt64
	var created, updated int64

	err := row.Scan(
		&p.PaperID, &p.Title, &p.Abstract, &year, &p.CitationCount, &p.ReferenceCount,
		&influence, &isOpenAccess, &p.Language, &venueID, &journalID,
		&p.PDFURL, &p.PDFHash, &p.PDFSize, &p.Summary, &p.SummaryModel, &summaryCreated,
		&p.CrawlStatus, &p.PDFStatus, &p.SummaryStatus, &lastCrawled, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	if year.Valid {
		y := int(year.Int64)
		p.Year = &y
	}
	if influence.Valid {
		p.InfluenceScore = &influence.Float64
	}
	p.IsOpenAccess = isOpenAccess != 0
	if venueID.Valid {
		p.VenueID = &venueID.Int64
	}
	if journalID.Valid {
		p.JournalID = &journalID.Int64
	}
	if summaryCreated.Valid {
		t := time.Unix(summaryCreated.Int64, 0).UTC()
		p.SummaryCreatedAt = &t
	}
	if lastCrawled.Valid {
		t := time.Unix(lastCrawled.Int64, 0).UTC()
		p.LastCrawledAt = &t
	}
	p.CreatedAt = time.Unix(created, 0).UTC()
	p.UpdatedAt = time.Unix(updated, 0).UTC()

	return &p, nil
}

func collectPapers(rows *sql.Rows) ([]*models.Paper, error) {
	var papers []*models.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Unix()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
