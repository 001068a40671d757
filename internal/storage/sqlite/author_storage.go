package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/refnet/internal/models"
)

// UpsertAuthor creates the author or refreshes its catalog-sourced counts.
func (s *PaperStore) UpsertAuthor(ctx context.Context, a *models.Author) error {
	now := time.Now().UTC().Unix()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO authors (author_id, name, paper_count, citation_count, h_index, orcid, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(author_id) DO UPDATE SET
			name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE authors.name END,
			paper_count = CASE WHEN excluded.paper_count > 0 THEN excluded.paper_count ELSE authors.paper_count END,
			citation_count = CASE WHEN excluded.citation_count > 0 THEN excluded.citation_count ELSE authors.citation_count END,
			h_index = CASE WHEN excluded.h_index > 0 THEN excluded.h_index ELSE authors.h_index END,
			orcid = CASE WHEN excluded.orcid <> '' THEN excluded.orcid ELSE authors.orcid END,
			updated_at = excluded.updated_at`,
		a.AuthorID, a.Name, a.PaperCount, a.CitationCount, a.HIndex, a.ORCID, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert author %s: %w", a.AuthorID, err)
	}
	return nil
}

// LinkAuthor attaches an author to a paper at the given byline position.
func (s *PaperStore) LinkAuthor(ctx context.Context, paperID, authorID string, position int) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO paper_authors (paper_id, author_id, position)
		VALUES (?,?,?)
		ON CONFLICT(paper_id, author_id) DO UPDATE SET position = excluded.position`,
		paperID, authorID, position)
	if err != nil {
		return fmt.Errorf("failed to link author %s to %s: %w", authorID, paperID, err)
	}
	return nil
}

// GetAuthors returns a paper's authors in byline order.
func (s *PaperStore) GetAuthors(ctx context.Context, paperID string) ([]*models.Author, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT a.author_id, a.name, a.paper_count, a.citation_count, a.h_index, a.orcid, a.created_at, a.updated_at
		FROM authors a
		JOIN paper_authors pa ON pa.author_id = a.author_id
		WHERE pa.paper_id = ?
		ORDER BY pa.position ASC, a.author_id ASC`, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to get authors for %s: %w", paperID, err)
	}
	defer rows.Close()

	var authors []*models.Author
	for rows.Next() {
		var a models.Author
		var created, updated int64
		if err := rows.Scan(&a.AuthorID, &a.Name, &a.PaperCount, &a.CitationCount, &a.HIndex, &a.ORCID, &created, &updated); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(created, 0).UTC()
		a.UpdatedAt = time.Unix(updated, 0).UTC()
		authors = append(authors, &a)
	}
	return authors, rows.Err()
}
