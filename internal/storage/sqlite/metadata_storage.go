package sqlite

import (
	"context"
	"fmt"

	"github.com/ternarybob/refnet/internal/interfaces"
	"github.com/ternarybob/refnet/internal/models"
)

// UpsertVenue returns the id for a venue name, creating it when new.
func (s *PaperStore) UpsertVenue(ctx context.Context, name, venueType string) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO venues (name, type) VALUES (?,?)
		ON CONFLICT(name) DO UPDATE SET
			type = CASE WHEN excluded.type <> '' THEN excluded.type ELSE venues.type END
		RETURNING id`, name, venueType).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert venue %q: %w", name, err)
	}
	return id, nil
}

// UpsertJournal returns the id for a journal name, creating it when new.
func (s *PaperStore) UpsertJournal(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO journals (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET name = excluded.name
		RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert journal %q: %w", name, err)
	}
	return id, nil
}

// GetVenue loads one venue by id.
func (s *PaperStore) GetVenue(ctx context.Context, id int64) (*models.Venue, error) {
	var v models.Venue
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, type FROM venues WHERE id = ?`, id).
		Scan(&v.ID, &v.Name, &v.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to get venue %d: %w", id, err)
	}
	return &v, nil
}

// GetJournal loads one journal by id.
func (s *PaperStore) GetJournal(ctx context.Context, id int64) (*models.Journal, error) {
	var j models.Journal
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name FROM journals WHERE id = ?`, id).
		Scan(&j.ID, &j.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get journal %d: %w", id, err)
	}
	return &j, nil
}

// UpsertExternalID records one registry identifier for a paper.
func (s *PaperStore) UpsertExternalID(ctx context.Context, id *models.ExternalID) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO external_ids (paper_id, id_type, external_id)
		VALUES (?,?,?)
		ON CONFLICT(paper_id, id_type, external_id) DO NOTHING`,
		id.PaperID, id.IDType, id.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to upsert external id for %s: %w", id.PaperID, err)
	}
	return nil
}

// GetExternalIDs returns all registry identifiers of a paper.
func (s *PaperStore) GetExternalIDs(ctx context.Context, paperID string) ([]*models.ExternalID, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT paper_id, id_type, external_id FROM external_ids
		WHERE paper_id = ? ORDER BY id_type ASC, external_id ASC`, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to get external ids for %s: %w", paperID, err)
	}
	defer rows.Close()

	var ids []*models.ExternalID
	for rows.Next() {
		var id models.ExternalID
		if err := rows.Scan(&id.PaperID, &id.IDType, &id.ExternalID); err != nil {
			return nil, err
		}
		ids = append(ids, &id)
	}
	return ids, rows.Err()
}

// ReplaceKeywords swaps a paper's keyword set atomically.
func (s *PaperStore) ReplaceKeywords(ctx context.Context, paperID string, kws []*models.Keyword) error {
	return s.WithTx(ctx, func(store interfaces.PaperStorage) error {
		ts := store.(*PaperStore)

		if _, err := ts.q.ExecContext(ctx, `DELETE FROM keywords WHERE paper_id = ?`, paperID); err != nil {
			return fmt.Errorf("failed to clear keywords for %s: %w", paperID, err)
		}

		for _, kw := range kws {
			_, err := ts.q.ExecContext(ctx, `
				INSERT INTO keywords (paper_id, keyword, relevance, method)
				VALUES (?,?,?,?)
				ON CONFLICT(paper_id, keyword) DO UPDATE SET
					relevance = excluded.relevance,
					method = excluded.method`,
				paperID, kw.Keyword, kw.Relevance, kw.Method)
			if err != nil {
				return fmt.Errorf("failed to insert keyword %q for %s: %w", kw.Keyword, paperID, err)
			}
		}
		return nil
	})
}

// GetKeywords returns a paper's keywords, highest relevance first.
func (s *PaperStore) GetKeywords(ctx context.Context, paperID string) ([]*models.Keyword, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT paper_id, keyword, relevance, method FROM keywords
		WHERE paper_id = ? ORDER BY relevance DESC, keyword ASC`, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to get keywords for %s: %w", paperID, err)
	}
	defer rows.Close()

	var kws []*models.Keyword
	for rows.Next() {
		var kw models.Keyword
		if err := rows.Scan(&kw.PaperID, &kw.Keyword, &kw.Relevance, &kw.Method); err != nil {
			return nil, err
		}
		kws = append(kws, &kw)
	}
	return kws, rows.Err()
}
