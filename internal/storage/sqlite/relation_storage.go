package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ternarybob/refnet/internal/models"
)

// InsertEdge records a directed edge. Self-citations are rejected before
// reaching the database. Re-inserting an existing triple only lowers the
// recorded hop_count when the new path is shorter.
func (s *PaperStore) InsertEdge(ctx context.Context, rel *models.PaperRelation) error {
	if rel.SourcePaperID == rel.TargetPaperID {
		return fmt.Errorf("self-citation rejected for %s", rel.SourcePaperID)
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO paper_relations (source_paper_id, target_paper_id, relation_type, hop_count, confidence, relevance)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(source_paper_id, target_paper_id, relation_type) DO UPDATE SET
			hop_count = MIN(paper_relations.hop_count, excluded.hop_count),
			confidence = COALESCE(excluded.confidence, paper_relations.confidence),
			relevance = COALESCE(excluded.relevance, paper_relations.relevance)`,
		rel.SourcePaperID, rel.TargetPaperID, rel.RelationType, rel.HopCount, rel.Confidence, rel.Relevance)
	if err != nil {
		return fmt.Errorf("failed to insert edge %s -> %s: %w", rel.SourcePaperID, rel.TargetPaperID, err)
	}
	return nil
}

// GetNeighbors returns the incoming citation edges and outgoing reference
// edges of a paper, most-cited neighbor first.
func (s *PaperStore) GetNeighbors(ctx context.Context, paperID string, limit int) (*models.Neighbors, error) {
	if limit <= 0 {
		limit = 100
	}

	citations, err := s.queryEdges(ctx, `
		SELECT r.source_paper_id, r.target_paper_id, r.relation_type, r.hop_count, r.confidence, r.relevance
		FROM paper_relations r
		JOIN papers p ON p.paper_id = r.target_paper_id
		WHERE r.source_paper_id = ? AND r.relation_type = ?
		ORDER BY p.citation_count DESC, r.target_paper_id ASC
		LIMIT ?`, paperID, models.RelationCitation, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get citations for %s: %w", paperID, err)
	}

	references, err := s.queryEdges(ctx, `
		SELECT r.source_paper_id, r.target_paper_id, r.relation_type, r.hop_count, r.confidence, r.relevance
		FROM paper_relations r
		JOIN papers p ON p.paper_id = r.target_paper_id
		WHERE r.source_paper_id = ? AND r.relation_type = ?
		ORDER BY p.citation_count DESC, r.target_paper_id ASC
		LIMIT ?`, paperID, models.RelationReference, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get references for %s: %w", paperID, err)
	}

	return &models.Neighbors{Citations: citations, References: references}, nil
}

func (s *PaperStore) queryEdges(ctx context.Context, query string, args ...any) ([]models.PaperRelation, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []models.PaperRelation
	for rows.Next() {
		var r models.PaperRelation
		var confidence, relevance sql.NullFloat64
		if err := rows.Scan(&r.SourcePaperID, &r.TargetPaperID, &r.RelationType, &r.HopCount, &confidence, &relevance); err != nil {
			return nil, err
		}
		if confidence.Valid {
			r.Confidence = &confidence.Float64
		}
		if relevance.Valid {
			r.Relevance = &relevance.Float64
		}
		edges = append(edges, r)
	}
	return edges, rows.Err()
}
