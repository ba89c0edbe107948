package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/kbtrust/internal/db"
	"github.com/rpattn/kbtrust/internal/domain"
)

type lineageRepository struct {
	db db.DBTX
}

// NewLineageRepository wires the provenance edge store.
func NewLineageRepository(q db.DBTX) LineageRepository {
	return &lineageRepository{db: q}
}

func (r *lineageRepository) WithTx(tx pgx.Tx) LineageRepository {
	return &lineageRepository{db: tx}
}

func (r *lineageRepository) CreateEdges(ctx context.Context, edges []domain.LineageEdge) error {
	for _, edge := range edges {
		// ON CONFLICT keeps re-derivation idempotent even if the caller's
		// existing-edge guard raced with another writer.
		_, err := r.db.Exec(
			ctx,
			`INSERT INTO kb_lineage_edges (edge_id, draft_id, evidence_unit_id, relationship, section_label, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (draft_id, evidence_unit_id, section_label) DO NOTHING`,
			edge.EdgeID,
			edge.DraftID,
			edge.EvidenceUnitID,
			edge.Relationship,
			edge.SectionLabel,
			edge.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create lineage edge %s: %w", edge.EdgeID, err)
		}
	}
	return nil
}

func (r *lineageRepository) ListByDraft(ctx context.Context, draftID string) ([]domain.LineageEdge, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT edge_id, draft_id, evidence_unit_id, relationship, section_label, created_at
		 FROM kb_lineage_edges WHERE draft_id = $1
		 ORDER BY section_label, evidence_unit_id`,
		draftID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lineage edges: %w", err)
	}
	defer rows.Close()

	edges := []domain.LineageEdge{}
	for rows.Next() {
		var edge domain.LineageEdge
		if err := rows.Scan(
			&edge.EdgeID,
			&edge.DraftID,
			&edge.EvidenceUnitID,
			&edge.Relationship,
			&edge.SectionLabel,
			&edge.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lineage edge: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lineage edges: %w", err)
	}
	return edges, nil
}

func (r *lineageRepository) CountByDraft(ctx context.Context, draftID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM kb_lineage_edges WHERE draft_id = $1`,
		draftID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count lineage edges: %w", err)
	}
	return count, nil
}
