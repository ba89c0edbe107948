package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpattn/kbtrust/internal/db"
	"github.com/rpattn/kbtrust/internal/domain"
)

type evidenceRepository struct {
	db db.DBTX
}

// NewEvidenceRepository wires the read-only evidence store repository.
func NewEvidenceRepository(q db.DBTX) EvidenceRepository {
	return &evidenceRepository{db: q}
}

const evidenceColumns = `evidence_unit_id, source_type, source_id, field_name,
	char_offset_start, char_offset_end, chunk_index, snippet_text, created_at`

func (r *evidenceRepository) QueryBy(
	ctx context.Context,
	sourceIDs []string,
	kinds []domain.SourceKind,
	fieldNames []string,
	limit int,
) ([]domain.EvidenceUnit, error) {
	var (
		clauses []string
		args    []any
	)
	if len(sourceIDs) > 0 {
		args = append(args, sourceIDs)
		clauses = append(clauses, fmt.Sprintf("source_id = ANY($%d)", len(args)))
	}
	if len(kinds) > 0 {
		kindStrings := make([]string, len(kinds))
		for i, kind := range kinds {
			kindStrings[i] = string(kind)
		}
		args = append(args, kindStrings)
		clauses = append(clauses, fmt.Sprintf("source_type = ANY($%d)", len(args)))
	}
	if len(fieldNames) > 0 {
		args = append(args, fieldNames)
		clauses = append(clauses, fmt.Sprintf("field_name = ANY($%d)", len(args)))
	}

	query := "SELECT " + evidenceColumns + " FROM evidence_units"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY char_offset_start ASC, evidence_unit_id ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence units: %w", err)
	}
	defer rows.Close()

	return scanEvidenceUnits(rows)
}

func (r *evidenceRepository) Exists(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT evidence_unit_id FROM evidence_units WHERE evidence_unit_id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to check evidence existence: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan evidence id: %w", err)
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evidence ids: %w", err)
	}

	return existing, nil
}

func (r *evidenceRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.EvidenceUnit, error) {
	if len(ids) == 0 {
		return []domain.EvidenceUnit{}, nil
	}

	rows, err := r.db.Query(
		ctx,
		"SELECT "+evidenceColumns+" FROM evidence_units WHERE evidence_unit_id = ANY($1)",
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get evidence units: %w", err)
	}
	defer rows.Close()

	return scanEvidenceUnits(rows)
}

type evidenceRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvidenceUnits(rows evidenceRows) ([]domain.EvidenceUnit, error) {
	units := []domain.EvidenceUnit{}
	for rows.Next() {
		var unit domain.EvidenceUnit
		if err := rows.Scan(
			&unit.EvidenceUnitID,
			&unit.SourceKind,
			&unit.SourceID,
			&unit.FieldName,
			&unit.CharOffsetStart,
			&unit.CharOffsetEnd,
			&unit.ChunkIndex,
			&unit.SnippetText,
			&unit.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan evidence unit: %w", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evidence units: %w", err)
	}
	return units, nil
}
