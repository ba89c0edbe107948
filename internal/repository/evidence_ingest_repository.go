package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/kbtrust/internal/db"
	"github.com/rpattn/kbtrust/internal/domain"
)

type evidenceIngestRepository struct {
	db db.DBTX
}

// NewEvidenceIngestRepository wires the evidence store write side.
func NewEvidenceIngestRepository(q db.DBTX) EvidenceIngestRepository {
	return &evidenceIngestRepository{db: q}
}

func (r *evidenceIngestRepository) WithTx(tx pgx.Tx) EvidenceIngestRepository {
	return &evidenceIngestRepository{db: tx}
}

func (r *evidenceIngestRepository) ReplaceTickets(ctx context.Context, rows []domain.TicketRecord) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM raw_tickets`); err != nil {
		return fmt.Errorf("failed to clear raw tickets: %w", err)
	}
	for _, row := range rows {
		_, err := r.db.Exec(ctx, `
			INSERT INTO raw_tickets (
				ticket_number, subject, product, module, category,
				description, root_cause, resolution, script_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			row.TicketNumber,
			row.Subject,
			row.Product,
			row.Module,
			row.Category,
			row.Description,
			row.RootCause,
			row.Resolution,
			row.ScriptID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert raw ticket %s: %w", row.TicketNumber, err)
		}
	}
	return nil
}

func (r *evidenceIngestRepository) ReplaceConversations(ctx context.Context, rows []domain.ConversationRecord) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM raw_conversations`); err != nil {
		return fmt.Errorf("failed to clear raw conversations: %w", err)
	}
	for _, row := range rows {
		_, err := r.db.Exec(ctx, `
			INSERT INTO raw_conversations (conversation_id, ticket_number, issue_summary, transcript)
			VALUES ($1, $2, $3, $4)`,
			row.ConversationID,
			row.TicketNumber,
			row.IssueSummary,
			row.Transcript,
		)
		if err != nil {
			return fmt.Errorf("failed to insert raw conversation %s: %w", row.ConversationID, err)
		}
	}
	return nil
}

func (r *evidenceIngestRepository) ReplaceScripts(ctx context.Context, rows []domain.ScriptRecord) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM raw_scripts_master`); err != nil {
		return fmt.Errorf("failed to clear raw scripts: %w", err)
	}
	for _, row := range rows {
		_, err := r.db.Exec(ctx, `
			INSERT INTO raw_scripts_master (script_id, script_text_sanitized, script_purpose)
			VALUES ($1, $2, $3)`,
			row.ScriptID,
			row.ScriptText,
			row.ScriptPurpose,
		)
		if err != nil {
			return fmt.Errorf("failed to insert raw script %s: %w", row.ScriptID, err)
		}
	}
	return nil
}

func (r *evidenceIngestRepository) ReplacePlaceholders(ctx context.Context, rows []domain.PlaceholderRecord) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM raw_placeholder_dictionary`); err != nil {
		return fmt.Errorf("failed to clear raw placeholders: %w", err)
	}
	for _, row := range rows {
		_, err := r.db.Exec(ctx, `
			INSERT INTO raw_placeholder_dictionary (placeholder, meaning, example)
			VALUES ($1, $2, $3)`,
			row.Placeholder,
			row.Meaning,
			row.Example,
		)
		if err != nil {
			return fmt.Errorf("failed to insert raw placeholder %s: %w", row.Placeholder, err)
		}
	}
	return nil
}

func (r *evidenceIngestRepository) ReplaceEvidenceUnits(ctx context.Context, units []domain.EvidenceUnit) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM evidence_units`); err != nil {
		return fmt.Errorf("failed to clear evidence units: %w", err)
	}
	for _, unit := range units {
		_, err := r.db.Exec(ctx, `
			INSERT INTO evidence_units (
				evidence_unit_id, source_type, source_id, field_name,
				char_offset_start, char_offset_end, chunk_index, snippet_text
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (evidence_unit_id) DO NOTHING`,
			unit.EvidenceUnitID,
			string(unit.SourceKind),
			unit.SourceID,
			unit.FieldName,
			unit.CharOffsetStart,
			unit.CharOffsetEnd,
			unit.ChunkIndex,
			unit.SnippetText,
		)
		if err != nil {
			return fmt.Errorf("failed to insert evidence unit %s: %w", unit.EvidenceUnitID, err)
		}
	}
	return nil
}
