package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/kbtrust/internal/db"
	"github.com/rpattn/kbtrust/internal/domain"
)

type auditEventRepository struct {
	db db.DBTX
}

// NewAuditEventRepository wires the append-only audit log.
func NewAuditEventRepository(q db.DBTX) AuditEventRepository {
	return &auditEventRepository{db: q}
}

func (r *auditEventRepository) WithTx(tx pgx.Tx) AuditEventRepository {
	return &auditEventRepository{db: tx}
}

func (r *auditEventRepository) Record(ctx context.Context, event domain.AuditEvent) error {
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO audit_events (event_id, event_type, draft_id, ticket_id, metadata_json, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.EventID,
		event.EventType,
		event.DraftID,
		event.TicketID,
		string(metadataJSON),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

func (r *auditEventRepository) ListByDraft(ctx context.Context, draftID string) ([]domain.AuditEvent, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT event_id, event_type, draft_id, ticket_id, metadata_json, created_at
		 FROM audit_events WHERE draft_id = $1
		 ORDER BY created_at ASC`,
		draftID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	events := []domain.AuditEvent{}
	for rows.Next() {
		event, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return events, nil
}

func scanAuditEvent(row pgx.Row) (domain.AuditEvent, error) {
	var (
		event        domain.AuditEvent
		draftID      pgtype.Text
		ticketID     pgtype.Text
		metadataJSON pgtype.Text
	)
	if err := row.Scan(
		&event.EventID,
		&event.EventType,
		&draftID,
		&ticketID,
		&metadataJSON,
		&event.CreatedAt,
	); err != nil {
		return domain.AuditEvent{}, fmt.Errorf("failed to scan audit event: %w", err)
	}

	if draftID.Valid {
		event.DraftID = &draftID.String
	}
	if ticketID.Valid {
		event.TicketID = &ticketID.String
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &event.Metadata); err != nil {
			event.Metadata = map[string]any{}
		}
	}
	return event, nil
}
