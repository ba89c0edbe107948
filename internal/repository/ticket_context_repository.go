package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/kbtrust/internal/db"
	"github.com/rpattn/kbtrust/internal/domain"
)

type ticketContextRepository struct {
	db db.DBTX
}

// NewTicketContextRepository wires the raw ticket-context reader.
func NewTicketContextRepository(q db.DBTX) TicketContextRepository {
	return &ticketContextRepository{db: q}
}

func (r *ticketContextRepository) Load(ctx context.Context, ticketID string) (domain.TicketContext, error) {
	var (
		tctx     domain.TicketContext
		scriptID pgtype.Text
	)

	err := r.db.QueryRow(
		ctx,
		`SELECT ticket_number, subject, product, module, category, script_id
		 FROM raw_tickets WHERE ticket_number = $1`,
		ticketID,
	).Scan(
		&tctx.Ticket.TicketNumber,
		&tctx.Ticket.Subject,
		&tctx.Ticket.Product,
		&tctx.Ticket.Module,
		&tctx.Ticket.Category,
		&scriptID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TicketContext{}, domain.NewNotFound("ticket", ticketID)
		}
		return domain.TicketContext{}, fmt.Errorf("failed to load ticket: %w", err)
	}
	if scriptID.Valid {
		tctx.Ticket.ScriptID = &scriptID.String
	}

	if tctx.Conversations, err = r.loadConversations(ctx, ticketID); err != nil {
		return domain.TicketContext{}, err
	}
	if tctx.Scripts, err = r.loadScripts(ctx, tctx.Ticket.ScriptID); err != nil {
		return domain.TicketContext{}, err
	}
	if tctx.Placeholders, err = r.loadPlaceholders(ctx); err != nil {
		return domain.TicketContext{}, err
	}

	return tctx, nil
}

func (r *ticketContextRepository) loadConversations(ctx context.Context, ticketID string) ([]domain.Conversation, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT conversation_id, ticket_number, issue_summary
		 FROM raw_conversations WHERE ticket_number = $1
		 ORDER BY conversation_id`,
		ticketID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}
	defer rows.Close()

	conversations := []domain.Conversation{}
	for rows.Next() {
		var convo domain.Conversation
		if err := rows.Scan(&convo.ConversationID, &convo.TicketNumber, &convo.IssueSummary); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, convo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return conversations, nil
}

func (r *ticketContextRepository) loadScripts(ctx context.Context, scriptID *string) ([]domain.Script, error) {
	if scriptID == nil || *scriptID == "" {
		return []domain.Script{}, nil
	}

	var script domain.Script
	err := r.db.QueryRow(
		ctx,
		`SELECT script_id, script_text_sanitized FROM raw_scripts_master WHERE script_id = $1`,
		*scriptID,
	).Scan(&script.ScriptID, &script.ScriptText)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A dangling script reference is not fatal to assembly.
			return []domain.Script{}, nil
		}
		return nil, fmt.Errorf("failed to load script: %w", err)
	}
	return []domain.Script{script}, nil
}

func (r *ticketContextRepository) loadPlaceholders(ctx context.Context) ([]domain.PlaceholderEntry, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT placeholder, meaning FROM raw_placeholder_dictionary ORDER BY placeholder`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load placeholder dictionary: %w", err)
	}
	defer rows.Close()

	entries := []domain.PlaceholderEntry{}
	for rows.Next() {
		var entry domain.PlaceholderEntry
		if err := rows.Scan(&entry.Placeholder, &entry.Meaning); err != nil {
			return nil, fmt.Errorf("failed to scan placeholder entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate placeholder entries: %w", err)
	}
	return entries, nil
}
