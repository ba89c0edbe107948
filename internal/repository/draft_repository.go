package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/kbtrust/internal/db"
	"github.com/rpattn/kbtrust/internal/domain"
)

type draftRepository struct {
	db db.DBTX
}

// NewDraftRepository wires the draft lifecycle repository.
func NewDraftRepository(q db.DBTX) DraftRepository {
	return &draftRepository{db: q}
}

func (r *draftRepository) WithTx(tx pgx.Tx) DraftRepository {
	return &draftRepository{db: tx}
}

const draftColumns = `draft_id, ticket_id, title, body_markdown, case_json, status,
	reviewer, reviewed_at, review_notes, published_at, generation_mode, trace_json, created_at`

func (r *draftRepository) Create(ctx context.Context, draft domain.Draft) error {
	caseJSON, traceJSON, err := marshalDraftPayloads(draft)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO kb_drafts (`+draftColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		draft.DraftID,
		draft.TicketID,
		draft.Title,
		draft.BodyMarkdown,
		caseJSON,
		draft.Status,
		draft.Reviewer,
		draft.ReviewedAt,
		draft.ReviewNotes,
		draft.PublishedAt,
		draft.GenerationMode,
		traceJSON,
		draft.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create draft: %w", err)
	}
	return nil
}

func (r *draftRepository) GetByID(ctx context.Context, draftID string) (domain.Draft, error) {
	row := r.db.QueryRow(
		ctx,
		"SELECT "+draftColumns+" FROM kb_drafts WHERE draft_id = $1",
		draftID,
	)
	draft, err := scanDraft(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Draft{}, domain.NewNotFound("draft", draftID)
		}
		return domain.Draft{}, fmt.Errorf("failed to get draft: %w", err)
	}
	return draft, nil
}

func (r *draftRepository) Update(ctx context.Context, draft domain.Draft) error {
	caseJSON, traceJSON, err := marshalDraftPayloads(draft)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE kb_drafts SET
			title = $2, body_markdown = $3, case_json = $4, status = $5,
			reviewer = $6, reviewed_at = $7, review_notes = $8, published_at = $9,
			generation_mode = $10, trace_json = $11
		 WHERE draft_id = $1`,
		draft.DraftID,
		draft.Title,
		draft.BodyMarkdown,
		caseJSON,
		draft.Status,
		draft.Reviewer,
		draft.ReviewedAt,
		draft.ReviewNotes,
		draft.PublishedAt,
		draft.GenerationMode,
		traceJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("draft", draft.DraftID)
	}
	return nil
}

func (r *draftRepository) ListByStatus(ctx context.Context, status domain.DraftStatus) ([]domain.Draft, error) {
	rows, err := r.db.Query(
		ctx,
		"SELECT "+draftColumns+" FROM kb_drafts WHERE status = $1 ORDER BY created_at DESC",
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts by status: %w", err)
	}
	defer rows.Close()

	return scanDrafts(rows)
}

func (r *draftRepository) ListOthersByTicket(
	ctx context.Context,
	ticketID, keepDraftID string,
	statuses []domain.DraftStatus,
) ([]domain.Draft, error) {
	statusStrings := make([]string, len(statuses))
	for i, status := range statuses {
		statusStrings[i] = string(status)
	}

	rows, err := r.db.Query(
		ctx,
		"SELECT "+draftColumns+` FROM kb_drafts
		 WHERE ticket_id = $1 AND draft_id <> $2 AND status = ANY($3)
		 ORDER BY created_at ASC`,
		ticketID,
		keepDraftID,
		statusStrings,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts for ticket: %w", err)
	}
	defer rows.Close()

	return scanDrafts(rows)
}

func marshalDraftPayloads(draft domain.Draft) (string, string, error) {
	caseJSON, err := json.Marshal(draft.CaseDocument)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal case document: %w", err)
	}
	traceJSON, err := json.Marshal(draft.Trace)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal trace: %w", err)
	}
	return string(caseJSON), string(traceJSON), nil
}

func scanDraft(row pgx.Row) (domain.Draft, error) {
	var (
		draft       domain.Draft
		caseJSON    string
		traceJSON   string
		reviewer    pgtype.Text
		reviewedAt  pgtype.Timestamptz
		reviewNotes pgtype.Text
		publishedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&draft.DraftID,
		&draft.TicketID,
		&draft.Title,
		&draft.BodyMarkdown,
		&caseJSON,
		&draft.Status,
		&reviewer,
		&reviewedAt,
		&reviewNotes,
		&publishedAt,
		&draft.GenerationMode,
		&traceJSON,
		&draft.CreatedAt,
	); err != nil {
		return domain.Draft{}, err
	}

	if err := json.Unmarshal([]byte(caseJSON), &draft.CaseDocument); err != nil {
		return domain.Draft{}, fmt.Errorf("failed to decode case document for draft %s: %w", draft.DraftID, err)
	}
	if err := json.Unmarshal([]byte(traceJSON), &draft.Trace); err != nil {
		return domain.Draft{}, fmt.Errorf("failed to decode trace for draft %s: %w", draft.DraftID, err)
	}

	if reviewer.Valid {
		draft.Reviewer = &reviewer.String
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		draft.ReviewedAt = &t
	}
	if reviewNotes.Valid {
		draft.ReviewNotes = &reviewNotes.String
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		draft.PublishedAt = &t
	}
	return draft, nil
}

func scanDrafts(rows pgx.Rows) ([]domain.Draft, error) {
	drafts := []domain.Draft{}
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		drafts = append(drafts, draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate drafts: %w", err)
	}
	return drafts, nil
}
