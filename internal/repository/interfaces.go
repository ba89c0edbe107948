package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/kbtrust/internal/domain"
)

// EvidenceRepository is the read-only query surface of the external
// evidence store. The pipeline never writes through it.
type EvidenceRepository interface {
	// QueryBy returns units matching any of the source ids, kinds and
	// field names, ordered by ascending byte offset. Empty slices mean
	// "no filter" for that dimension; limit <= 0 means unbounded.
	QueryBy(ctx context.Context, sourceIDs []string, kinds []domain.SourceKind, fieldNames []string, limit int) ([]domain.EvidenceUnit, error)
	// Exists reports which of the given ids are present in the store.
	Exists(ctx context.Context, ids []string) (map[string]struct{}, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.EvidenceUnit, error)
}

// EvidenceIngestRepository is the write side of the evidence store,
// used only by workbook ingestion. Each Replace method swaps the full
// table contents; run them inside one transaction.
type EvidenceIngestRepository interface {
	WithTx(tx pgx.Tx) EvidenceIngestRepository
	ReplaceTickets(ctx context.Context, rows []domain.TicketRecord) error
	ReplaceConversations(ctx context.Context, rows []domain.ConversationRecord) error
	ReplaceScripts(ctx context.Context, rows []domain.ScriptRecord) error
	ReplacePlaceholders(ctx context.Context, rows []domain.PlaceholderRecord) error
	ReplaceEvidenceUnits(ctx context.Context, units []domain.EvidenceUnit) error
}

// TicketContextRepository loads the raw ticket bundle the assembler
// works from.
type TicketContextRepository interface {
	Load(ctx context.Context, ticketID string) (domain.TicketContext, error)
}

// DraftRepository defines the interface for draft lifecycle records.
type DraftRepository interface {
	WithTx(tx pgx.Tx) DraftRepository
	Create(ctx context.Context, draft domain.Draft) error
	GetByID(ctx context.Context, draftID string) (domain.Draft, error)
	Update(ctx context.Context, draft domain.Draft) error
	ListByStatus(ctx context.Context, status domain.DraftStatus) ([]domain.Draft, error)
	// ListOthersByTicket returns drafts for the ticket in any of the
	// given statuses, excluding keepDraftID. Used by the supersession
	// cascade.
	ListOthersByTicket(ctx context.Context, ticketID, keepDraftID string, statuses []domain.DraftStatus) ([]domain.Draft, error)
}

// ArticleRepository defines the interface for published articles and
// their append-only version history.
type ArticleRepository interface {
	WithTx(tx pgx.Tx) ArticleRepository
	Create(ctx context.Context, article domain.Article) error
	GetByID(ctx context.Context, articleID string) (domain.Article, error)
	Update(ctx context.Context, article domain.Article) error
	List(ctx context.Context) ([]domain.Article, error)
	CreateVersion(ctx context.Context, version domain.ArticleVersion) error
	GetVersion(ctx context.Context, articleID string, version int) (domain.ArticleVersion, error)
	ListVersions(ctx context.Context, articleID string) ([]domain.ArticleVersion, error)
}

// LineageRepository persists provenance edges.
type LineageRepository interface {
	WithTx(tx pgx.Tx) LineageRepository
	CreateEdges(ctx context.Context, edges []domain.LineageEdge) error
	ListByDraft(ctx context.Context, draftID string) ([]domain.LineageEdge, error)
	CountByDraft(ctx context.Context, draftID string) (int64, error)
}

// AuditEventRepository appends to the audit log.
type AuditEventRepository interface {
	WithTx(tx pgx.Tx) AuditEventRepository
	Record(ctx context.Context, event domain.AuditEvent) error
	ListByDraft(ctx context.Context, draftID string) ([]domain.AuditEvent, error)
}
