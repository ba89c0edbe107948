package domain

import (
	"time"
)

// Article is the durable, versioned knowledge document produced from an
// approved draft. Denormalized current fields are overwritten on publish
// and rollback; history lives in ArticleVersion rows.
type Article struct {
	ArticleID      string    `json:"kb_article_id"`
	LatestDraftID  string    `json:"latest_draft_id"`
	Title          string    `json:"title"`
	BodyMarkdown   string    `json:"body_markdown"`
	Module         string    `json:"module"`
	Category       string    `json:"category"`
	Tags           []string  `json:"tags"`
	SourceKind     string    `json:"source_type"`
	SourceTicketID string    `json:"source_ticket_id"`
	CurrentVersion int       `json:"current_version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ArticleVersion is one append-only history row. Version numbers are
// strictly increasing per article and rows are never rewritten.
type ArticleVersion struct {
	VersionID     string    `json:"version_id"`
	ArticleID     string    `json:"kb_article_id"`
	Version       int       `json:"version"`
	SourceDraftID *string   `json:"source_draft_id,omitempty"`
	BodyMarkdown  string    `json:"body_markdown"`
	Title         string    `json:"title"`
	Reviewer      *string   `json:"reviewer,omitempty"`
	ChangeNote    *string   `json:"change_note,omitempty"`
	IsRollback    bool      `json:"is_rollback"`
	CreatedAt     time.Time `json:"created_at"`
}

// ArticleExport is the projection handed to the external indexing
// subsystem once an article is published. Drafts are never exposed
// through this shape.
type ArticleExport struct {
	ArticleID      string   `json:"kb_article_id"`
	Title          string   `json:"title"`
	BodyMarkdown   string   `json:"body_markdown"`
	Module         string   `json:"module"`
	Category       string   `json:"category"`
	Tags           []string `json:"tags"`
	SourceKind     string   `json:"source_type"`
	SourceTicketID string   `json:"source_ticket_id"`
	Version        int      `json:"version"`
	LineageDraftID string   `json:"lineage_draft_id"`
}
