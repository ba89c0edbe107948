package domain

import (
	"time"
)

// Audit event types written by the mutating pipeline operations.
const (
	EventDraftGenerated = "draft_generated"
	EventApproved       = "approved"
	EventRejected       = "rejected"
	EventSuperseded     = "superseded"
	EventPublished      = "published"
	EventRollback       = "rollback"
)

// AuditEvent is one append-only audit log row. Every mutating operation
// writes at least one.
type AuditEvent struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	DraftID   *string        `json:"draft_id,omitempty"`
	TicketID  *string        `json:"ticket_id,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}
