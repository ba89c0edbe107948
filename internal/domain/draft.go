package domain

import (
	"time"
)

// DraftStatus captures lifecycle state for a knowledge draft.
type DraftStatus string

const (
	DraftStatusDraft      DraftStatus = "draft"
	DraftStatusApproved   DraftStatus = "approved"
	DraftStatusRejected   DraftStatus = "rejected"
	DraftStatusPublished  DraftStatus = "published"
	DraftStatusSuperseded DraftStatus = "superseded"
)

// allowedTransitions is the governance transition table. Rejected,
// published and superseded are terminal.
var allowedTransitions = map[DraftStatus][]DraftStatus{
	DraftStatusDraft:    {DraftStatusApproved, DraftStatusRejected, DraftStatusSuperseded},
	DraftStatusApproved: {DraftStatusPublished, DraftStatusRejected, DraftStatusSuperseded},
}

// CanTransitionTo reports whether the governance table allows moving a
// draft from s to target.
func (s DraftStatus) CanTransitionTo(target DraftStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// GenerationMode records which synthesis path produced a draft.
const (
	GenerationModeGrounded     = "grounded"
	GenerationModeCollaborator = "grounded_llm"
)

// Draft is a lifecycle-tracked candidate knowledge article. Drafts are
// never deleted; terminal states persist for audit.
type Draft struct {
	DraftID        string       `json:"draft_id"`
	TicketID       string       `json:"ticket_id"`
	Title          string       `json:"title"`
	BodyMarkdown   string       `json:"body_markdown"`
	CaseDocument   CaseDocument `json:"case_document"`
	Status         DraftStatus  `json:"status"`
	Reviewer       *string      `json:"reviewer,omitempty"`
	ReviewedAt     *time.Time   `json:"reviewed_at,omitempty"`
	ReviewNotes    *string      `json:"review_notes,omitempty"`
	PublishedAt    *time.Time   `json:"published_at,omitempty"`
	GenerationMode string       `json:"generation_mode"`
	Trace          Trace        `json:"trace"`
	CreatedAt      time.Time    `json:"created_at"`
}
