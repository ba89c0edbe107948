// Package governance enforces the draft lifecycle state machine:
// draft -> approved/rejected/superseded, approved -> published/rejected/
// superseded, with rejected, published and superseded terminal.
package governance

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/kbtrust/internal/domain"
	"github.com/rpattn/kbtrust/internal/repository"
)

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// Service applies governance transitions. Every transition commits its
// draft mutation and audit event atomically.
type Service struct {
	runner TxRunner
	drafts repository.DraftRepository
	events repository.AuditEventRepository
	now    func() time.Time
}

// NewService creates a governance service.
func NewService(runner TxRunner, drafts repository.DraftRepository, events repository.AuditEventRepository) *Service {
	return &Service{
		runner: runner,
		drafts: drafts,
		events: events,
		now:    time.Now,
	}
}

// Approve moves a draft to approved, stamps the review, and supersedes
// every other active draft for the same ticket.
func (s *Service) Approve(ctx context.Context, draftID, reviewer string, notes *string) (domain.Draft, error) {
	var approved domain.Draft
	err := s.runner.WithTx(ctx, func(tx pgx.Tx) error {
		drafts := s.drafts.WithTx(tx)
		events := s.events.WithTx(tx)

		draft, err := drafts.GetByID(ctx, draftID)
		if err != nil {
			return err
		}
		if !draft.Status.CanTransitionTo(domain.DraftStatusApproved) {
			return &domain.InvalidTransitionError{From: draft.Status, To: domain.DraftStatusApproved}
		}

		now := s.now()
		draft.Status = domain.DraftStatusApproved
		draft.Reviewer = &reviewer
		draft.ReviewedAt = &now
		draft.ReviewNotes = notes
		if err := drafts.Update(ctx, draft); err != nil {
			return err
		}

		if _, err := SupersedeOthers(ctx, drafts, events, SupersedeRequest{
			TicketID:    draft.TicketID,
			KeepDraftID: draft.DraftID,
			Reason:      "Superseded by approved draft.",
			Reviewer:    &reviewer,
			Statuses:    []domain.DraftStatus{domain.DraftStatusDraft, domain.DraftStatusApproved},
			At:          now,
		}); err != nil {
			return err
		}

		if err := events.Record(ctx, domain.AuditEvent{
			EventID:   uuid.New().String(),
			EventType: domain.EventApproved,
			DraftID:   &draft.DraftID,
			TicketID:  &draft.TicketID,
			Metadata:  map[string]any{"reviewer": reviewer, "notes": notes},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		approved = draft
		return nil
	})
	if err != nil {
		return domain.Draft{}, err
	}

	log.Printf("[GOVERN] approved draft %s (ticket %s) by %s", approved.DraftID, approved.TicketID, reviewer)
	return approved, nil
}

// Reject moves a draft to rejected and stamps the review. No cascade.
func (s *Service) Reject(ctx context.Context, draftID, reviewer string, notes *string) (domain.Draft, error) {
	var rejected domain.Draft
	err := s.runner.WithTx(ctx, func(tx pgx.Tx) error {
		drafts := s.drafts.WithTx(tx)
		events := s.events.WithTx(tx)

		draft, err := drafts.GetByID(ctx, draftID)
		if err != nil {
			return err
		}
		if !draft.Status.CanTransitionTo(domain.DraftStatusRejected) {
			return &domain.InvalidTransitionError{From: draft.Status, To: domain.DraftStatusRejected}
		}

		now := s.now()
		draft.Status = domain.DraftStatusRejected
		draft.Reviewer = &reviewer
		draft.ReviewedAt = &now
		draft.ReviewNotes = notes
		if err := drafts.Update(ctx, draft); err != nil {
			return err
		}

		if err := events.Record(ctx, domain.AuditEvent{
			EventID:   uuid.New().String(),
			EventType: domain.EventRejected,
			DraftID:   &draft.DraftID,
			TicketID:  &draft.TicketID,
			Metadata:  map[string]any{"reviewer": reviewer, "notes": notes},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		rejected = draft
		return nil
	})
	if err != nil {
		return domain.Draft{}, err
	}

	log.Printf("[GOVERN] rejected draft %s (ticket %s) by %s", rejected.DraftID, rejected.TicketID, reviewer)
	return rejected, nil
}

// GetDraft loads one draft.
func (s *Service) GetDraft(ctx context.Context, draftID string) (domain.Draft, error) {
	return s.drafts.GetByID(ctx, draftID)
}

// ListByStatus lists drafts in one lifecycle state, newest first.
func (s *Service) ListByStatus(ctx context.Context, status domain.DraftStatus) ([]domain.Draft, error) {
	return s.drafts.ListByStatus(ctx, status)
}

// SupersedeRequest describes one supersession cascade.
type SupersedeRequest struct {
	TicketID    string
	KeepDraftID string
	Reason      string
	Reviewer    *string
	Statuses    []domain.DraftStatus
	At          time.Time
}

// SupersedeOthers bulk-transitions every other draft for the ticket in
// the given statuses to superseded, writing one audit event per draft.
// The repositories are expected to already be bound to the caller's
// transaction. Returns the number of drafts affected.
func SupersedeOthers(
	ctx context.Context,
	drafts repository.DraftRepository,
	events repository.AuditEventRepository,
	req SupersedeRequest,
) (int, error) {
	statuses := req.Statuses
	if len(statuses) == 0 {
		statuses = []domain.DraftStatus{domain.DraftStatusDraft, domain.DraftStatusApproved}
	}

	others, err := drafts.ListOthersByTicket(ctx, req.TicketID, req.KeepDraftID, statuses)
	if err != nil {
		return 0, err
	}

	for _, other := range others {
		if !other.Status.CanTransitionTo(domain.DraftStatusSuperseded) {
			return 0, &domain.InvalidTransitionError{From: other.Status, To: domain.DraftStatusSuperseded}
		}

		at := req.At
		other.Status = domain.DraftStatusSuperseded
		other.Reviewer = req.Reviewer
		other.ReviewedAt = &at
		reason := req.Reason
		other.ReviewNotes = &reason
		if err := drafts.Update(ctx, other); err != nil {
			return 0, err
		}

		if err := events.Record(ctx, domain.AuditEvent{
			EventID:   uuid.New().String(),
			EventType: domain.EventSuperseded,
			DraftID:   &other.DraftID,
			TicketID:  &other.TicketID,
			Metadata: map[string]any{
				"reviewer":      req.Reviewer,
				"reason":        req.Reason,
				"kept_draft_id": req.KeepDraftID,
			},
			CreatedAt: at,
		}); err != nil {
			return 0, fmt.Errorf("failed to record supersession event: %w", err)
		}
	}

	return len(others), nil
}
