package domain

import (
	"errors"
	"fmt"
)

// ErrCollaboratorUnavailable marks the external synthesis collaborator
// as missing or misconfigured. The pipeline recovers by falling back to
// deterministic synthesis; it is never surfaced to callers as fatal.
var ErrCollaboratorUnavailable = errors.New("synthesis collaborator unavailable")

// NotFoundError reports an absent draft, article, version or ticket.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFound builds a NotFoundError for the given record kind.
func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// InvalidTransitionError reports a governance rule violation, naming
// the current and requested status.
type InvalidTransitionError struct {
	From DraftStatus
	To   DraftStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

// IsInvalidTransition reports whether err wraps an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var it *InvalidTransitionError
	return errors.As(err, &it)
}

// AlreadyPublishedError is the publish idempotency guard: a draft can be
// promoted at most once.
type AlreadyPublishedError struct {
	DraftID string
}

func (e *AlreadyPublishedError) Error() string {
	return fmt.Sprintf("draft %s has already been published", e.DraftID)
}

// IsAlreadyPublished reports whether err wraps an AlreadyPublishedError.
func IsAlreadyPublished(err error) bool {
	var ap *AlreadyPublishedError
	return errors.As(err, &ap)
}

// CitationIntegrityError reports that the collaborator proposed evidence
// ids outside the candidate set. Recovered locally by discarding the
// collaborator output.
type CitationIntegrityError struct {
	Section    SectionLabel
	UnknownIDs []string
}

func (e *CitationIntegrityError) Error() string {
	return fmt.Sprintf("collaborator cited unknown evidence ids in %s: %v", e.Section, e.UnknownIDs)
}

// VerificationError reports that one or more verifier checks failed when
// hard gating is enabled.
type VerificationError struct {
	Report VerifierReport
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("case verification failed: %d error(s)", len(e.Report.Errors))
}
