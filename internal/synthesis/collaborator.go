package synthesis

import (
	"context"

	"github.com/rpattn/kbtrust/internal/domain"
)

// Collaborator is the optional external text-completion service used to
// summarize candidate evidence into section text. Implementations must
// be side-effect-free and idempotent; the pipeline always carries a
// deterministic fallback and never depends on the collaborator being
// reachable.
type Collaborator interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// CompletionRequest carries one section's candidate evidence.
type CompletionRequest struct {
	Section    domain.SectionLabel
	Candidates []domain.EvidenceUnit
}

// CompletionResult is the collaborator's proposed section text plus the
// evidence ids it claims to have used. Ids outside the candidate set are
// discarded by the citation integrity gate downstream.
type CompletionResult struct {
	Text            string
	EvidenceUnitIDs []string
	Model           string
	TotalTokens     int
}
