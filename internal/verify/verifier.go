// Package verify runs the structural and referential check battery
// against an assembled case document. The outcome is advisory by
// default; gating is the caller's policy decision.
package verify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rpattn/kbtrust/internal/domain"
)

// Check names recorded in the report, one boolean per concern.
const (
	CheckAllIDsExist    = "all_ids_exist"
	CheckIDsDeduped     = "ids_deduped"
	CheckRequiredFields = "required_fields"
	CheckSectionAnchors = "section_anchors"
)

// EvidenceChecker is the existence probe against the authoritative
// evidence store.
type EvidenceChecker interface {
	Exists(ctx context.Context, ids []string) (map[string]struct{}, error)
}

// allowedOverlap declares the one legal cross-section citation pair:
// verification steps are a derived subset of resolution steps.
var allowedOverlap = map[[2]domain.SectionLabel]bool{
	{domain.SectionResolutionSteps, domain.SectionVerificationSteps}: true,
	{domain.SectionVerificationSteps, domain.SectionResolutionSteps}: true,
}

// Run executes every check and returns the itemized report. The error
// return covers only evidence store failures, never check failures.
func Run(ctx context.Context, doc domain.CaseDocument, evidence EvidenceChecker) (domain.VerifierReport, error) {
	report := domain.VerifierReport{
		OK:     true,
		Errors: []string{},
		Checks: map[string]bool{
			CheckAllIDsExist:    true,
			CheckIDsDeduped:     true,
			CheckRequiredFields: true,
			CheckSectionAnchors: true,
		},
	}

	fail := func(check, message string) {
		report.Errors = append(report.Errors, message)
		report.Checks[check] = false
	}

	if doc.TicketID == "" || doc.Title == "" || doc.Problem == "" {
		fail(CheckRequiredFields, "Missing required fields: ticket_id, title, or problem.")
	}
	for _, step := range doc.ResolutionSteps {
		if strings.TrimSpace(step.Text) == "" {
			fail(CheckRequiredFields, "resolution_steps contains empty step text.")
			break
		}
	}

	citations := doc.SectionCitations()

	for _, section := range domain.SectionLabels {
		ids := citations[section]
		if len(ids) != len(domain.DedupeIDs(ids)) {
			fail(CheckIDsDeduped, fmt.Sprintf("Duplicate evidence_unit_ids in section: %s", section))
		}
	}

	if !crossSectionUnique(citations) {
		fail(CheckIDsDeduped, "evidence_unit_ids are reused across sections.")
	}

	var allIDs []string
	for _, ids := range citations {
		allIDs = append(allIDs, ids...)
	}
	allIDs = domain.DedupeIDs(allIDs)
	if len(allIDs) > 0 {
		existing, err := evidence.Exists(ctx, allIDs)
		if err != nil {
			return domain.VerifierReport{}, fmt.Errorf("failed to verify evidence existence: %w", err)
		}
		var missing []string
		for _, id := range allIDs {
			if _, ok := existing[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			fail(CheckAllIDsExist, fmt.Sprintf("Missing evidence_unit_ids: %s", strings.Join(missing, ", ")))
		}
	}

	if doc.Problem != "" && len(citations[domain.SectionProblem]) == 0 {
		fail(CheckSectionAnchors, "problem section must cite at least one evidence id.")
	}
	if len(doc.Symptoms) > 0 && len(citations[domain.SectionSymptoms]) == 0 {
		fail(CheckSectionAnchors, "symptoms section must cite at least one evidence id.")
	}
	if doc.RootCause != nil && *doc.RootCause != "" && len(citations[domain.SectionRootCause]) == 0 {
		fail(CheckSectionAnchors, "root_cause section must cite at least one evidence id.")
	}
	if len(citations[domain.SectionResolutionSteps]) == 0 {
		fail(CheckSectionAnchors, "resolution_steps must cite at least one evidence id overall.")
	}

	report.OK = len(report.Errors) == 0
	return report, nil
}

// crossSectionUnique checks that no id is cited twice outside the
// declared resolution/verification overlap. A repeat within one section
// counts too, so such documents fail this check on top of the
// per-section one.
func crossSectionUnique(citations map[domain.SectionLabel][]string) bool {
	firstSeen := make(map[string]domain.SectionLabel)
	for _, section := range domain.SectionLabels {
		for _, id := range citations[section] {
			prev, ok := firstSeen[id]
			if !ok {
				firstSeen[id] = section
				continue
			}
			if !allowedOverlap[[2]domain.SectionLabel{prev, section}] {
				return false
			}
		}
	}
	return true
}
