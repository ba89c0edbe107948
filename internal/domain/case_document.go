package domain

import (
	"fmt"
	"strings"
)

// SectionLabel names one of the six canonical case document parts.
type SectionLabel string

const (
	SectionProblem            SectionLabel = "problem"
	SectionSymptoms           SectionLabel = "symptoms"
	SectionRootCause          SectionLabel = "root_cause"
	SectionResolutionSteps    SectionLabel = "resolution_steps"
	SectionVerificationSteps  SectionLabel = "verification_steps"
	SectionPlaceholdersNeeded SectionLabel = "placeholders_needed"
)

// SectionLabels lists every canonical section in synthesis order.
var SectionLabels = []SectionLabel{
	SectionProblem,
	SectionSymptoms,
	SectionRootCause,
	SectionResolutionSteps,
	SectionVerificationSteps,
	SectionPlaceholdersNeeded,
}

// Step is one resolution or verification action citing the evidence it
// was lifted from.
type Step struct {
	Text            string   `json:"text"`
	EvidenceUnitIDs []string `json:"evidence_unit_ids"`
}

// PlaceholderNeed records a bracket token found in script text together
// with its dictionary meaning and supporting evidence.
type PlaceholderNeed struct {
	Placeholder     string   `json:"placeholder"`
	Meaning         string   `json:"meaning"`
	EvidenceUnitIDs []string `json:"evidence_unit_ids"`
}

// CaseDocument is the structured synthesis output for one ticket. Every
// non-empty section is expected to cite at least one evidence unit; the
// verifier checks that expectation rather than the type enforcing it.
type CaseDocument struct {
	TicketID           string            `json:"ticket_id"`
	Title              string            `json:"title"`
	Product            string            `json:"product"`
	Module             string            `json:"module"`
	Category           string            `json:"category"`
	Problem            string            `json:"problem"`
	Symptoms           []string          `json:"symptoms"`
	Environment        *string           `json:"environment,omitempty"`
	RootCause          *string           `json:"root_cause,omitempty"`
	ResolutionSteps    []Step            `json:"resolution_steps"`
	VerificationSteps  []Step            `json:"verification_steps"`
	WhenToEscalate     []string          `json:"when_to_escalate"`
	PlaceholdersNeeded []PlaceholderNeed `json:"placeholders_needed"`
	EvidenceSources    []string          `json:"evidence_sources"`
	GeneratedAt        string            `json:"generated_at"`
}

// FormatEvidenceSource renders one evidence-source index entry.
func FormatEvidenceSource(section SectionLabel, ids []string) string {
	return fmt.Sprintf("%s: %s", section, strings.Join(ids, ", "))
}

// ParseEvidenceSources reverses FormatEvidenceSource for the whole index.
func ParseEvidenceSources(sources []string) map[SectionLabel][]string {
	bySection := make(map[SectionLabel][]string)
	for _, entry := range sources {
		label, blob, found := strings.Cut(entry, ":")
		if !found {
			continue
		}
		var ids []string
		for _, raw := range strings.Split(blob, ",") {
			if id := strings.TrimSpace(raw); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			bySection[SectionLabel(strings.TrimSpace(label))] = ids
		}
	}
	return bySection
}

// SectionCitations collects cited evidence ids keyed by section label.
// Text sections come from the evidence-source index; step and placeholder
// sections are read from their own records.
func (d CaseDocument) SectionCitations() map[SectionLabel][]string {
	citations := map[SectionLabel][]string{
		SectionProblem:            nil,
		SectionSymptoms:           nil,
		SectionRootCause:          nil,
		SectionResolutionSteps:    nil,
		SectionVerificationSteps:  nil,
		SectionPlaceholdersNeeded: nil,
	}

	sources := ParseEvidenceSources(d.EvidenceSources)
	for _, section := range []SectionLabel{SectionProblem, SectionSymptoms, SectionRootCause} {
		citations[section] = sources[section]
	}

	citations[SectionResolutionSteps] = collectStepIDs(d.ResolutionSteps)
	citations[SectionVerificationSteps] = collectStepIDs(d.VerificationSteps)

	var placeholderIDs []string
	for _, need := range d.PlaceholdersNeeded {
		for _, id := range need.EvidenceUnitIDs {
			if id != "" {
				placeholderIDs = append(placeholderIDs, id)
			}
		}
	}
	citations[SectionPlaceholdersNeeded] = placeholderIDs

	return citations
}

func collectStepIDs(steps []Step) []string {
	var ids []string
	for _, step := range steps {
		for _, id := range step.EvidenceUnitIDs {
			if id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// DedupeIDs removes duplicates while preserving first-seen order.
func DedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	deduped := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	return deduped
}
