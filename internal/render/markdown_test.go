package render

import (
	"strings"
	"testing"

	"github.com/rpattn/kbtrust/internal/domain"
)

func TestDraftBodyRendersAllSections(t *testing.T) {
	rootCause := "Expired service credential."
	doc := domain.CaseDocument{
		TicketID:  "CS-1",
		Title:     "Login failures",
		Product:   "Portal",
		Module:    "Auth",
		Category:  "Access",
		Problem:   "Users cannot sign in.",
		Symptoms:  []string{"401 responses on every login attempt."},
		RootCause: &rootCause,
		ResolutionSteps: []domain.Step{
			{Text: "1. Rotate the credential", EvidenceUnitIDs: []string{"EU-1"}},
			{Text: "Verify login succeeds", EvidenceUnitIDs: []string{"EU-2"}},
		},
		VerificationSteps: []domain.Step{
			{Text: "Verify login succeeds", EvidenceUnitIDs: []string{"EU-2"}},
		},
		PlaceholdersNeeded: []domain.PlaceholderNeed{
			{Placeholder: "<API_KEY>", Meaning: "Service API key"},
		},
		EvidenceSources: []string{"problem: EU-0"},
		GeneratedAt:     "2025-01-02T03:04:05Z",
	}

	body := DraftBody(doc)

	for _, heading := range []string{
		"## Summary", "## Problem Statement", "## Environment", "## Root Cause",
		"## Resolution Steps", "## Verification Steps", "## Required Inputs", "## Evidence Sources",
	} {
		if !strings.Contains(body, heading) {
			t.Fatalf("expected heading %q in body", heading)
		}
	}

	if !strings.Contains(body, "1. Rotate the credential") {
		t.Fatalf("expected renumbered resolution step, got:\n%s", body)
	}
	if strings.Contains(body, "1. 1. Rotate") {
		t.Fatalf("leading numbering was not stripped:\n%s", body)
	}
	if !strings.Contains(body, "2. Verify login succeeds") {
		t.Fatalf("expected second resolution step")
	}
	if !strings.Contains(body, "- `<API_KEY>`: Service API key") {
		t.Fatalf("expected placeholder bullet")
	}
	if !strings.Contains(body, "Draft generated from Ticket CS-1 | 2025-01-02T03:04:05Z") {
		t.Fatalf("expected generation footer")
	}
}

func TestDraftBodyEmptySectionsRenderNA(t *testing.T) {
	body := DraftBody(domain.CaseDocument{TicketID: "CS-2", Product: "P", Module: "M", Category: "C"})

	if got := strings.Count(body, "N/A"); got < 5 {
		t.Fatalf("expected empty sections to render N/A, count=%d body:\n%s", got, body)
	}
}
