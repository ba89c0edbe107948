// Package render turns a structured case document into the markdown body
// stored on a draft. The title is intentionally left out; the presentation
// layer displays it separately.
package render

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rpattn/kbtrust/internal/domain"
)

var leadingNumberRe = regexp.MustCompile(`^\s*(\d+[\.\)]\s+|[-•]\s+)`)

// DraftBody renders the canonical markdown layout for a case document.
func DraftBody(doc domain.CaseDocument) string {
	problem := strings.TrimSpace(doc.Problem)

	summaryLines := []string{}
	if problem != "" {
		summaryLines = append(summaryLines, problem)
	}
	summaryLines = append(summaryLines, doc.Symptoms...)

	rootCause := "N/A"
	if doc.RootCause != nil && strings.TrimSpace(*doc.RootCause) != "" {
		rootCause = strings.TrimSpace(*doc.RootCause)
	}

	timestamp := doc.GeneratedAt
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	var b strings.Builder
	b.WriteString("## Summary\n")
	b.WriteString(formatParagraphs(summaryLines))
	b.WriteString("\n\n## Problem Statement\n")
	b.WriteString(orNA(problem))
	b.WriteString("\n\n## Environment\n")
	fmt.Fprintf(&b, "- **Product:** %s\n", doc.Product)
	fmt.Fprintf(&b, "- **Module:** %s\n", doc.Module)
	fmt.Fprintf(&b, "- **Category:** %s\n", doc.Category)
	b.WriteString("\n## Root Cause\n")
	b.WriteString(rootCause)
	b.WriteString("\n\n## Resolution Steps\n")
	b.WriteString(formatSteps(doc.ResolutionSteps))
	b.WriteString("\n\n## Verification Steps\n")
	b.WriteString(formatSteps(doc.VerificationSteps))
	b.WriteString("\n\n## Required Inputs\n")
	b.WriteString(formatPlaceholders(doc.PlaceholdersNeeded))
	b.WriteString("\n\n## Evidence Sources\n")
	b.WriteString(formatBullets(doc.EvidenceSources))
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "*Draft generated from Ticket %s | %s*", doc.TicketID, timestamp)
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func formatParagraphs(lines []string) string {
	cleaned := []string{}
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return "N/A"
	}
	return strings.Join(cleaned, "\n")
}

func formatSteps(steps []domain.Step) string {
	if len(steps) == 0 {
		return "N/A"
	}
	lines := []string{}
	for _, step := range steps {
		text := strings.TrimSpace(step.Text)
		if text == "" {
			continue
		}
		// Strip any numbering carried in from the source snippet so the
		// rendered list numbers stay consistent.
		text = strings.TrimSpace(leadingNumberRe.ReplaceAllString(text, ""))
		if text != "" {
			lines = append(lines, fmt.Sprintf("%d. %s", len(lines)+1, text))
		}
	}
	if len(lines) == 0 {
		return "N/A"
	}
	return strings.Join(lines, "\n")
}

func formatPlaceholders(needs []domain.PlaceholderNeed) string {
	if len(needs) == 0 {
		return "N/A"
	}
	lines := []string{}
	for _, need := range needs {
		token := strings.TrimSpace(need.Placeholder)
		meaning := strings.TrimSpace(need.Meaning)
		switch {
		case token != "" && meaning != "":
			lines = append(lines, fmt.Sprintf("- `%s`: %s", token, meaning))
		case token != "":
			lines = append(lines, fmt.Sprintf("- `%s`", token))
		}
	}
	if len(lines) == 0 {
		return "N/A"
	}
	return strings.Join(lines, "\n")
}

func formatBullets(items []string) string {
	if len(items) == 0 {
		return "N/A"
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}
