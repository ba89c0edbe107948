package lineage

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/kbtrust/internal/domain"
	"github.com/rpattn/kbtrust/internal/repository"
)

type stubEvidenceRepo struct {
	units map[string]domain.EvidenceUnit
}

func (s *stubEvidenceRepo) QueryBy(context.Context, []string, []domain.SourceKind, []string, int) ([]domain.EvidenceUnit, error) {
	return nil, nil
}

func (s *stubEvidenceRepo) Exists(_ context.Context, ids []string) (map[string]struct{}, error) {
	found := map[string]struct{}{}
	for _, id := range ids {
		if _, ok := s.units[id]; ok {
			found[id] = struct{}{}
		}
	}
	return found, nil
}

func (s *stubEvidenceRepo) GetByIDs(_ context.Context, ids []string) ([]domain.EvidenceUnit, error) {
	var units []domain.EvidenceUnit
	for _, id := range ids {
		if unit, ok := s.units[id]; ok {
			units = append(units, unit)
		}
	}
	return units, nil
}

type stubLineageRepo struct {
	edges []domain.LineageEdge
}

func (s *stubLineageRepo) WithTx(pgx.Tx) repository.LineageRepository { return s }

func (s *stubLineageRepo) CreateEdges(_ context.Context, edges []domain.LineageEdge) error {
	s.edges = append(s.edges, edges...)
	return nil
}

func (s *stubLineageRepo) ListByDraft(_ context.Context, draftID string) ([]domain.LineageEdge, error) {
	var edges []domain.LineageEdge
	for _, edge := range s.edges {
		if edge.DraftID == draftID {
			edges = append(edges, edge)
		}
	}
	return edges, nil
}

func (s *stubLineageRepo) CountByDraft(ctx context.Context, draftID string) (int64, error) {
	edges, _ := s.ListByDraft(ctx, draftID)
	return int64(len(edges)), nil
}

func evidenceWith(units ...domain.EvidenceUnit) *stubEvidenceRepo {
	byID := map[string]domain.EvidenceUnit{}
	for _, unit := range units {
		byID[unit.EvidenceUnitID] = unit
	}
	return &stubEvidenceRepo{units: byID}
}

func citedDocument() (domain.Draft, domain.CaseDocument) {
	draft := domain.Draft{DraftID: "d-1", TicketID: "CS-1"}
	doc := domain.CaseDocument{
		TicketID: "CS-1",
		Title:    "Login failure",
		Problem:  "Users cannot sign in.",
		ResolutionSteps: []domain.Step{
			{Text: "Run the rotation script", EvidenceUnitIDs: []string{"EU-S1"}},
		},
		EvidenceSources: []string{
			"problem: EU-1",
			"resolution_steps: EU-S1",
		},
	}
	return draft, doc
}

func TestDeriveCreatesOneEdgePerCitation(t *testing.T) {
	evidence := evidenceWith(
		domain.EvidenceUnit{EvidenceUnitID: "EU-1", SourceKind: domain.SourceKindTicket, SourceID: "CS-1"},
		domain.EvidenceUnit{EvidenceUnitID: "EU-S1", SourceKind: domain.SourceKindScript, SourceID: "SCR-9"},
	)
	edges := &stubLineageRepo{}
	deriver := NewDeriver(evidence, edges)

	draft, doc := citedDocument()
	created, err := deriver.Derive(context.Background(), draft, doc)
	if err != nil {
		t.Fatalf("derive returned error: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(created))
	}

	byUnit := map[string]domain.LineageEdge{}
	for _, edge := range created {
		byUnit[edge.EvidenceUnitID] = edge
	}
	narrative := byUnit["EU-1"]
	if narrative.Relationship != domain.RelationshipCreatedFrom || narrative.SectionLabel != domain.SectionProblem {
		t.Fatalf("unexpected narrative edge: %+v", narrative)
	}
	script := byUnit["EU-S1"]
	if script.Relationship != domain.RelationshipReferences {
		t.Fatalf("expected REFERENCES for script evidence, got %s", script.Relationship)
	}
	if narrative.EdgeID != "EDGE-d-1-EU-1-problem" {
		t.Fatalf("unexpected edge id: %s", narrative.EdgeID)
	}
}

func TestDeriveIsIdempotent(t *testing.T) {
	evidence := evidenceWith(
		domain.EvidenceUnit{EvidenceUnitID: "EU-1", SourceKind: domain.SourceKindTicket},
		domain.EvidenceUnit{EvidenceUnitID: "EU-S1", SourceKind: domain.SourceKindScript},
	)
	edges := &stubLineageRepo{}
	deriver := NewDeriver(evidence, edges)

	draft, doc := citedDocument()
	if _, err := deriver.Derive(context.Background(), draft, doc); err != nil {
		t.Fatalf("first derive returned error: %v", err)
	}
	again, err := deriver.Derive(context.Background(), draft, doc)
	if err != nil {
		t.Fatalf("second derive returned error: %v", err)
	}
	if len(edges.edges) != 2 {
		t.Fatalf("expected 2 persisted edges after re-derive, got %d", len(edges.edges))
	}
	if len(again) != 2 {
		t.Fatalf("expected existing edges returned, got %d", len(again))
	}
}

func TestDeriveSkipsUnresolvableCitations(t *testing.T) {
	evidence := evidenceWith(
		domain.EvidenceUnit{EvidenceUnitID: "EU-1", SourceKind: domain.SourceKindTicket},
	)
	edges := &stubLineageRepo{}
	deriver := NewDeriver(evidence, edges)

	draft, doc := citedDocument()
	created, err := deriver.Derive(context.Background(), draft, doc)
	if err != nil {
		t.Fatalf("derive returned error: %v", err)
	}
	if len(created) != 1 || created[0].EvidenceUnitID != "EU-1" {
		t.Fatalf("expected only resolvable citation persisted, got %+v", created)
	}
}

func TestReportIncludesSnippetPreview(t *testing.T) {
	long := strings.Repeat("x", snippetPreviewLimit+40)
	evidence := evidenceWith(
		domain.EvidenceUnit{
			EvidenceUnitID: "EU-1",
			SourceKind:     domain.SourceKindTicket,
			SourceID:       "CS-1",
			SnippetText:    long,
		},
		domain.EvidenceUnit{EvidenceUnitID: "EU-S1", SourceKind: domain.SourceKindScript, SourceID: "SCR-9"},
	)
	edges := &stubLineageRepo{}
	deriver := NewDeriver(evidence, edges)

	draft, doc := citedDocument()
	if _, err := deriver.Derive(context.Background(), draft, doc); err != nil {
		t.Fatalf("derive returned error: %v", err)
	}

	report, err := deriver.Report(context.Background(), "d-1")
	if err != nil {
		t.Fatalf("report returned error: %v", err)
	}
	if report.DraftID != "d-1" || len(report.Edges) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	for _, edge := range report.Edges {
		if edge.EvidenceUnitID == "EU-1" {
			if len(edge.SnippetPreview) != snippetPreviewLimit {
				t.Fatalf("expected truncated preview, got %d chars", len(edge.SnippetPreview))
			}
			if edge.SourceID != "CS-1" {
				t.Fatalf("unexpected source id: %s", edge.SourceID)
			}
		}
	}
}

func TestReportPreviewKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("é", snippetPreviewLimit+40)
	evidence := evidenceWith(
		domain.EvidenceUnit{
			EvidenceUnitID: "EU-1",
			SourceKind:     domain.SourceKindTicket,
			SourceID:       "CS-1",
			SnippetText:    long,
		},
		domain.EvidenceUnit{EvidenceUnitID: "EU-S1", SourceKind: domain.SourceKindScript, SourceID: "SCR-9"},
	)
	deriver := NewDeriver(evidence, &stubLineageRepo{})

	draft, doc := citedDocument()
	if _, err := deriver.Derive(context.Background(), draft, doc); err != nil {
		t.Fatalf("derive returned error: %v", err)
	}

	report, err := deriver.Report(context.Background(), "d-1")
	if err != nil {
		t.Fatalf("report returned error: %v", err)
	}
	for _, edge := range report.Edges {
		if edge.EvidenceUnitID != "EU-1" {
			continue
		}
		if !utf8.ValidString(edge.SnippetPreview) {
			t.Fatalf("preview split a multibyte rune: %q", edge.SnippetPreview)
		}
		if got := utf8.RuneCountInString(edge.SnippetPreview); got != snippetPreviewLimit {
			t.Fatalf("expected %d characters, got %d", snippetPreviewLimit, got)
		}
	}
}

func TestReportEmptyDraft(t *testing.T) {
	deriver := NewDeriver(evidenceWith(), &stubLineageRepo{})

	report, err := deriver.Report(context.Background(), "d-none")
	if err != nil {
		t.Fatalf("report returned error: %v", err)
	}
	if len(report.Edges) != 0 {
		t.Fatalf("expected empty report, got %+v", report.Edges)
	}
}
