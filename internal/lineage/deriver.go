// Package lineage converts a case document's citations into persisted
// provenance edges and serves the trust-panel provenance report.
package lineage

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/kbtrust/internal/domain"
	"github.com/rpattn/kbtrust/internal/repository"
)

const snippetPreviewLimit = 160

// Deriver walks section citations and persists one edge per surviving
// (draft, evidence unit, section) triple.
type Deriver struct {
	evidence repository.EvidenceRepository
	edges    repository.LineageRepository
	now      func() time.Time
}

// NewDeriver creates a lineage deriver.
func NewDeriver(evidence repository.EvidenceRepository, edges repository.LineageRepository) *Deriver {
	return &Deriver{
		evidence: evidence,
		edges:    edges,
		now:      time.Now,
	}
}

// WithTx rebinds the edge store onto an open transaction. The evidence
// store stays on the pool; it is read-only.
func (d *Deriver) WithTx(tx pgx.Tx) *Deriver {
	return &Deriver{
		evidence: d.evidence,
		edges:    d.edges.WithTx(tx),
		now:      d.now,
	}
}

// Derive persists provenance edges for the draft. Re-deriving for a
// draft that already has edges returns the existing rows untouched, so
// double invocation never duplicates provenance.
func (d *Deriver) Derive(ctx context.Context, draft domain.Draft, doc domain.CaseDocument) ([]domain.LineageEdge, error) {
	existing, err := d.edges.CountByDraft(ctx, draft.DraftID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return d.edges.ListByDraft(ctx, draft.DraftID)
	}

	citations := doc.SectionCitations()
	var allIDs []string
	for _, ids := range citations {
		allIDs = append(allIDs, ids...)
	}
	allIDs = domain.DedupeIDs(allIDs)
	if len(allIDs) == 0 {
		return []domain.LineageEdge{}, nil
	}

	units, err := d.evidence.GetByIDs(ctx, allIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cited evidence: %w", err)
	}
	unitsByID := make(map[string]domain.EvidenceUnit, len(units))
	for _, unit := range units {
		unitsByID[unit.EvidenceUnitID] = unit
	}

	createdAt := d.now()
	edges := []domain.LineageEdge{}
	for _, section := range domain.SectionLabels {
		for _, id := range domain.DedupeIDs(citations[section]) {
			unit, ok := unitsByID[id]
			if !ok {
				// Unverifiable citation; the verifier reports it, lineage
				// just skips it.
				continue
			}
			edges = append(edges, domain.LineageEdge{
				EdgeID:         domain.LineageEdgeID(draft.DraftID, id, section),
				DraftID:        draft.DraftID,
				EvidenceUnitID: id,
				Relationship:   domain.RelationshipFor(unit.SourceKind),
				SectionLabel:   section,
				CreatedAt:      createdAt,
			})
		}
	}

	if err := d.edges.CreateEdges(ctx, edges); err != nil {
		return nil, err
	}
	return edges, nil
}

// ProvenanceEdge is one trust-panel row: the edge plus a snippet preview
// of the evidence behind it.
type ProvenanceEdge struct {
	EdgeID         string                     `json:"edge_id"`
	EvidenceUnitID string                     `json:"evidence_unit_id"`
	SnippetPreview string                     `json:"snippet_preview"`
	SourceKind     domain.SourceKind          `json:"source_type"`
	SourceID       string                     `json:"source_id"`
	Relationship   domain.LineageRelationship `json:"relationship"`
	Section        domain.SectionLabel        `json:"section"`
}

// ProvenanceReport lists every persisted edge for a draft.
type ProvenanceReport struct {
	DraftID string           `json:"draft_id"`
	Edges   []ProvenanceEdge `json:"edges"`
}

// Report assembles the provenance report for one draft.
func (d *Deriver) Report(ctx context.Context, draftID string) (ProvenanceReport, error) {
	edges, err := d.edges.ListByDraft(ctx, draftID)
	if err != nil {
		return ProvenanceReport{}, err
	}

	var ids []string
	for _, edge := range edges {
		ids = append(ids, edge.EvidenceUnitID)
	}
	units, err := d.evidence.GetByIDs(ctx, domain.DedupeIDs(ids))
	if err != nil {
		return ProvenanceReport{}, fmt.Errorf("failed to resolve edge evidence: %w", err)
	}
	unitsByID := make(map[string]domain.EvidenceUnit, len(units))
	for _, unit := range units {
		unitsByID[unit.EvidenceUnitID] = unit
	}

	report := ProvenanceReport{DraftID: draftID, Edges: []ProvenanceEdge{}}
	for _, edge := range edges {
		row := ProvenanceEdge{
			EdgeID:         edge.EdgeID,
			EvidenceUnitID: edge.EvidenceUnitID,
			Relationship:   edge.Relationship,
			Section:        edge.SectionLabel,
		}
		if unit, ok := unitsByID[edge.EvidenceUnitID]; ok {
			row.SnippetPreview = truncateRunes(unit.SnippetText, snippetPreviewLimit)
			row.SourceKind = unit.SourceKind
			row.SourceID = unit.SourceID
		}
		report.Edges = append(report.Edges, row)
	}
	return report, nil
}

// truncateRunes cuts the preview to at most limit characters without
// splitting a multibyte rune.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
