package domain

import (
	"fmt"
	"time"
)

// LineageRelationship classifies how an evidence unit relates to the
// section that cited it.
type LineageRelationship string

const (
	// RelationshipCreatedFrom marks primary narrative evidence.
	RelationshipCreatedFrom LineageRelationship = "CREATED_FROM"
	// RelationshipReferences marks supporting material (scripts and
	// placeholder dictionary entries).
	RelationshipReferences LineageRelationship = "REFERENCES"
)

// LineageEdge is a persisted provenance link from a cited evidence unit
// to the draft section that used it. Edges are deduplicated per
// (draft, evidence unit, section) triple.
type LineageEdge struct {
	EdgeID         string              `json:"edge_id"`
	DraftID        string              `json:"draft_id"`
	EvidenceUnitID string              `json:"evidence_unit_id"`
	Relationship   LineageRelationship `json:"relationship"`
	SectionLabel   SectionLabel        `json:"section_label"`
	CreatedAt      time.Time           `json:"created_at"`
}

// LineageEdgeID builds the deterministic identifier for an edge triple.
func LineageEdgeID(draftID, evidenceUnitID string, section SectionLabel) string {
	return fmt.Sprintf("EDGE-%s-%s-%s", draftID, evidenceUnitID, section)
}

// RelationshipFor picks the lineage relationship for a source kind.
func RelationshipFor(kind SourceKind) LineageRelationship {
	if kind == SourceKindScript || kind == SourceKindPlaceholder {
		return RelationshipReferences
	}
	return RelationshipCreatedFrom
}
