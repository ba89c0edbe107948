package domain

import (
	"time"
)

// SourceKind classifies where an evidence unit was extracted from.
type SourceKind string

const (
	SourceKindTicket       SourceKind = "TICKET"
	SourceKindConversation SourceKind = "CONVERSATION"
	SourceKindScript       SourceKind = "SCRIPT"
	SourceKindPlaceholder  SourceKind = "PLACEHOLDER"
)

// EvidenceUnit is an immutable, offset-addressed snippet of source text.
// The trust pipeline only reads and references these rows; ownership stays
// with the ingestion subsystem.
type EvidenceUnit struct {
	EvidenceUnitID  string     `json:"evidence_unit_id"`
	SourceKind      SourceKind `json:"source_type"`
	SourceID        string     `json:"source_id"`
	FieldName       string     `json:"field_name"`
	CharOffsetStart int        `json:"char_offset_start"`
	CharOffsetEnd   int        `json:"char_offset_end"`
	ChunkIndex      int        `json:"chunk_index"`
	SnippetText     string     `json:"snippet_text"`
	CreatedAt       time.Time  `json:"created_at"`
}

// IsSupporting reports whether the unit is supporting material (scripts,
// placeholder dictionary) rather than primary narrative source.
func (u EvidenceUnit) IsSupporting() bool {
	return u.SourceKind == SourceKindScript || u.SourceKind == SourceKindPlaceholder
}
