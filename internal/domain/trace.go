package domain

// CollaboratorCall records one bounded call to the external synthesis
// collaborator, successful or not.
type CollaboratorCall struct {
	Model       string `json:"model,omitempty"`
	TotalTokens int    `json:"tokens,omitempty"`
	LatencyMS   int64  `json:"latency_ms,omitempty"`
	Error       string `json:"error,omitempty"`
}

// SectionTrace is the per-section synthesis diagnostic record.
type SectionTrace struct {
	CandidateCount          int               `json:"candidate_count"`
	SelectedEvidenceUnitIDs []string          `json:"selected_evidence_unit_ids"`
	QueryMillis             int64             `json:"db_query_ms"`
	CollaboratorCall        *CollaboratorCall `json:"collaborator_call,omitempty"`
}

// VerifierReport is the itemized outcome of the structural and
// referential check battery. Advisory unless gating is configured.
type VerifierReport struct {
	OK     bool            `json:"ok"`
	Errors []string        `json:"errors"`
	Checks map[string]bool `json:"checks"`
}

// Trace is attached to every generated draft so reviewers can audit how
// each section was assembled.
type Trace struct {
	GenerationMode string                        `json:"generation_mode"`
	StartedAt      string                        `json:"started_at"`
	CompletedAt    string                        `json:"completed_at"`
	Sections       map[SectionLabel]SectionTrace `json:"sections"`
	Verifier       *VerifierReport               `json:"verifier,omitempty"`
}
