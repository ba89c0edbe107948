package synthesis

import (
	"context"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rpattn/kbtrust/internal/domain"
	"github.com/rpattn/kbtrust/internal/repository"
)

var (
	placeholderTokenRe     = regexp.MustCompile(`<[A-Z0-9_]+>`)
	verificationImperative = regexp.MustCompile(`(?i)^(verify|confirm|validate)\b`)
)

// Synthesizer selects and summarizes evidence for one document section.
// A nil collaborator means deterministic synthesis only.
type Synthesizer struct {
	evidence repository.EvidenceRepository
	collab   Collaborator
	now      func() time.Time
}

// NewSynthesizer creates a section synthesizer.
func NewSynthesizer(evidence repository.EvidenceRepository, collab Collaborator) *Synthesizer {
	return &Synthesizer{
		evidence: evidence,
		collab:   collab,
		now:      time.Now,
	}
}

// HasCollaborator reports whether an external collaborator is wired.
func (s *Synthesizer) HasCollaborator() bool {
	return s.collab != nil
}

// BuildTextSection produces the text and citations for one prose section
// (problem, symptoms, root_cause). Ids already present in used are never
// cited again; every id selected here is added to used.
func (s *Synthesizer) BuildTextSection(
	ctx context.Context,
	section domain.SectionLabel,
	sourceIDs []string,
	meta domain.TicketMeta,
	used map[string]struct{},
) (string, []string, domain.SectionTrace, error) {
	candidates, trace, err := s.selectCandidates(ctx, section, sourceIDs, meta, used)
	if err != nil {
		return "", nil, domain.SectionTrace{}, err
	}

	var (
		text        string
		selectedIDs []string
	)
	if s.collab != nil && len(candidates) > 0 {
		text, selectedIDs, trace.CollaboratorCall = s.completeSection(ctx, section, candidates)
	}
	if text == "" {
		text, selectedIDs = deterministicSection(candidates)
	}

	for _, id := range selectedIDs {
		used[id] = struct{}{}
	}
	trace.SelectedEvidenceUnitIDs = selectedIDs
	return text, selectedIDs, trace, nil
}

// BuildResolutionSteps maps each surviving candidate one-to-one onto a
// step citing itself. Never summarized, even with a collaborator.
func (s *Synthesizer) BuildResolutionSteps(
	ctx context.Context,
	sourceIDs []string,
	meta domain.TicketMeta,
	used map[string]struct{},
) ([]domain.Step, []string, domain.SectionTrace, error) {
	candidates, trace, err := s.selectCandidates(ctx, domain.SectionResolutionSteps, sourceIDs, meta, used)
	if err != nil {
		return nil, nil, domain.SectionTrace{}, err
	}

	steps := stepsFromEvidence(candidates)
	var selectedIDs []string
	for _, step := range steps {
		selectedIDs = append(selectedIDs, step.EvidenceUnitIDs...)
	}
	selectedIDs = domain.DedupeIDs(selectedIDs)

	for _, id := range selectedIDs {
		used[id] = struct{}{}
	}
	trace.SelectedEvidenceUnitIDs = selectedIDs
	return steps, selectedIDs, trace, nil
}

// FilterVerificationSteps derives verification steps as the subset of
// resolution steps opening with a verification imperative. The citation
// overlap with resolution steps is the one declared exception to the
// cross-section dedup rule.
func FilterVerificationSteps(steps []domain.Step) []domain.Step {
	verification := []domain.Step{}
	for _, step := range steps {
		if verificationImperative.MatchString(strings.TrimSpace(step.Text)) {
			verification = append(verification, step)
		}
	}
	return verification
}

// BuildPlaceholdersNeeded scans script text for bracket tokens, resolves
// each against the placeholder dictionary, and attaches the script and
// dictionary evidence units that carry the token.
func (s *Synthesizer) BuildPlaceholdersNeeded(
	ctx context.Context,
	tctx domain.TicketContext,
	used map[string]struct{},
) ([]domain.PlaceholderNeed, []string, domain.SectionTrace, error) {
	start := s.now()

	var scriptIDs []string
	for _, script := range tctx.Scripts {
		if script.ScriptID != "" {
			scriptIDs = append(scriptIDs, script.ScriptID)
		}
	}

	scriptUnits := []domain.EvidenceUnit{}
	if len(scriptIDs) > 0 {
		var err error
		scriptUnits, err = s.evidence.QueryBy(
			ctx,
			scriptIDs,
			[]domain.SourceKind{domain.SourceKindScript},
			[]string{"Script_Text_Sanitized"},
			0,
		)
		if err != nil {
			return nil, nil, domain.SectionTrace{}, err
		}
	}

	var tokens []string
	meanings := map[string]string{}
	for _, entry := range tctx.Placeholders {
		if entry.Placeholder != "" {
			tokens = append(tokens, entry.Placeholder)
			meanings[entry.Placeholder] = entry.Meaning
		}
	}

	placeholderUnits := map[string]domain.EvidenceUnit{}
	if len(tokens) > 0 {
		units, err := s.evidence.QueryBy(
			ctx,
			tokens,
			[]domain.SourceKind{domain.SourceKindPlaceholder},
			nil,
			0,
		)
		if err != nil {
			return nil, nil, domain.SectionTrace{}, err
		}
		for _, unit := range units {
			placeholderUnits[unit.SourceID] = unit
		}
	}

	trace := domain.SectionTrace{
		CandidateCount: len(scriptUnits) + len(placeholderUnits),
		QueryMillis:    s.now().Sub(start).Milliseconds(),
	}

	found := map[string]domain.PlaceholderNeed{}
	var order []string
	for _, script := range tctx.Scripts {
		for _, token := range domain.DedupeIDs(placeholderTokenRe.FindAllString(script.ScriptText, -1)) {
			var evidenceIDs []string
			for _, unit := range scriptUnits {
				if strings.Contains(unit.SnippetText, token) {
					if _, taken := used[unit.EvidenceUnitID]; !taken {
						evidenceIDs = append(evidenceIDs, unit.EvidenceUnitID)
					}
				}
			}
			if unit, ok := placeholderUnits[token]; ok {
				if _, taken := used[unit.EvidenceUnitID]; !taken {
					evidenceIDs = append(evidenceIDs, unit.EvidenceUnitID)
				}
			}
			evidenceIDs = domain.DedupeIDs(evidenceIDs)
			for _, id := range evidenceIDs {
				used[id] = struct{}{}
			}
			if _, seen := found[token]; !seen {
				order = append(order, token)
			}
			found[token] = domain.PlaceholderNeed{
				Placeholder:     token,
				Meaning:         meanings[token],
				EvidenceUnitIDs: evidenceIDs,
			}
		}
	}

	needs := make([]domain.PlaceholderNeed, 0, len(order))
	var selectedIDs []string
	for _, token := range order {
		need := found[token]
		needs = append(needs, need)
		selectedIDs = append(selectedIDs, need.EvidenceUnitIDs...)
	}
	selectedIDs = domain.DedupeIDs(selectedIDs)
	trace.SelectedEvidenceUnitIDs = selectedIDs
	return needs, selectedIDs, trace, nil
}

// selectCandidates runs the allow-list query, excludes already-used ids,
// ranks by keyword overlap (offset order breaking ties), truncates, and
// falls back to a broader TICKET-only query when nothing survives.
func (s *Synthesizer) selectCandidates(
	ctx context.Context,
	section domain.SectionLabel,
	sourceIDs []string,
	meta domain.TicketMeta,
	used map[string]struct{},
) ([]domain.EvidenceUnit, domain.SectionTrace, error) {
	rule := sectionRules[section]
	start := s.now()

	units, err := s.evidence.QueryBy(ctx, sourceIDs, rule.SourceKinds, rule.FieldNames, 0)
	if err != nil {
		return nil, domain.SectionTrace{}, err
	}
	queryMillis := s.now().Sub(start).Milliseconds()

	candidates := excludeUsed(units, used)
	candidates = rankCandidates(candidates, extractKeywords(meta))
	if len(candidates) > candidateLimit {
		candidates = candidates[:candidateLimit]
	}

	if len(candidates) == 0 && len(sourceIDs) > 0 {
		fallback, err := s.evidence.QueryBy(
			ctx,
			sourceIDs,
			[]domain.SourceKind{domain.SourceKindTicket},
			nil,
			0,
		)
		if err != nil {
			return nil, domain.SectionTrace{}, err
		}
		candidates = excludeUsed(fallback, used)
		if len(candidates) > fallbackLimit {
			candidates = candidates[:fallbackLimit]
		}
		if len(candidates) > 0 {
			log.Printf("[SYNTH] %s: fell back to %d ticket units for %s", section, len(candidates), meta.TicketID)
		}
	}

	return candidates, domain.SectionTrace{
		CandidateCount: len(candidates),
		QueryMillis:    queryMillis,
	}, nil
}

// completeSection runs the collaborator and applies the citation
// integrity gate: any returned id outside the candidate set voids the
// whole result and the caller falls back to deterministic synthesis.
func (s *Synthesizer) completeSection(
	ctx context.Context,
	section domain.SectionLabel,
	candidates []domain.EvidenceUnit,
) (string, []string, *domain.CollaboratorCall) {
	start := s.now()
	result, err := s.collab.Complete(ctx, CompletionRequest{Section: section, Candidates: candidates})
	latency := s.now().Sub(start).Milliseconds()
	if err != nil {
		log.Printf("[SYNTH] %s: collaborator failed, using deterministic fallback: %v", section, err)
		return "", nil, &domain.CollaboratorCall{Error: "collaborator_call_failed", LatencyMS: latency}
	}

	call := &domain.CollaboratorCall{
		Model:       result.Model,
		TotalTokens: result.TotalTokens,
		LatencyMS:   latency,
	}

	known := make(map[string]struct{}, len(candidates))
	for _, unit := range candidates {
		known[unit.EvidenceUnitID] = struct{}{}
	}
	var unknown []string
	var selectedIDs []string
	for _, id := range result.EvidenceUnitIDs {
		if id == "" {
			continue
		}
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
			continue
		}
		selectedIDs = append(selectedIDs, id)
	}
	if len(unknown) > 0 {
		integrity := &domain.CitationIntegrityError{Section: section, UnknownIDs: unknown}
		log.Printf("[SYNTH] %s: discarding collaborator output: %v", section, integrity)
		call.Error = "citation_integrity_violation"
		return "", nil, call
	}

	selectedIDs = domain.DedupeIDs(selectedIDs)
	if result.Text == "" || len(selectedIDs) == 0 {
		return "", nil, call
	}
	return result.Text, selectedIDs, call
}

func excludeUsed(units []domain.EvidenceUnit, used map[string]struct{}) []domain.EvidenceUnit {
	remaining := []domain.EvidenceUnit{}
	for _, unit := range units {
		if _, taken := used[unit.EvidenceUnitID]; !taken {
			remaining = append(remaining, unit)
		}
	}
	return remaining
}

func rankCandidates(units []domain.EvidenceUnit, keywords []string) []domain.EvidenceUnit {
	if len(keywords) == 0 {
		return units
	}
	ranked := make([]domain.EvidenceUnit, len(units))
	copy(ranked, units)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := keywordScore(ranked[i].SnippetText, keywords), keywordScore(ranked[j].SnippetText, keywords)
		if si != sj {
			return si > sj
		}
		return ranked[i].CharOffsetStart < ranked[j].CharOffsetStart
	})
	return ranked
}

// deterministicSection concatenates every candidate snippet verbatim and
// cites all of them. Always total; the pipeline's last line of defense.
func deterministicSection(candidates []domain.EvidenceUnit) (string, []string) {
	var snippets []string
	var ids []string
	for _, unit := range candidates {
		if snippet := strings.TrimSpace(unit.SnippetText); snippet != "" {
			snippets = append(snippets, snippet)
		}
		ids = append(ids, unit.EvidenceUnitID)
	}
	return strings.TrimSpace(strings.Join(snippets, " ")), domain.DedupeIDs(ids)
}

func stepsFromEvidence(units []domain.EvidenceUnit) []domain.Step {
	steps := []domain.Step{}
	for _, unit := range units {
		text := strings.TrimSpace(unit.SnippetText)
		if text == "" {
			continue
		}
		steps = append(steps, domain.Step{
			Text:            text,
			EvidenceUnitIDs: []string{unit.EvidenceUnitID},
		})
	}
	return steps
}
