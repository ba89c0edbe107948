package synthesis

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/kbtrust/internal/db"
	"github.com/rpattn/kbtrust/internal/domain"
	"github.com/rpattn/kbtrust/internal/governance"
	"github.com/rpattn/kbtrust/internal/lineage"
	"github.com/rpattn/kbtrust/internal/render"
	"github.com/rpattn/kbtrust/internal/repository"
	"github.com/rpattn/kbtrust/internal/verify"
)

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// Assembler orchestrates section synthesis into one case document,
// verifies it, and persists the resulting draft, its audit event and its
// provenance edges as a single unit of work.
type Assembler struct {
	runner   TxRunner
	tickets  repository.TicketContextRepository
	evidence repository.EvidenceRepository
	drafts   repository.DraftRepository
	events   repository.AuditEventRepository
	deriver  *lineage.Deriver
	synth    *Synthesizer

	// blockOnVerifierFailure turns the advisory verifier into a hard
	// gate on draft persistence.
	blockOnVerifierFailure bool

	now  func() time.Time
	lock func(ctx context.Context, q db.DBTX, ticketID string) error
}

// NewAssembler creates a case assembler.
func NewAssembler(
	runner TxRunner,
	tickets repository.TicketContextRepository,
	evidence repository.EvidenceRepository,
	drafts repository.DraftRepository,
	events repository.AuditEventRepository,
	deriver *lineage.Deriver,
	synth *Synthesizer,
	blockOnVerifierFailure bool,
) *Assembler {
	return &Assembler{
		runner:                 runner,
		tickets:                tickets,
		evidence:               evidence,
		drafts:                 drafts,
		events:                 events,
		deriver:                deriver,
		synth:                  synth,
		blockOnVerifierFailure: blockOnVerifierFailure,
		now:                    time.Now,
		lock:                   db.AcquireTicketLock,
	}
}

// Generate assembles, verifies and persists a new draft for the ticket.
// Any prior draft for the ticket still in draft or approved status is
// superseded in the same transaction, so at most one active draft per
// ticket exists afterwards.
func (a *Assembler) Generate(ctx context.Context, ticketID string) (domain.Draft, domain.CaseDocument, error) {
	startedAt := a.now().UTC()

	tctx, err := a.tickets.Load(ctx, ticketID)
	if err != nil {
		return domain.Draft{}, domain.CaseDocument{}, err
	}

	doc, trace, err := a.assemble(ctx, tctx, startedAt)
	if err != nil {
		return domain.Draft{}, domain.CaseDocument{}, err
	}

	report, err := verify.Run(ctx, doc, a.evidence)
	if err != nil {
		return domain.Draft{}, domain.CaseDocument{}, err
	}
	trace.Verifier = &report
	trace.CompletedAt = a.now().UTC().Format(time.RFC3339)
	if !report.OK {
		log.Printf("[SYNTH] verification reported %d issue(s) for ticket %s", len(report.Errors), ticketID)
		if a.blockOnVerifierFailure {
			return domain.Draft{}, domain.CaseDocument{}, &domain.VerificationError{Report: report}
		}
	}

	draft := domain.Draft{
		DraftID:        uuid.New().String(),
		TicketID:       doc.TicketID,
		Title:          doc.Title,
		BodyMarkdown:   render.DraftBody(doc),
		CaseDocument:   doc,
		Status:         domain.DraftStatusDraft,
		GenerationMode: trace.GenerationMode,
		Trace:          trace,
		CreatedAt:      a.now().UTC(),
	}

	err = a.runner.WithTx(ctx, func(tx pgx.Tx) error {
		// Serialize draft creation per ticket so concurrent generations
		// cannot both survive the supersession cascade.
		if err := a.lock(ctx, tx, ticketID); err != nil {
			return err
		}

		drafts := a.drafts.WithTx(tx)
		events := a.events.WithTx(tx)

		if _, err := governance.SupersedeOthers(ctx, drafts, events, governance.SupersedeRequest{
			TicketID:    draft.TicketID,
			KeepDraftID: draft.DraftID,
			Reason:      "Superseded by newer draft generation.",
			Statuses:    []domain.DraftStatus{domain.DraftStatusDraft, domain.DraftStatusApproved},
			At:          draft.CreatedAt,
		}); err != nil {
			return err
		}

		if err := drafts.Create(ctx, draft); err != nil {
			return err
		}

		if err := events.Record(ctx, domain.AuditEvent{
			EventID:   uuid.New().String(),
			EventType: domain.EventDraftGenerated,
			DraftID:   &draft.DraftID,
			TicketID:  &draft.TicketID,
			Metadata:  map[string]any{"generation_mode": draft.GenerationMode},
			CreatedAt: draft.CreatedAt,
		}); err != nil {
			return err
		}

		if _, err := a.deriver.WithTx(tx).Derive(ctx, draft, doc); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Draft{}, domain.CaseDocument{}, err
	}

	log.Printf("[SYNTH] generated draft %s for ticket %s (mode %s, verified=%t)",
		draft.DraftID, ticketID, draft.GenerationMode, report.OK)
	return draft, doc, nil
}

// assemble runs the six section builders against one ticket, threading a
// single used-id set through every call so no evidence id is cited twice
// outside the resolution/verification overlap.
func (a *Assembler) assemble(ctx context.Context, tctx domain.TicketContext, startedAt time.Time) (domain.CaseDocument, domain.Trace, error) {
	meta := tctx.Meta()
	sourceIDs := tctx.SourceIDs()
	used := map[string]struct{}{}

	mode := domain.GenerationModeGrounded
	if a.synth.HasCollaborator() {
		mode = domain.GenerationModeCollaborator
	}
	trace := domain.Trace{
		GenerationMode: mode,
		StartedAt:      startedAt.Format(time.RFC3339),
		Sections:       map[domain.SectionLabel]domain.SectionTrace{},
	}

	problemText, problemIDs, problemTrace, err := a.synth.BuildTextSection(
		ctx, domain.SectionProblem, sourceIDs, meta, used)
	if err != nil {
		return domain.CaseDocument{}, domain.Trace{}, err
	}
	trace.Sections[domain.SectionProblem] = problemTrace

	symptomsText, symptomIDs, symptomsTrace, err := a.synth.BuildTextSection(
		ctx, domain.SectionSymptoms, sourceIDs, meta, used)
	if err != nil {
		return domain.CaseDocument{}, domain.Trace{}, err
	}
	trace.Sections[domain.SectionSymptoms] = symptomsTrace

	rootCauseText, rootCauseIDs, rootCauseTrace, err := a.synth.BuildTextSection(
		ctx, domain.SectionRootCause, sourceIDs, meta, used)
	if err != nil {
		return domain.CaseDocument{}, domain.Trace{}, err
	}
	trace.Sections[domain.SectionRootCause] = rootCauseTrace

	resolutionSteps, _, resolutionTrace, err := a.synth.BuildResolutionSteps(ctx, sourceIDs, meta, used)
	if err != nil {
		return domain.CaseDocument{}, domain.Trace{}, err
	}
	trace.Sections[domain.SectionResolutionSteps] = resolutionTrace

	verificationSteps := FilterVerificationSteps(resolutionSteps)
	var verificationIDs []string
	for _, step := range verificationSteps {
		verificationIDs = append(verificationIDs, step.EvidenceUnitIDs...)
	}
	trace.Sections[domain.SectionVerificationSteps] = domain.SectionTrace{
		CandidateCount:          len(resolutionSteps),
		SelectedEvidenceUnitIDs: domain.DedupeIDs(verificationIDs),
	}

	placeholders, _, placeholderTrace, err := a.synth.BuildPlaceholdersNeeded(ctx, tctx, used)
	if err != nil {
		return domain.CaseDocument{}, domain.Trace{}, err
	}
	trace.Sections[domain.SectionPlaceholdersNeeded] = placeholderTrace

	var symptoms []string
	if symptomsText != "" {
		symptoms = []string{symptomsText}
	}
	var rootCause *string
	if rootCauseText != "" {
		rootCause = &rootCauseText
	}

	doc := domain.CaseDocument{
		TicketID:           tctx.Ticket.TicketNumber,
		Title:              orDefault(tctx.Ticket.Subject, "Untitled"),
		Product:            orDefault(tctx.Ticket.Product, "N/A"),
		Module:             orDefault(tctx.Ticket.Module, "N/A"),
		Category:           orDefault(tctx.Ticket.Category, "N/A"),
		Problem:            orDefault(problemText, "N/A"),
		Symptoms:           symptoms,
		RootCause:          rootCause,
		ResolutionSteps:    resolutionSteps,
		VerificationSteps:  verificationSteps,
		WhenToEscalate:     []string{},
		PlaceholdersNeeded: placeholders,
		GeneratedAt:        a.now().UTC().Format(time.RFC3339),
	}
	doc.EvidenceSources = buildEvidenceSources(problemIDs, symptomIDs, rootCauseIDs, doc)
	return doc, trace, nil
}

func buildEvidenceSources(problemIDs, symptomIDs, rootCauseIDs []string, doc domain.CaseDocument) []string {
	sources := []string{}
	add := func(section domain.SectionLabel, ids []string) {
		ids = domain.DedupeIDs(ids)
		if len(ids) > 0 {
			sources = append(sources, domain.FormatEvidenceSource(section, ids))
		}
	}

	add(domain.SectionProblem, problemIDs)
	add(domain.SectionSymptoms, symptomIDs)
	add(domain.SectionRootCause, rootCauseIDs)

	var resolutionIDs []string
	for _, step := range doc.ResolutionSteps {
		resolutionIDs = append(resolutionIDs, step.EvidenceUnitIDs...)
	}
	add(domain.SectionResolutionSteps, resolutionIDs)

	var verificationIDs []string
	for _, step := range doc.VerificationSteps {
		verificationIDs = append(verificationIDs, step.EvidenceUnitIDs...)
	}
	add(domain.SectionVerificationSteps, verificationIDs)

	var placeholderIDs []string
	for _, need := range doc.PlaceholdersNeeded {
		placeholderIDs = append(placeholderIDs, need.EvidenceUnitIDs...)
	}
	add(domain.SectionPlaceholdersNeeded, placeholderIDs)

	return sources
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
