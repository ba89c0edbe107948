package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rpattn/kbtrust/internal/domain"
	"github.com/rpattn/kbtrust/internal/lineage"
	"github.com/rpattn/kbtrust/internal/repository"
)

type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(pgx.Tx) error) error {
	return fn(fakeTx{})
}

type stubTicketRepo struct {
	tctx domain.TicketContext
	err  error
}

func (s *stubTicketRepo) Load(context.Context, string) (domain.TicketContext, error) {
	return s.tctx, s.err
}

type stubDraftRepo struct {
	existing []domain.Draft
	created  []domain.Draft
	updated  []domain.Draft
}

func (s *stubDraftRepo) WithTx(pgx.Tx) repository.DraftRepository { return s }

func (s *stubDraftRepo) Create(_ context.Context, draft domain.Draft) error {
	s.created = append(s.created, draft)
	return nil
}

func (s *stubDraftRepo) GetByID(_ context.Context, draftID string) (domain.Draft, error) {
	for _, draft := range append(s.existing, s.created...) {
		if draft.DraftID == draftID {
			return draft, nil
		}
	}
	return domain.Draft{}, domain.NewNotFound("draft", draftID)
}

func (s *stubDraftRepo) Update(_ context.Context, draft domain.Draft) error {
	s.updated = append(s.updated, draft)
	return nil
}

func (s *stubDraftRepo) ListByStatus(_ context.Context, status domain.DraftStatus) ([]domain.Draft, error) {
	var drafts []domain.Draft
	for _, draft := range s.existing {
		if draft.Status == status {
			drafts = append(drafts, draft)
		}
	}
	return drafts, nil
}

func (s *stubDraftRepo) ListOthersByTicket(_ context.Context, ticketID, keepDraftID string, statuses []domain.DraftStatus) ([]domain.Draft, error) {
	var drafts []domain.Draft
	for _, draft := range s.existing {
		if draft.TicketID != ticketID || draft.DraftID == keepDraftID {
			continue
		}
		for _, status := range statuses {
			if draft.Status == status {
				drafts = append(drafts, draft)
				break
			}
		}
	}
	return drafts, nil
}

type stubEventRepo struct {
	events []domain.AuditEvent
}

func (s *stubEventRepo) WithTx(pgx.Tx) repository.AuditEventRepository { return s }

func (s *stubEventRepo) Record(_ context.Context, event domain.AuditEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubEventRepo) ListByDraft(_ context.Context, draftID string) ([]domain.AuditEvent, error) {
	var events []domain.AuditEvent
	for _, event := range s.events {
		if event.DraftID != nil && *event.DraftID == draftID {
			events = append(events, event)
		}
	}
	return events, nil
}

func (s *stubEventRepo) typesFor(draftID string) []string {
	var types []string
	for _, event := range s.events {
		if event.DraftID != nil && *event.DraftID == draftID {
			types = append(types, event.EventType)
		}
	}
	return types
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

func (s *stubLineageRepo) CountByDraft(_ context.Context, draftID string) (int64, error) {
	edges, _ := s.ListByDraft(context.Background(), draftID)
	return int64(len(edges)), nil
}

type assemblerFixture struct {
	assembler *Assembler
	drafts    *stubDraftRepo
	events    *stubEventRepo
	edges     *stubLineageRepo
}

func newAssemblerFixture(evidence *stubEvidenceRepo, collab Collaborator, blocking bool) *assemblerFixture {
	tickets := &stubTicketRepo{tctx: domain.TicketContext{
		Ticket: domain.Ticket{
			TicketNumber: "CS-1",
			Subject:      "Login failure",
			Product:      "Portal",
			Module:       "Auth",
			Category:     "Access",
		},
		Conversations: []domain.Conversation{
			{ConversationID: "CONV-1", TicketNumber: "CS-1", IssueSummary: "Customer reports 401 errors."},
		},
	}}
	drafts := &stubDraftRepo{}
	events := &stubEventRepo{}
	edges := &stubLineageRepo{}
	deriver := lineage.NewDeriver(evidence, edges)
	synth := NewSynthesizer(evidence, collab)

	return &assemblerFixture{
		assembler: NewAssembler(stubTxRunner{}, tickets, evidence, drafts, events, deriver, synth, blocking),
		drafts:    drafts,
		events:    events,
		edges:     edges,
	}
}

func fullEvidenceRepo() *stubEvidenceRepo {
	return &stubEvidenceRepo{units: []domain.EvidenceUnit{
		ticketUnit("EU-1", "Description", "Users cannot sign in.", 0),
		ticketUnit("EU-2", "Root_Cause", "Expired signing certificate.", 40),
		ticketUnit("EU-3", "Resolution", "Rotate the signing certificate.", 80),
		ticketUnit("EU-4", "Resolution", "Verify users can sign in.", 120),
		{
			EvidenceUnitID:  "EU-5",
			SourceKind:      domain.SourceKindConversation,
			SourceID:        "CONV-1",
			FieldName:       "Issue_Summary",
			CharOffsetStart: 0,
			SnippetText:     "Customer reports 401 errors.",
		},
	}}
}

func TestGeneratePersistsDraft(t *testing.T) {
	fixture := newAssemblerFixture(fullEvidenceRepo(), nil, false)

	draft, doc, err := fixture.assembler.Generate(context.Background(), "CS-1")
	if err != nil {
		t.Fatalf("generate returned error: %v", err)
	}
	if draft.Status != domain.DraftStatusDraft {
		t.Fatalf("expected draft status, got %s", draft.Status)
	}
	if draft.GenerationMode != domain.GenerationModeGrounded {
		t.Fatalf("expected grounded mode, got %s", draft.GenerationMode)
	}
	if len(fixture.drafts.created) != 1 {
		t.Fatalf("expected 1 created draft, got %d", len(fixture.drafts.created))
	}
	if doc.Problem != "Users cannot sign in." {
		t.Fatalf("unexpected problem text: %q", doc.Problem)
	}
	if doc.RootCause == nil || *doc.RootCause != "Expired signing certificate." {
		t.Fatalf("unexpected root cause: %v", doc.RootCause)
	}
	if len(doc.ResolutionSteps) != 2 || len(doc.VerificationSteps) != 1 {
		t.Fatalf("unexpected steps: %d resolution, %d verification",
			len(doc.ResolutionSteps), len(doc.VerificationSteps))
	}
	if !strings.Contains(draft.BodyMarkdown, "## Resolution Steps") {
		t.Fatalf("expected rendered body, got %q", draft.BodyMarkdown)
	}
	if draft.Trace.Verifier == nil || !draft.Trace.Verifier.OK {
		t.Fatalf("expected passing verifier report, got %+v", draft.Trace.Verifier)
	}
	if types := fixture.events.typesFor(draft.DraftID); len(types) != 1 || types[0] != domain.EventDraftGenerated {
		t.Fatalf("expected one draft_generated event, got %v", types)
	}
	if len(fixture.edges.edges) == 0 {
		t.Fatalf("expected lineage edges derived")
	}
}

func TestGenerateSupersedesPriorDrafts(t *testing.T) {
	fixture := newAssemblerFixture(fullEvidenceRepo(), nil, false)
	fixture.drafts.existing = []domain.Draft{
		{DraftID: "old-1", TicketID: "CS-1", Status: domain.DraftStatusDraft},
		{DraftID: "old-2", TicketID: "CS-1", Status: domain.DraftStatusRejected},
		{DraftID: "other", TicketID: "CS-2", Status: domain.DraftStatusDraft},
	}

	draft, _, err := fixture.assembler.Generate(context.Background(), "CS-1")
	if err != nil {
		t.Fatalf("generate returned error: %v", err)
	}
	if len(fixture.drafts.updated) != 1 {
		t.Fatalf("expected 1 superseded draft, got %d", len(fixture.drafts.updated))
	}
	superseded := fixture.drafts.updated[0]
	if superseded.DraftID != "old-1" || superseded.Status != domain.DraftStatusSuperseded {
		t.Fatalf("unexpected supersession target: %+v", superseded)
	}
	if superseded.ReviewNotes == nil || *superseded.ReviewNotes != "Superseded by newer draft generation." {
		t.Fatalf("unexpected supersession reason: %v", superseded.ReviewNotes)
	}
	if types := fixture.events.typesFor("old-1"); len(types) != 1 || types[0] != domain.EventSuperseded {
		t.Fatalf("expected superseded event for old-1, got %v", types)
	}
	if types := fixture.events.typesFor(draft.DraftID); len(types) != 1 || types[0] != domain.EventDraftGenerated {
		t.Fatalf("expected draft_generated event, got %v", types)
	}
}

func TestGenerateCollaboratorMode(t *testing.T) {
	collab := &stubCollaborator{result: CompletionResult{
		Text:            "Users are unable to sign in.",
		EvidenceUnitIDs: []string{"EU-1"},
		Model:           "test-model",
	}}
	fixture := newAssemblerFixture(fullEvidenceRepo(), collab, false)

	draft, _, err := fixture.assembler.Generate(context.Background(), "CS-1")
	if err != nil {
		t.Fatalf("generate returned error: %v", err)
	}
	if draft.GenerationMode != domain.GenerationModeCollaborator {
		t.Fatalf("expected collaborator mode, got %s", draft.GenerationMode)
	}
	if draft.Trace.GenerationMode != domain.GenerationModeCollaborator {
		t.Fatalf("expected collaborator mode in trace, got %s", draft.Trace.GenerationMode)
	}
}

func TestGenerateBlocksOnVerifierFailure(t *testing.T) {
	// No evidence at all: the document anchors checks fail.
	fixture := newAssemblerFixture(&stubEvidenceRepo{}, nil, true)

	_, _, err := fixture.assembler.Generate(context.Background(), "CS-1")
	var verr *domain.VerificationError
	if err == nil || !errors.As(err, &verr) {
		t.Fatalf("expected verification error, got %v", err)
	}
	if len(fixture.drafts.created) != 0 {
		t.Fatalf("expected no draft persisted, got %d", len(fixture.drafts.created))
	}
	if len(fixture.events.events) != 0 {
		t.Fatalf("expected no audit events, got %d", len(fixture.events.events))
	}
}

func TestGenerateAdvisoryPersistsFailingDraft(t *testing.T) {
	fixture := newAssemblerFixture(&stubEvidenceRepo{}, nil, false)

	draft, _, err := fixture.assembler.Generate(context.Background(), "CS-1")
	if err != nil {
		t.Fatalf("generate returned error: %v", err)
	}
	if draft.Trace.Verifier == nil || draft.Trace.Verifier.OK {
		t.Fatalf("expected failing verifier report, got %+v", draft.Trace.Verifier)
	}
	if len(fixture.drafts.created) != 1 {
		t.Fatalf("expected draft persisted despite advisory failure")
	}
}

func TestGenerateTicketNotFound(t *testing.T) {
	fixture := newAssemblerFixture(fullEvidenceRepo(), nil, false)
	fixture.assembler.tickets = &stubTicketRepo{err: domain.NewNotFound("ticket", "CS-404")}

	_, _, err := fixture.assembler.Generate(context.Background(), "CS-404")
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
