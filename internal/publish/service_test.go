package publish

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/kbtrust/internal/domain"
	"github.com/rpattn/kbtrust/internal/repository"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(pgx.Tx) error) error {
	return fn(nil)
}

type stubDraftRepo struct {
	drafts map[string]domain.Draft
}

func (s *stubDraftRepo) WithTx(pgx.Tx) repository.DraftRepository { return s }

func (s *stubDraftRepo) Create(_ context.Context, draft domain.Draft) error {
	s.drafts[draft.DraftID] = draft
	return nil
}

func (s *stubDraftRepo) GetByID(_ context.Context, draftID string) (domain.Draft, error) {
	draft, ok := s.drafts[draftID]
	if !ok {
		return domain.Draft{}, domain.NewNotFound("draft", draftID)
	}
	return draft, nil
}

func (s *stubDraftRepo) Update(_ context.Context, draft domain.Draft) error {
	if _, ok := s.drafts[draft.DraftID]; !ok {
		return domain.NewNotFound("draft", draft.DraftID)
	}
	s.drafts[draft.DraftID] = draft
	return nil
}

func (s *stubDraftRepo) ListByStatus(_ context.Context, status domain.DraftStatus) ([]domain.Draft, error) {
	var drafts []domain.Draft
	for _, draft := range s.drafts {
		if draft.Status == status {
			drafts = append(drafts, draft)
		}
	}
	return drafts, nil
}

func (s *stubDraftRepo) ListOthersByTicket(_ context.Context, ticketID, keepDraftID string, statuses []domain.DraftStatus) ([]domain.Draft, error) {
	var drafts []domain.Draft
	for _, draft := range s.drafts {
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

type stubArticleRepo struct {
	articles map[string]domain.Article
	versions []domain.ArticleVersion
}

func newStubArticleRepo() *stubArticleRepo {
	return &stubArticleRepo{articles: map[string]domain.Article{}}
}

func (s *stubArticleRepo) WithTx(pgx.Tx) repository.ArticleRepository { return s }

func (s *stubArticleRepo) Create(_ context.Context, article domain.Article) error {
	s.articles[article.ArticleID] = article
	return nil
}

func (s *stubArticleRepo) GetByID(_ context.Context, articleID string) (domain.Article, error) {
	article, ok := s.articles[articleID]
	if !ok {
		return domain.Article{}, domain.NewNotFound("article", articleID)
	}
	return article, nil
}

func (s *stubArticleRepo) Update(_ context.Context, article domain.Article) error {
	if _, ok := s.articles[article.ArticleID]; !ok {
		return domain.NewNotFound("article", article.ArticleID)
	}
	s.articles[article.ArticleID] = article
	return nil
}

func (s *stubArticleRepo) List(_ context.Context) ([]domain.Article, error) {
	var articles []domain.Article
	for _, article := range s.articles {
		articles = append(articles, article)
	}
	return articles, nil
}

func (s *stubArticleRepo) CreateVersion(_ context.Context, version domain.ArticleVersion) error {
	s.versions = append(s.versions, version)
	return nil
}

func (s *stubArticleRepo) GetVersion(_ context.Context, articleID string, version int) (domain.ArticleVersion, error) {
	for _, v := range s.versions {
		if v.ArticleID == articleID && v.Version == version {
			return v, nil
		}
	}
	return domain.ArticleVersion{}, domain.NewNotFound("article version", articleID)
}

func (s *stubArticleRepo) ListVersions(_ context.Context, articleID string) ([]domain.ArticleVersion, error) {
	var versions []domain.ArticleVersion
	for _, v := range s.versions {
		if v.ArticleID == articleID {
			versions = append(versions, v)
		}
	}
	return versions, nil
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

func (s *stubEventRepo) lastType() string {
	if len(s.events) == 0 {
		return ""
	}
	return s.events[len(s.events)-1].EventType
}

type publishFixture struct {
	service  *Service
	drafts   *stubDraftRepo
	articles *stubArticleRepo
	events   *stubEventRepo
}

func newPublishFixture() *publishFixture {
	drafts := &stubDraftRepo{drafts: map[string]domain.Draft{}}
	articles := newStubArticleRepo()
	events := &stubEventRepo{}
	return &publishFixture{
		service:  NewService(stubTxRunner{}, drafts, articles, events),
		drafts:   drafts,
		articles: articles,
		events:   events,
	}
}

func approvedDraft(id, body string) domain.Draft {
	reviewer := "alice"
	reviewedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return domain.Draft{
		DraftID:      id,
		TicketID:     "CS-1",
		Title:        "Login failure",
		BodyMarkdown: body,
		CaseDocument: domain.CaseDocument{
			TicketID: "CS-1",
			Title:    "Login failure",
			Module:   "Auth",
			Category: "Access",
		},
		Status:     domain.DraftStatusApproved,
		Reviewer:   &reviewer,
		ReviewedAt: &reviewedAt,
	}
}

func TestPublishCreatesArticleAtVersionOne(t *testing.T) {
	fixture := newPublishFixture()
	fixture.drafts.drafts["d-1"] = approvedDraft("d-1", "Body A")

	article, err := fixture.service.Publish(context.Background(), PublishRequest{
		DraftID:  "d-1",
		Reviewer: "alice",
	})
	if err != nil {
		t.Fatalf("publish returned error: %v", err)
	}
	if article.CurrentVersion != 1 {
		t.Fatalf("expected version 1, got %d", article.CurrentVersion)
	}
	if article.BodyMarkdown != "Body A" || article.Module != "Auth" || article.SourceKind != "learned" {
		t.Fatalf("unexpected article: %+v", article)
	}
	if len(fixture.articles.versions) != 1 {
		t.Fatalf("expected exactly one version row, got %d", len(fixture.articles.versions))
	}
	version := fixture.articles.versions[0]
	if version.Version != 1 || version.IsRollback || version.SourceDraftID == nil || *version.SourceDraftID != "d-1" {
		t.Fatalf("unexpected version row: %+v", version)
	}

	draft := fixture.drafts.drafts["d-1"]
	if draft.Status != domain.DraftStatusPublished || draft.PublishedAt == nil {
		t.Fatalf("expected draft stamped published, got %+v", draft)
	}
	if fixture.events.lastType() != domain.EventPublished {
		t.Fatalf("expected published event, got %q", fixture.events.lastType())
	}
}

func TestPublishRequiresApprovedDraft(t *testing.T) {
	fixture := newPublishFixture()
	draft := approvedDraft("d-1", "Body A")
	draft.Status = domain.DraftStatusDraft
	fixture.drafts.drafts["d-1"] = draft

	_, err := fixture.service.Publish(context.Background(), PublishRequest{DraftID: "d-1", Reviewer: "alice"})
	if !domain.IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if len(fixture.articles.articles) != 0 || len(fixture.articles.versions) != 0 {
		t.Fatalf("expected nothing persisted")
	}
}

func TestPublishRejectsSecondPublish(t *testing.T) {
	fixture := newPublishFixture()
	fixture.drafts.drafts["d-1"] = approvedDraft("d-1", "Body A")

	if _, err := fixture.service.Publish(context.Background(), PublishRequest{DraftID: "d-1", Reviewer: "alice"}); err != nil {
		t.Fatalf("first publish returned error: %v", err)
	}
	_, err := fixture.service.Publish(context.Background(), PublishRequest{DraftID: "d-1", Reviewer: "alice"})
	if !domain.IsAlreadyPublished(err) {
		t.Fatalf("expected already published, got %v", err)
	}
	if len(fixture.articles.versions) != 1 {
		t.Fatalf("expected single version row, got %d", len(fixture.articles.versions))
	}
}

func TestPublishBumpsExistingArticle(t *testing.T) {
	fixture := newPublishFixture()
	fixture.drafts.drafts["d-1"] = approvedDraft("d-1", "Body A")
	fixture.drafts.drafts["d-2"] = approvedDraft("d-2", "Body B")

	first, err := fixture.service.Publish(context.Background(), PublishRequest{DraftID: "d-1", Reviewer: "alice"})
	if err != nil {
		t.Fatalf("first publish returned error: %v", err)
	}
	second, err := fixture.service.Publish(context.Background(), PublishRequest{
		DraftID:   "d-2",
		Reviewer:  "alice",
		ArticleID: &first.ArticleID,
	})
	if err != nil {
		t.Fatalf("second publish returned error: %v", err)
	}
	if second.ArticleID != first.ArticleID {
		t.Fatalf("expected same article, got %s and %s", first.ArticleID, second.ArticleID)
	}
	if second.CurrentVersion != 2 || second.BodyMarkdown != "Body B" || second.LatestDraftID != "d-2" {
		t.Fatalf("unexpected bumped article: %+v", second)
	}
	if len(fixture.articles.versions) != 2 {
		t.Fatalf("expected two version rows, got %d", len(fixture.articles.versions))
	}
}

func TestRollbackRestoresPriorVersion(t *testing.T) {
	fixture := newPublishFixture()
	fixture.drafts.drafts["d-1"] = approvedDraft("d-1", "Body A")
	fixture.drafts.drafts["d-2"] = approvedDraft("d-2", "Body B")

	first, err := fixture.service.Publish(context.Background(), PublishRequest{DraftID: "d-1", Reviewer: "alice"})
	if err != nil {
		t.Fatalf("first publish returned error: %v", err)
	}
	if _, err := fixture.service.Publish(context.Background(), PublishRequest{
		DraftID:   "d-2",
		Reviewer:  "alice",
		ArticleID: &first.ArticleID,
	}); err != nil {
		t.Fatalf("second publish returned error: %v", err)
	}

	restored, err := fixture.service.Rollback(context.Background(), RollbackRequest{
		ArticleID:     first.ArticleID,
		TargetVersion: 1,
		Reviewer:      "bob",
		Note:          "Body B was wrong.",
	})
	if err != nil {
		t.Fatalf("rollback returned error: %v", err)
	}
	if restored.CurrentVersion != 3 || restored.BodyMarkdown != "Body A" {
		t.Fatalf("expected v3 with restored body, got %+v", restored)
	}

	versions, _ := fixture.articles.ListVersions(context.Background(), first.ArticleID)
	if len(versions) != 3 {
		t.Fatalf("expected 3 version rows, got %d", len(versions))
	}
	v1, _ := fixture.articles.GetVersion(context.Background(), first.ArticleID, 1)
	if v1.BodyMarkdown != "Body A" || v1.IsRollback {
		t.Fatalf("expected v1 untouched, got %+v", v1)
	}
	v3, _ := fixture.articles.GetVersion(context.Background(), first.ArticleID, 3)
	if !v3.IsRollback || v3.SourceDraftID != nil || v3.BodyMarkdown != "Body A" {
		t.Fatalf("unexpected rollback row: %+v", v3)
	}
	if fixture.events.lastType() != domain.EventRollback {
		t.Fatalf("expected rollback event, got %q", fixture.events.lastType())
	}
}

func TestRollbackUnknownVersion(t *testing.T) {
	fixture := newPublishFixture()
	fixture.drafts.drafts["d-1"] = approvedDraft("d-1", "Body A")

	first, err := fixture.service.Publish(context.Background(), PublishRequest{DraftID: "d-1", Reviewer: "alice"})
	if err != nil {
		t.Fatalf("publish returned error: %v", err)
	}
	_, err = fixture.service.Rollback(context.Background(), RollbackRequest{
		ArticleID:     first.ArticleID,
		TargetVersion: 9,
		Reviewer:      "bob",
		Note:          "no such version",
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExportForIndexer(t *testing.T) {
	fixture := newPublishFixture()
	fixture.drafts.drafts["d-1"] = approvedDraft("d-1", "Body A")

	article, err := fixture.service.Publish(context.Background(), PublishRequest{DraftID: "d-1", Reviewer: "alice"})
	if err != nil {
		t.Fatalf("publish returned error: %v", err)
	}
	export, err := fixture.service.ExportForIndexer(context.Background(), article.ArticleID)
	if err != nil {
		t.Fatalf("export returned error: %v", err)
	}
	if export.ArticleID != article.ArticleID || export.Version != 1 || export.LineageDraftID != "d-1" {
		t.Fatalf("unexpected export: %+v", export)
	}
	if export.Tags == nil {
		t.Fatalf("expected empty tags slice, got nil")
	}
	if export.SourceKind != "learned" || export.SourceTicketID != "CS-1" {
		t.Fatalf("unexpected export source: %+v", export)
	}
}
