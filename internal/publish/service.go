// Package publish promotes approved drafts into the append-only
// published article store and serves its version history.
package publish

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/kbtrust/internal/domain"
	"github.com/rpattn/kbtrust/internal/repository"
)

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// Service owns publication, rollback and the indexer export surface.
type Service struct {
	runner   TxRunner
	drafts   repository.DraftRepository
	articles repository.ArticleRepository
	events   repository.AuditEventRepository
	now      func() time.Time
}

// NewService creates a publication service.
func NewService(
	runner TxRunner,
	drafts repository.DraftRepository,
	articles repository.ArticleRepository,
	events repository.AuditEventRepository,
) *Service {
	return &Service{
		runner:   runner,
		drafts:   drafts,
		articles: articles,
		events:   events,
		now:      time.Now,
	}
}

// PublishRequest promotes one approved draft. A nil ArticleID creates a
// new article at version 1; otherwise the named article gets a version
// bump carrying the draft's content.
type PublishRequest struct {
	DraftID    string
	Reviewer   string
	ChangeNote *string
	ArticleID  *string
}

// RollbackRequest restores a prior version's content as a brand-new
// version. History is never rewritten.
type RollbackRequest struct {
	ArticleID     string
	TargetVersion int
	Reviewer      string
	Note          string
}

// Publish promotes an approved draft to a published article, appending
// exactly one version row and stamping the draft published, atomically.
func (s *Service) Publish(ctx context.Context, req PublishRequest) (domain.Article, error) {
	var published domain.Article
	err := s.runner.WithTx(ctx, func(tx pgx.Tx) error {
		drafts := s.drafts.WithTx(tx)
		articles := s.articles.WithTx(tx)
		events := s.events.WithTx(tx)

		draft, err := drafts.GetByID(ctx, req.DraftID)
		if err != nil {
			return err
		}
		if draft.Status == domain.DraftStatusPublished || draft.PublishedAt != nil {
			return &domain.AlreadyPublishedError{DraftID: draft.DraftID}
		}
		if !draft.Status.CanTransitionTo(domain.DraftStatusPublished) {
			return &domain.InvalidTransitionError{From: draft.Status, To: domain.DraftStatusPublished}
		}

		now := s.now().UTC()
		var article domain.Article
		if req.ArticleID == nil {
			article = domain.Article{
				ArticleID:      uuid.New().String(),
				LatestDraftID:  draft.DraftID,
				Title:          draft.Title,
				BodyMarkdown:   draft.BodyMarkdown,
				Module:         orDefault(draft.CaseDocument.Module, "N/A"),
				Category:       orDefault(draft.CaseDocument.Category, "N/A"),
				SourceKind:     "learned",
				SourceTicketID: draft.TicketID,
				CurrentVersion: 1,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := articles.Create(ctx, article); err != nil {
				return err
			}
		} else {
			article, err = articles.GetByID(ctx, *req.ArticleID)
			if err != nil {
				return err
			}
			article.LatestDraftID = draft.DraftID
			article.Title = draft.Title
			article.BodyMarkdown = draft.BodyMarkdown
			article.Module = orDefault(draft.CaseDocument.Module, "N/A")
			article.Category = orDefault(draft.CaseDocument.Category, "N/A")
			article.CurrentVersion++
			article.UpdatedAt = now
			if err := articles.Update(ctx, article); err != nil {
				return err
			}
		}

		if err := articles.CreateVersion(ctx, domain.ArticleVersion{
			VersionID:     uuid.New().String(),
			ArticleID:     article.ArticleID,
			Version:       article.CurrentVersion,
			SourceDraftID: &draft.DraftID,
			BodyMarkdown:  draft.BodyMarkdown,
			Title:         draft.Title,
			Reviewer:      &req.Reviewer,
			ChangeNote:    req.ChangeNote,
			IsRollback:    false,
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		draft.Status = domain.DraftStatusPublished
		draft.PublishedAt = &now
		if err := drafts.Update(ctx, draft); err != nil {
			return err
		}

		if err := events.Record(ctx, domain.AuditEvent{
			EventID:   uuid.New().String(),
			EventType: domain.EventPublished,
			DraftID:   &draft.DraftID,
			TicketID:  &draft.TicketID,
			Metadata: map[string]any{
				"reviewer":      req.Reviewer,
				"change_note":   req.ChangeNote,
				"kb_article_id": article.ArticleID,
				"version":       article.CurrentVersion,
			},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		published = article
		return nil
	})
	if err != nil {
		return domain.Article{}, err
	}

	log.Printf("[PUBLISH] published draft %s as article %s v%d",
		req.DraftID, published.ArticleID, published.CurrentVersion)
	return published, nil
}

// Rollback copies a prior version's title and body into a new version
// row flagged is_rollback and points the article's denormalized fields
// at it. The target version row is read, never modified.
func (s *Service) Rollback(ctx context.Context, req RollbackRequest) (domain.Article, error) {
	var restored domain.Article
	err := s.runner.WithTx(ctx, func(tx pgx.Tx) error {
		articles := s.articles.WithTx(tx)
		events := s.events.WithTx(tx)

		article, err := articles.GetByID(ctx, req.ArticleID)
		if err != nil {
			return err
		}
		target, err := articles.GetVersion(ctx, req.ArticleID, req.TargetVersion)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		newVersion := article.CurrentVersion + 1
		note := req.Note
		if err := articles.CreateVersion(ctx, domain.ArticleVersion{
			VersionID:    uuid.New().String(),
			ArticleID:    article.ArticleID,
			Version:      newVersion,
			BodyMarkdown: target.BodyMarkdown,
			Title:        target.Title,
			Reviewer:     &req.Reviewer,
			ChangeNote:   &note,
			IsRollback:   true,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		article.Title = target.Title
		article.BodyMarkdown = target.BodyMarkdown
		article.CurrentVersion = newVersion
		article.UpdatedAt = now
		if err := articles.Update(ctx, article); err != nil {
			return err
		}

		if err := events.Record(ctx, domain.AuditEvent{
			EventID:   uuid.New().String(),
			EventType: domain.EventRollback,
			TicketID:  &article.SourceTicketID,
			Metadata: map[string]any{
				"reviewer":       req.Reviewer,
				"note":           req.Note,
				"kb_article_id":  article.ArticleID,
				"target_version": req.TargetVersion,
				"new_version":    newVersion,
			},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		restored = article
		return nil
	})
	if err != nil {
		return domain.Article{}, err
	}

	log.Printf("[PUBLISH] rolled back article %s to v%d content as v%d",
		req.ArticleID, req.TargetVersion, restored.CurrentVersion)
	return restored, nil
}

// GetArticle loads one published article.
func (s *Service) GetArticle(ctx context.Context, articleID string) (domain.Article, error) {
	return s.articles.GetByID(ctx, articleID)
}

// ListArticles lists every published article, newest first.
func (s *Service) ListArticles(ctx context.Context) ([]domain.Article, error) {
	return s.articles.List(ctx)
}

// ListVersions returns the full version history for one article.
func (s *Service) ListVersions(ctx context.Context, articleID string) ([]domain.ArticleVersion, error) {
	return s.articles.ListVersions(ctx, articleID)
}

// ExportForIndexer produces the projection the external indexing
// subsystem consumes. Only the published store is visible here.
func (s *Service) ExportForIndexer(ctx context.Context, articleID string) (domain.ArticleExport, error) {
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return domain.ArticleExport{}, err
	}

	tags := article.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.ArticleExport{
		ArticleID:      article.ArticleID,
		Title:          article.Title,
		BodyMarkdown:   article.BodyMarkdown,
		Module:         article.Module,
		Category:       article.Category,
		Tags:           tags,
		SourceKind:     article.SourceKind,
		SourceTicketID: article.SourceTicketID,
		Version:        article.CurrentVersion,
		LineageDraftID: article.LatestDraftID,
	}, nil
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
