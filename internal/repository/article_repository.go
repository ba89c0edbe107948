package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/kbtrust/internal/db"
	"github.com/rpattn/kbtrust/internal/domain"
)

type articleRepository struct {
	db db.DBTX
}

// NewArticleRepository wires the published article and version store.
func NewArticleRepository(q db.DBTX) ArticleRepository {
	return &articleRepository{db: q}
}

func (r *articleRepository) WithTx(tx pgx.Tx) ArticleRepository {
	return &articleRepository{db: tx}
}

const articleColumns = `kb_article_id, latest_draft_id, title, body_markdown, module,
	category, tags_json, source_type, source_ticket_id, current_version, created_at, updated_at`

func (r *articleRepository) Create(ctx context.Context, article domain.Article) error {
	tagsJSON, err := marshalTags(article.Tags)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO kb_articles (`+articleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		article.ArticleID,
		article.LatestDraftID,
		article.Title,
		article.BodyMarkdown,
		article.Module,
		article.Category,
		tagsJSON,
		article.SourceKind,
		article.SourceTicketID,
		article.CurrentVersion,
		article.CreatedAt,
		article.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create article: %w", err)
	}
	return nil
}

func (r *articleRepository) GetByID(ctx context.Context, articleID string) (domain.Article, error) {
	row := r.db.QueryRow(
		ctx,
		"SELECT "+articleColumns+" FROM kb_articles WHERE kb_article_id = $1",
		articleID,
	)
	article, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Article{}, domain.NewNotFound("article", articleID)
		}
		return domain.Article{}, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

func (r *articleRepository) Update(ctx context.Context, article domain.Article) error {
	tagsJSON, err := marshalTags(article.Tags)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE kb_articles SET
			latest_draft_id = $2, title = $3, body_markdown = $4, module = $5,
			category = $6, tags_json = $7, current_version = $8, updated_at = $9
		 WHERE kb_article_id = $1`,
		article.ArticleID,
		article.LatestDraftID,
		article.Title,
		article.BodyMarkdown,
		article.Module,
		article.Category,
		tagsJSON,
		article.CurrentVersion,
		article.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("article", article.ArticleID)
	}
	return nil
}

func (r *articleRepository) List(ctx context.Context) ([]domain.Article, error) {
	rows, err := r.db.Query(
		ctx,
		"SELECT "+articleColumns+" FROM kb_articles ORDER BY updated_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles := []domain.Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}
	return articles, nil
}

const versionColumns = `version_id, kb_article_id, version, source_draft_id,
	body_markdown, title, reviewer, change_note, is_rollback, created_at`

func (r *articleRepository) CreateVersion(ctx context.Context, version domain.ArticleVersion) error {
	_, err := r.db.Exec(
		ctx,
		`INSERT INTO kb_article_versions (`+versionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		version.VersionID,
		version.ArticleID,
		version.Version,
		version.SourceDraftID,
		version.BodyMarkdown,
		version.Title,
		version.Reviewer,
		version.ChangeNote,
		version.IsRollback,
		version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create article version: %w", err)
	}
	return nil
}

func (r *articleRepository) GetVersion(ctx context.Context, articleID string, versionNumber int) (domain.ArticleVersion, error) {
	row := r.db.QueryRow(
		ctx,
		"SELECT "+versionColumns+" FROM kb_article_versions WHERE kb_article_id = $1 AND version = $2",
		articleID,
		versionNumber,
	)
	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ArticleVersion{}, domain.NewNotFound(
				"article version", articleID+"@v"+strconv.Itoa(versionNumber))
		}
		return domain.ArticleVersion{}, fmt.Errorf("failed to get article version: %w", err)
	}
	return version, nil
}

func (r *articleRepository) ListVersions(ctx context.Context, articleID string) ([]domain.ArticleVersion, error) {
	rows, err := r.db.Query(
		ctx,
		"SELECT "+versionColumns+" FROM kb_article_versions WHERE kb_article_id = $1 ORDER BY version ASC",
		articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list article versions: %w", err)
	}
	defer rows.Close()

	versions := []domain.ArticleVersion{}
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate article versions: %w", err)
	}
	return versions, nil
}

func marshalTags(tags []string) (*string, error) {
	if tags == nil {
		return nil, nil
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	s := string(raw)
	return &s, nil
}

func scanArticle(row pgx.Row) (domain.Article, error) {
	var (
		article  domain.Article
		tagsJSON pgtype.Text
	)
	if err := row.Scan(
		&article.ArticleID,
		&article.LatestDraftID,
		&article.Title,
		&article.BodyMarkdown,
		&article.Module,
		&article.Category,
		&tagsJSON,
		&article.SourceKind,
		&article.SourceTicketID,
		&article.CurrentVersion,
		&article.CreatedAt,
		&article.UpdatedAt,
	); err != nil {
		return domain.Article{}, err
	}

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &article.Tags); err != nil {
			// Corrupt tags are tolerated; the article is still servable.
			article.Tags = nil
		}
	}
	return article, nil
}

func scanVersion(row pgx.Row) (domain.ArticleVersion, error) {
	var (
		version       domain.ArticleVersion
		sourceDraftID pgtype.Text
		reviewer      pgtype.Text
		changeNote    pgtype.Text
	)
	if err := row.Scan(
		&version.VersionID,
		&version.ArticleID,
		&version.Version,
		&sourceDraftID,
		&version.BodyMarkdown,
		&version.Title,
		&reviewer,
		&changeNote,
		&version.IsRollback,
		&version.CreatedAt,
	); err != nil {
		return domain.ArticleVersion{}, err
	}

	if sourceDraftID.Valid {
		version.SourceDraftID = &sourceDraftID.String
	}
	if reviewer.Valid {
		version.Reviewer = &reviewer.String
	}
	if changeNote.Valid {
		version.ChangeNote = &changeNote.String
	}
	return version, nil
}
