package publish

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/kbtrust/internal/domain"
)

type Handler struct {
	service *Service
}

func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/publish"):
		h.handlePublish(w, r)
		return
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/rollback"):
		h.handleRollback(w, r)
		return
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/versions"):
		h.handleListVersions(w, r)
		return
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/export"):
		h.handleExport(w, r)
		return
	case r.Method == http.MethodGet && strings.TrimSuffix(r.URL.Path, "/") == "/api/articles":
		h.handleList(w, r)
		return
	case r.Method == http.MethodGet:
		h.handleGet(w, r)
		return
	default:
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
}

type publishPayload struct {
	Reviewer    string  `json:"reviewer"`
	Note        *string `json:"note"`
	KBArticleID *string `json:"kb_article_id"`
}

type rollbackPayload struct {
	TargetVersion int    `json:"target_version"`
	Reviewer      string `json:"reviewer"`
	Note          string `json:"note"`
}

type publishResponse struct {
	KBArticleID string `json:"kb_article_id"`
	Version     int    `json:"version"`
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	draftID := pathSegmentBefore(r.URL.Path, "/publish")
	if draftID == "" {
		http.Error(w, "missing draft identifier", http.StatusBadRequest)
		return
	}
	var payload publishPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	reviewer := strings.TrimSpace(payload.Reviewer)
	if reviewer == "" {
		reviewer = "Reviewer"
	}
	article, err := h.service.Publish(r.Context(), PublishRequest{
		DraftID:    draftID,
		Reviewer:   reviewer,
		ChangeNote: payload.Note,
		ArticleID:  payload.KBArticleID,
	})
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, publishResponse{KBArticleID: article.ArticleID, Version: article.CurrentVersion})
}

func (h *Handler) handleRollback(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	articleID := pathSegmentBefore(r.URL.Path, "/rollback")
	if articleID == "" {
		http.Error(w, "missing article identifier", http.StatusBadRequest)
		return
	}
	var payload rollbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if payload.TargetVersion <= 0 {
		http.Error(w, "target_version must be a positive integer", http.StatusBadRequest)
		return
	}
	reviewer := strings.TrimSpace(payload.Reviewer)
	if reviewer == "" {
		reviewer = "Reviewer"
	}
	article, err := h.service.Rollback(r.Context(), RollbackRequest{
		ArticleID:     articleID,
		TargetVersion: payload.TargetVersion,
		Reviewer:      reviewer,
		Note:          payload.Note,
	})
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, publishResponse{KBArticleID: article.ArticleID, Version: article.CurrentVersion})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	articles, err := h.service.ListArticles(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("list articles: %v", err), http.StatusInternalServerError)
		return
	}
	if articles == nil {
		articles = []domain.Article{}
	}
	writeJSON(w, http.StatusOK, articles)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	articleID := pathSegmentBefore(r.URL.Path, "")
	if articleID == "" {
		http.Error(w, "missing article identifier", http.StatusBadRequest)
		return
	}
	article, err := h.service.GetArticle(r.Context(), articleID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (h *Handler) handleListVersions(w http.ResponseWriter, r *http.Request) {
	articleID := pathSegmentBefore(r.URL.Path, "/versions")
	if articleID == "" {
		http.Error(w, "missing article identifier", http.StatusBadRequest)
		return
	}
	versions, err := h.service.ListVersions(r.Context(), articleID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if versions == nil {
		versions = []domain.ArticleVersion{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	articleID := pathSegmentBefore(r.URL.Path, "/export")
	if articleID == "" {
		http.Error(w, "missing article identifier", http.StatusBadRequest)
		return
	}
	export, err := h.service.ExportForIndexer(r.Context(), articleID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, export)
}

// pathSegmentBefore extracts the identifier segment preceding the given
// action suffix, e.g. /api/articles/{id}/rollback -> {id}.
func pathSegmentBefore(path, action string) string {
	path = strings.TrimSuffix(strings.TrimSuffix(path, "/"), action)
	idx := strings.LastIndex(path, "/")
	if idx == -1 || idx == len(path)-1 {
		return ""
	}
	return path[idx+1:]
}

func statusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsInvalidTransition(err), domain.IsAlreadyPublished(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
