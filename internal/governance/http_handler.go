package governance

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
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/approve"):
		h.handleApprove(w, r)
		return
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/reject"):
		h.handleReject(w, r)
		return
	case r.Method == http.MethodGet && strings.TrimSuffix(r.URL.Path, "/") == "/api/drafts":
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

type reviewPayload struct {
	Reviewer string  `json:"reviewer"`
	Notes    *string `json:"notes"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	draftID := pathSegmentBefore(r.URL.Path, "/approve")
	if draftID == "" {
		http.Error(w, "missing draft identifier", http.StatusBadRequest)
		return
	}
	var payload reviewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	reviewer := strings.TrimSpace(payload.Reviewer)
	if reviewer == "" {
		reviewer = "Reviewer"
	}
	draft, err := h.service.Approve(r.Context(), draftID, reviewer, payload.Notes)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	draftID := pathSegmentBefore(r.URL.Path, "/reject")
	if draftID == "" {
		http.Error(w, "missing draft identifier", http.StatusBadRequest)
		return
	}
	var payload reviewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	reviewer := strings.TrimSpace(payload.Reviewer)
	if reviewer == "" {
		reviewer = "Reviewer"
	}
	draft, err := h.service.Reject(r.Context(), draftID, reviewer, payload.Notes)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	status := domain.DraftStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	if status == "" {
		status = domain.DraftStatusDraft
	}
	drafts, err := h.service.ListByStatus(r.Context(), status)
	if err != nil {
		http.Error(w, fmt.Sprintf("list drafts: %v", err), http.StatusInternalServerError)
		return
	}
	if drafts == nil {
		drafts = []domain.Draft{}
	}
	writeJSON(w, http.StatusOK, drafts)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	draftID := pathSegmentBefore(r.URL.Path, "")
	if draftID == "" {
		http.Error(w, "missing draft identifier", http.StatusBadRequest)
		return
	}
	draft, err := h.service.GetDraft(r.Context(), draftID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// pathSegmentBefore extracts the identifier segment preceding the given
// action suffix, e.g. /api/drafts/{id}/approve -> {id}.
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
	case domain.IsInvalidTransition(err):
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
