package lineage

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/kbtrust/internal/domain"
)

type Handler struct {
	deriver *Deriver
}

func NewHTTPHandler(deriver *Deriver) http.Handler {
	return &Handler{deriver: deriver}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	h.handleReport(w, r)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	draftID := strings.TrimSpace(r.URL.Query().Get("draft_id"))
	if draftID == "" {
		http.Error(w, "draft_id is required", http.StatusBadRequest)
		return
	}
	report, err := h.deriver.Report(r.Context(), draftID)
	if err != nil {
		if domain.IsNotFound(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("provenance report: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
