package synthesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/kbtrust/internal/domain"
)

type Handler struct {
	assembler *Assembler
}

func NewHTTPHandler(assembler *Assembler) http.Handler {
	return &Handler{assembler: assembler}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	h.handleGenerate(w, r)
}

type generatePayload struct {
	TicketID string `json:"ticket_id"`
}

type generateResponse struct {
	DraftID string       `json:"draft_id"`
	Draft   domain.Draft `json:"draft"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload generatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	ticketID := strings.TrimSpace(payload.TicketID)
	if ticketID == "" {
		http.Error(w, "ticket_id is required", http.StatusBadRequest)
		return
	}

	draft, _, err := h.assembler.Generate(r.Context(), ticketID)
	if err != nil {
		var verr *domain.VerificationError
		switch {
		case domain.IsNotFound(err):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.As(err, &verr):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  verr.Error(),
				"report": verr.Report,
			})
		default:
			http.Error(w, fmt.Sprintf("generate draft: %v", err), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, generateResponse{DraftID: draft.DraftID, Draft: draft})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
