package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aurum-protocol/relayer/pkg/store"
)

type statusChangeResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *Handlers) transition(w http.ResponseWriter, r *http.Request, to store.Status) {
	id := chi.URLParam(r, "id")
	if err := validateSubscriptionIDFormat(id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.subs.SetStatus(r.Context(), id, to); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, statusChangeResponse{ID: id, Status: string(to)})
}

// HandlePauseSubscription handles POST /subscription/{id}/pause.
func (h *Handlers) HandlePauseSubscription(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, store.StatusPaused)
}

// HandleResumeSubscription handles POST /subscription/{id}/resume.
func (h *Handlers) HandleResumeSubscription(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, store.StatusActive)
}

// HandleCancelSubscription handles POST /subscription/{id}/cancel.
func (h *Handlers) HandleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, store.StatusCancelled)
}
