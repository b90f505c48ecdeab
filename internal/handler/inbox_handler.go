// internal/handler/inbox_handler.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/outreach-backend/internal/inbox"
	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
)

// InboxPoller is the poller surface exposed to operators.
type InboxPoller interface {
	Start(ctx context.Context) error
	ManualPoll(ctx context.Context) (inbox.CycleStats, error)
	Status() inbox.Status
}

// InboxHandler holds the dependencies for inbox admin endpoints
type InboxHandler struct {
	Poller InboxPoller
	// BaseCtx outlives requests; a restarted scheduler runs under it.
	BaseCtx context.Context
}

func NewInboxHandler(ctx context.Context, poller InboxPoller) *InboxHandler {
	return &InboxHandler{Poller: poller, BaseCtx: ctx}
}

func (h *InboxHandler) Register(r chi.Router) {
	r.Route("/inbox", func(r chi.Router) {
		r.Get("/status", h.StatusHandler)
		r.Post("/poll", h.PollHandler)
		r.Post("/start", h.StartHandler)
	})
}

// PollHandler runs one cycle now, resetting the consecutive error counter.
func (h *InboxHandler) PollHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Poller.ManualPoll(r.Context())
	if err != nil {
		logger.Warn("manual inbox poll failed", "error", err)
		respond(w, http.StatusBadGateway, map[string]any{
			"error":  err.Error(),
			"status": h.Poller.Status(),
		})
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"stats":  stats,
		"status": h.Poller.Status(),
	})
}

// StatusHandler reports scheduler and cycle state.
func (h *InboxHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, h.Poller.Status())
}

// StartHandler resumes scheduled polling, for example after the breaker tripped.
func (h *InboxHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	ctx := h.BaseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	err := h.Poller.Start(ctx)
	if errors.Is(err, inbox.ErrAlreadyStarted) {
		respond(w, http.StatusConflict, map[string]any{"error": err.Error(), "status": h.Poller.Status()})
		return
	}
	if err != nil {
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respond(w, http.StatusAccepted, h.Poller.Status())
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}
