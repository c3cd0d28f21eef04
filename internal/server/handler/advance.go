package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// RoundAdvancer defines the lifecycle trigger the cron handler requires.
type RoundAdvancer interface {
	Advance(ctx context.Context) ([]string, error)
}

// AdvanceHandler serves the periodic lifecycle trigger hit by external cron.
type AdvanceHandler struct {
	advancer RoundAdvancer
	logger   *slog.Logger
}

// NewAdvanceHandler creates an AdvanceHandler.
func NewAdvanceHandler(advancer RoundAdvancer, logger *slog.Logger) *AdvanceHandler {
	return &AdvanceHandler{
		advancer: advancer,
		logger:   logger,
	}
}

// AdvanceRound runs one advancement pass and reports the actions taken.
// GET /api/cron/advance
func (h *AdvanceHandler) AdvanceRound(w http.ResponseWriter, r *http.Request) {
	actions, err := h.advancer.Advance(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: advance failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to advance round")
		return
	}
	if actions == nil {
		actions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"actions":   actions,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
