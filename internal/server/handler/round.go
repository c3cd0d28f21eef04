package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/degendice/backend/internal/domain"
	"github.com/degendice/backend/internal/service"
)

// RoundReader defines the read-side methods the round handler requires from
// the service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type RoundReader interface {
	View(ctx context.Context) (*service.RoundView, error)
	Prices(ctx context.Context) ([]domain.TokenPrice, error)
}

// RoundHandler serves the game-state read endpoints.
type RoundHandler struct {
	rounds RoundReader
	logger *slog.Logger
}

// NewRoundHandler creates a RoundHandler with the given service and logger.
func NewRoundHandler(rounds RoundReader, logger *slog.Logger) *RoundHandler {
	return &RoundHandler{
		rounds: rounds,
		logger: logger,
	}
}

// GetRound returns the combined live/next round projection.
// GET /api/round
func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	view, err := h.rounds.View(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: round view failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load round state")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetPrices returns live quotes for the current round's tokens.
// GET /api/prices
func (h *RoundHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.rounds.Prices(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: prices failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to fetch prices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": quotes})
}
