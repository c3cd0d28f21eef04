package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/degendice/backend/internal/domain"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// LeaderboardReader defines the method the leaderboard handler requires.
type LeaderboardReader interface {
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// LeaderboardHandler serves the all-time winners endpoint.
type LeaderboardHandler struct {
	board  LeaderboardReader
	logger *slog.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(board LeaderboardReader, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		board:  board,
		logger: logger,
	}
}

// GetLeaderboard returns the top wallets by lifetime winnings.
// GET /api/leaderboard?limit=10
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultLeaderboardLimit, maxLeaderboardLimit)

	entries, err := h.board.Leaderboard(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: leaderboard failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}
