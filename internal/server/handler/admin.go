package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/degendice/backend/internal/domain"
	"github.com/degendice/backend/internal/service"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// AdminService defines the operator actions the admin handler requires.
type AdminService interface {
	StartRound(ctx context.Context) (*domain.Round, error)
	SettleLiveRound(ctx context.Context) (*service.SettlementOutcome, error)
}

// HistoryReader provides the settlement history listing.
type HistoryReader interface {
	History(ctx context.Context, limit int) ([]domain.RoundHistoryEntry, error)
}

// AdminHandler serves the password-gated operator endpoints. Authentication
// happens in middleware; handlers here assume the caller is trusted.
type AdminHandler struct {
	admin    AdminService
	history  HistoryReader
	treasury domain.Treasury
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin AdminService, history HistoryReader, treasury domain.Treasury, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		history:  history,
		treasury: treasury,
		logger:   logger,
	}
}

// StartRound starts a fresh live round immediately.
// POST /api/admin/start-round
func (h *AdminHandler) StartRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.admin.StartRound(r.Context())
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: start round failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to start round")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"round":   round,
	})
}

// EndRound settles the live round immediately instead of waiting for expiry.
// POST /api/admin/end-round
func (h *AdminHandler) EndRound(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.admin.SettleLiveRound(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNoLiveRound) {
			writeError(w, http.StatusBadRequest, "no live round to end")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: end round failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to end round")
		return
	}
	if outcome == nil {
		// Raced a concurrent settlement; the round is already closed.
		writeError(w, http.StatusBadRequest, "no live round to end")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"settlement": outcome,
	})
}

// History returns recent settlement records, newest first.
// GET /api/admin/history?limit=20
func (h *AdminHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultHistoryLimit, maxHistoryLimit)

	entries, err := h.history.History(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// PayoutStatus reports whether automated payouts are configured and the
// current escrow balance.
// POST /api/admin/payout-status
func (h *AdminHandler) PayoutStatus(w http.ResponseWriter, r *http.Request) {
	configured := h.treasury.Configured()

	var balance float64
	if configured {
		var err error
		balance, err = h.treasury.Balance(r.Context())
		if err != nil {
			h.logger.ErrorContext(r.Context(), "handler: escrow balance failed",
				slog.String("error", err.Error()),
			)
			balance = 0
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payoutConfigured": configured,
		"escrowBalance":    balance,
	})
}
