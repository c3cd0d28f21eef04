package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/degendice/backend/internal/service"
)

// StakePlacer defines the write-side method the stake handler requires.
type StakePlacer interface {
	Place(ctx context.Context, in service.PlaceStakeInput) (*service.PlaceStakeResult, error)
}

// StakeHandler serves the stake placement endpoint.
type StakeHandler struct {
	stakes StakePlacer
	logger *slog.Logger
}

// NewStakeHandler creates a StakeHandler with the given service and logger.
func NewStakeHandler(stakes StakePlacer, logger *slog.Logger) *StakeHandler {
	return &StakeHandler{
		stakes: stakes,
		logger: logger,
	}
}

// placeStakeRequest is the POST /api/stake body.
type placeStakeRequest struct {
	Wallet  string  `json:"wallet"`
	Token   string  `json:"token"`
	Amount  float64 `json:"amount"`
	TxRef   string  `json:"txSignature"`
	RoundID string  `json:"roundId"`
}

// PlaceStake validates and records a stake.
// POST /api/stake
func (h *StakeHandler) PlaceStake(w http.ResponseWriter, r *http.Request) {
	var req placeStakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.stakes.Place(r.Context(), service.PlaceStakeInput{
		Wallet:  req.Wallet,
		Token:   req.Token,
		Amount:  req.Amount,
		TxRef:   req.TxRef,
		RoundID: req.RoundID,
	})
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: place stake failed",
			slog.String("wallet", req.Wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to place stake")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stake":   result.Stake,
		"roundId": result.RoundID,
	})
}
