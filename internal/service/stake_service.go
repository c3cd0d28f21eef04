package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/degendice/backend/internal/domain"
)

// walletPattern matches base58 Solana addresses.
var walletPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// minTxRefLen is the shortest acceptable deposit transaction reference.
const minTxRefLen = 32

// StakeService validates and records stakes. The deposit transaction itself
// happens on the caller's side; this service only verifies the reference
// format and never inspects the chain.
type StakeService struct {
	store    domain.RoundStore
	minStake float64
	maxStake float64
	log      *slog.Logger

	now func() time.Time
}

// NewStakeService creates a StakeService with the given stake bounds.
func NewStakeService(store domain.RoundStore, minStake, maxStake float64, log *slog.Logger) *StakeService {
	return &StakeService{
		store:    store,
		minStake: minStake,
		maxStake: maxStake,
		log:      log,
		now:      time.Now,
	}
}

// SetClock overrides the service clock. Test hook.
func (s *StakeService) SetClock(now func() time.Time) {
	s.now = now
}

// PlaceStakeInput is a stake request as received from the API.
type PlaceStakeInput struct {
	Wallet  string
	Token   string
	Amount  float64
	TxRef   string
	RoundID string
}

// PlaceStakeResult reports the recorded stake and the round it landed on.
type PlaceStakeResult struct {
	Stake       *domain.Stake      `json:"stake"`
	RoundID     string             `json:"roundId"`
	RoundStatus domain.RoundStatus `json:"roundStatus"`
}

// Place validates the request against the target round and appends the
// stake. The target is the explicit round when given, otherwise the preview
// round if open, otherwise the live round.
func (s *StakeService) Place(ctx context.Context, in PlaceStakeInput) (*PlaceStakeResult, error) {
	if !walletPattern.MatchString(in.Wallet) {
		return nil, invalid("invalid wallet address")
	}

	target, err := s.resolveTarget(ctx, in.RoundID)
	if err != nil {
		return nil, err
	}
	if !domain.IsStakingOpen(target, s.now()) {
		return nil, invalid("staking is closed for this round")
	}
	if !target.HasToken(in.Token) {
		return nil, invalid("invalid token for this round")
	}
	if in.Amount < s.minStake || in.Amount > s.maxStake {
		return nil, invalid(fmt.Sprintf("stake amount must be between %g and %g SOL", s.minStake, s.maxStake))
	}
	if len(in.TxRef) < minTxRefLen {
		return nil, invalid("invalid transaction reference")
	}

	stake, err := s.store.AddStake(ctx, in.Wallet, in.Token, in.Amount, in.TxRef, target.ID)
	if err != nil {
		return nil, fmt.Errorf("service: place stake: %w", err)
	}
	if stake == nil {
		// The window closed between validation and the append.
		return nil, invalid("staking closed before the stake was recorded")
	}

	s.log.Info("stake placed",
		"round_id", stake.RoundID,
		"wallet", stake.Wallet,
		"token", stake.Token,
		"amount", stake.Amount,
	)

	return &PlaceStakeResult{
		Stake:       stake,
		RoundID:     target.ID,
		RoundStatus: target.Status,
	}, nil
}

func (s *StakeService) resolveTarget(ctx context.Context, roundID string) (*domain.Round, error) {
	if roundID != "" {
		r, err := s.store.GetRound(ctx, roundID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, invalid("round not found")
			}
			return nil, fmt.Errorf("service: resolve round %s: %w", roundID, err)
		}
		return r, nil
	}

	next, err := s.store.GetNextRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: get next round: %w", err)
	}
	if next != nil && domain.IsStakingOpen(next, s.now()) {
		return next, nil
	}

	live, err := s.store.GetLiveRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: get live round: %w", err)
	}
	if live != nil && domain.IsStakingOpen(live, s.now()) {
		return live, nil
	}
	return nil, invalid("no active round accepting stakes")
}
