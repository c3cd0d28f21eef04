package service

import (
	"context"
	"fmt"
	"time"

	"github.com/degendice/backend/internal/domain"
)

// activityPreview is how many recent stakes ride along with the round view.
const activityPreview = 10

// RoundService assembles the read-side projections served to players.
type RoundService struct {
	store  domain.RoundStore
	feed   domain.PriceFeed
	policy domain.WindowPolicy

	now func() time.Time
}

// NewRoundService creates a RoundService.
func NewRoundService(store domain.RoundStore, feed domain.PriceFeed, policy domain.WindowPolicy) *RoundService {
	return &RoundService{
		store:  store,
		feed:   feed,
		policy: policy,
		now:    time.Now,
	}
}

// SetClock overrides the service clock. Test hook.
func (s *RoundService) SetClock(now func() time.Time) {
	s.now = now
}

// StakingStatus describes whether and where stakes are currently accepted.
// EndsIn is milliseconds until the open window closes; zero when nothing is
// open.
type StakingStatus struct {
	Status   string `json:"status"` // "open", "locked", "none"
	Target   string `json:"target,omitempty"`
	EndsIn   int64  `json:"endsIn,omitempty"`
	LiveOpen bool   `json:"isLiveRoundStakingOpen"`
	NextOpen bool   `json:"isNextRoundStakingOpen"`
}

// WindowConfig exposes the lifecycle windows in milliseconds so clients can
// render countdowns without hardcoding them.
type WindowConfig struct {
	RoundDuration int64 `json:"roundDuration"`
	StakingWindow int64 `json:"stakingWindow"`
	PreviewWindow int64 `json:"previewWindow"`
}

// RoundView is the combined state of the game as shown to players.
type RoundView struct {
	LiveRound       *domain.Round  `json:"liveRound"`
	NextRound       *domain.Round  `json:"nextRound"`
	LiveStakeCounts map[string]int `json:"liveStakeCounts"`
	NextStakeCounts map[string]int `json:"nextStakeCounts"`
	Activity        []domain.Stake `json:"activity"`
	Staking         StakingStatus  `json:"staking"`
	Config          WindowConfig   `json:"config"`
}

// View returns the current round projection.
func (s *RoundService) View(ctx context.Context) (*RoundView, error) {
	live, err := s.store.GetLiveRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: round view: %w", err)
	}
	next, err := s.store.GetNextRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: round view: %w", err)
	}
	activity, err := s.store.GetActivityFeed(ctx, activityPreview)
	if err != nil {
		return nil, fmt.Errorf("service: round view: %w", err)
	}

	view := &RoundView{
		LiveRound:       live,
		NextRound:       next,
		LiveStakeCounts: map[string]int{},
		NextStakeCounts: map[string]int{},
		Activity:        activity,
		Staking:         s.stakingStatus(live, next),
		Config: WindowConfig{
			RoundDuration: s.policy.RoundDuration.Milliseconds(),
			StakingWindow: s.policy.StakingWindow.Milliseconds(),
			PreviewWindow: s.policy.PreviewWindow.Milliseconds(),
		},
	}

	if live != nil {
		view.LiveStakeCounts, err = s.store.GetStakeCountsByToken(ctx, live.ID)
		if err != nil {
			return nil, fmt.Errorf("service: round view: %w", err)
		}
	}
	if next != nil {
		view.NextStakeCounts, err = s.store.GetStakeCountsByToken(ctx, next.ID)
		if err != nil {
			return nil, fmt.Errorf("service: round view: %w", err)
		}
	}
	return view, nil
}

// stakingStatus mirrors how the window is presented to players: a preview
// round takes precedence as the staking target, then the live round while
// its window is open, then "locked" until settlement.
func (s *RoundService) stakingStatus(live, next *domain.Round) StakingStatus {
	now := s.now()
	status := StakingStatus{
		Status:   "none",
		LiveOpen: domain.IsStakingOpen(live, now),
		NextOpen: domain.IsStakingOpen(next, now),
	}

	switch {
	case status.NextOpen:
		status.Status = "open"
		status.Target = "next"
		if live != nil {
			// The preview accepts stakes until it goes live plus its own
			// staking window.
			status.EndsIn = live.EndTime - now.UnixMilli() + s.policy.StakingWindow.Milliseconds()
		}
	case status.LiveOpen:
		status.Status = "open"
		status.Target = "live"
		status.EndsIn = live.StakingClosesAt - now.UnixMilli()
	case live != nil:
		status.Status = "locked"
	}
	return status
}

// Prices returns display quotes for the current round's tokens, preferring
// the live round and falling back to the preview round.
func (s *RoundService) Prices(ctx context.Context) ([]domain.TokenPrice, error) {
	live, err := s.store.GetLiveRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: prices: %w", err)
	}
	round := live
	if round == nil {
		round, err = s.store.GetNextRound(ctx)
		if err != nil {
			return nil, fmt.Errorf("service: prices: %w", err)
		}
	}
	if round == nil {
		return []domain.TokenPrice{}, nil
	}

	quotes, err := s.feed.TokenPrices(ctx, round.Tokens)
	if err != nil {
		return nil, fmt.Errorf("service: prices: %w", err)
	}
	return quotes, nil
}

// Leaderboard returns the top wallets by lifetime winnings.
func (s *RoundService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	entries, err := s.store.GetLeaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service: leaderboard: %w", err)
	}
	return entries, nil
}

// History returns the most recent settlement records, newest first.
func (s *RoundService) History(ctx context.Context, limit int) ([]domain.RoundHistoryEntry, error) {
	entries, err := s.store.GetRoundHistory(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service: history: %w", err)
	}
	return entries, nil
}
