// Package memory implements domain.RoundStore with in-process maps. It is
// the fallback backend for local development and tests; production deploys
// select the redis backend at startup instead.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/degendice/backend/internal/domain"
)

// activityFeedCap bounds the most-recent-stakes ring buffer.
const activityFeedCap = 50

// Store is a mutex-guarded in-memory RoundStore.
type Store struct {
	mu          sync.Mutex
	policy      domain.WindowPolicy
	rounds      map[string]*domain.Round
	liveRoundID string
	nextRoundID string
	leaderboard map[string]*domain.LeaderboardEntry
	activity    []domain.Stake
	history     []domain.RoundHistoryEntry

	now func() time.Time
}

// New creates an empty Store using the given window policy.
func New(policy domain.WindowPolicy) *Store {
	return &Store{
		policy:      policy,
		rounds:      make(map[string]*domain.Round),
		leaderboard: make(map[string]*domain.LeaderboardEntry),
		now:         time.Now,
	}
}

// SetClock overrides the store's clock. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) GetLiveRound(ctx context.Context) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneRound(s.liveRoundID), nil
}

func (s *Store) GetNextRound(ctx context.Context) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneRound(s.nextRoundID), nil
}

func (s *Store) GetRound(ctx context.Context, id string) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.cloneRound(id); r != nil {
		return r, nil
	}
	return nil, fmt.Errorf("memory: round %s: %w", id, domain.ErrNotFound)
}

func (s *Store) CreateNextRound(ctx context.Context, tokens []domain.Token) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &domain.Round{
		ID:          newRoundID(s.now()),
		Status:      domain.RoundStatusPreview,
		Tokens:      tokens,
		StartPrices: map[string]float64{},
	}
	s.rounds[r.ID] = r
	s.nextRoundID = r.ID
	return cloned(r), nil
}

func (s *Store) PromoteNextRoundToLive(ctx context.Context, startPrices map[string]float64) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rounds[s.nextRoundID]
	if s.nextRoundID == "" || !ok {
		return nil, nil
	}

	now := s.now()
	r.StartTime = now.UnixMilli()
	r.EndTime = now.Add(s.policy.RoundDuration).UnixMilli()
	r.StakingClosesAt = now.Add(s.policy.StakingWindow).UnixMilli()
	r.StartPrices = startPrices
	r.Status = domain.RoundStatusLive

	s.liveRoundID = r.ID
	s.nextRoundID = ""
	return cloned(r), nil
}

func (s *Store) StartNewLiveRound(ctx context.Context, tokens []domain.Token, startPrices map[string]float64) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r := &domain.Round{
		ID:              newRoundID(now),
		Status:          domain.RoundStatusLive,
		Tokens:          tokens,
		StartTime:       now.UnixMilli(),
		EndTime:         now.Add(s.policy.RoundDuration).UnixMilli(),
		StakingClosesAt: now.Add(s.policy.StakingWindow).UnixMilli(),
		StartPrices:     startPrices,
	}
	s.rounds[r.ID] = r
	s.liveRoundID = r.ID
	return cloned(r), nil
}

func (s *Store) EndRound(ctx context.Context, endPrices map[string]float64, winner string) (*domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rounds[s.liveRoundID]
	if s.liveRoundID == "" || !ok {
		return nil, nil
	}

	r.EndPrices = endPrices
	r.Winner = winner
	r.Status = domain.RoundStatusSettled
	s.liveRoundID = ""
	return cloned(r), nil
}

func (s *Store) AddStake(ctx context.Context, wallet, token string, amount float64, txRef, roundID string) (*domain.Stake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var r *domain.Round
	if roundID != "" {
		r = s.rounds[roundID]
	} else {
		// Prefer the preview round; fall back to the live round.
		if next := s.rounds[s.nextRoundID]; s.nextRoundID != "" && domain.IsStakingOpen(next, now) {
			r = next
		} else if live := s.rounds[s.liveRoundID]; s.liveRoundID != "" {
			r = live
		}
	}
	if r == nil || !domain.IsStakingOpen(r, now) {
		return nil, nil
	}

	stake := domain.Stake{
		ID:        newStakeID(now),
		Wallet:    wallet,
		Token:     token,
		Amount:    amount,
		Timestamp: now.UnixMilli(),
		TxRef:     txRef,
		RoundID:   r.ID,
	}
	r.Stakes = append(r.Stakes, stake)
	r.TotalPool += amount

	s.activity = append([]domain.Stake{stake}, s.activity...)
	if len(s.activity) > activityFeedCap {
		s.activity = s.activity[:activityFeedCap]
	}

	return &stake, nil
}

func (s *Store) GetStakeCountsByToken(ctx context.Context, roundID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := roundID
	if id == "" {
		id = s.liveRoundID
	}
	counts := map[string]int{}
	r, ok := s.rounds[id]
	if id == "" || !ok {
		return counts, nil
	}
	for _, stake := range r.Stakes {
		counts[stake.Token]++
	}
	return counts, nil
}

func (s *Store) UpdateLeaderboard(ctx context.Context, wallet string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.leaderboard[wallet]
	if !ok {
		entry = &domain.LeaderboardEntry{Wallet: wallet}
		s.leaderboard[wallet] = entry
	}
	entry.TotalWinnings += amount
	entry.WinCount++
	return nil
}

func (s *Store) GetLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]domain.LeaderboardEntry, 0, len(s.leaderboard))
	for _, e := range s.leaderboard {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TotalWinnings > entries[j].TotalWinnings
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) GetActivityFeed(ctx context.Context, limit int) ([]domain.Stake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed := s.activity
	if limit > 0 && len(feed) > limit {
		feed = feed[:limit]
	}
	out := make([]domain.Stake, len(feed))
	copy(out, feed)
	return out, nil
}

func (s *Store) SaveRoundToHistory(ctx context.Context, entry domain.RoundHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]domain.RoundHistoryEntry{entry}, s.history...)
	return nil
}

func (s *Store) GetRoundHistory(ctx context.Context, limit int) ([]domain.RoundHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.history
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]domain.RoundHistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// cloneRound returns a deep-enough copy of the round under id so callers
// cannot mutate store state through the returned pointer.
func (s *Store) cloneRound(id string) *domain.Round {
	if id == "" {
		return nil
	}
	r, ok := s.rounds[id]
	if !ok {
		return nil
	}
	return cloned(r)
}

func cloned(r *domain.Round) *domain.Round {
	cp := *r
	cp.Tokens = append([]domain.Token(nil), r.Tokens...)
	cp.Stakes = append([]domain.Stake(nil), r.Stakes...)
	cp.StartPrices = copyPrices(r.StartPrices)
	cp.EndPrices = copyPrices(r.EndPrices)
	return &cp
}

func copyPrices(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func newRoundID(now time.Time) string {
	return fmt.Sprintf("round_%d", now.UnixMilli())
}

func newStakeID(now time.Time) string {
	return fmt.Sprintf("stake_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}

// Compile-time interface check.
var _ domain.RoundStore = (*Store)(nil)
