package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/degendice/backend/internal/domain"
)

// Key schema:
//
//	dice:round:{id}      - JSON-serialized Round
//	dice:live_round_id   - string ID of the live round (absent when none)
//	dice:next_round_id   - string ID of the preview round (absent when none)
//	dice:leaderboard     - hash wallet -> JSON LeaderboardEntry
//	dice:activity_feed   - list of JSON Stakes, newest first, trimmed to 50
//	dice:round_history   - list of JSON RoundHistoryEntries, newest first
const (
	liveRoundKey    = "dice:live_round_id"
	nextRoundKey    = "dice:next_round_id"
	leaderboardKey  = "dice:leaderboard"
	activityFeedKey = "dice:activity_feed"
	roundHistoryKey = "dice:round_history"

	activityFeedCap = 50
	roundHistoryCap = 200

	// addStakeRetries bounds the optimistic-concurrency retry loop when
	// concurrent stakes race on the same round key.
	addStakeRetries = 5
)

func roundKey(id string) string { return "dice:round:" + id }

// RoundStore implements domain.RoundStore on Redis.
type RoundStore struct {
	rdb    *redis.Client
	policy domain.WindowPolicy

	now func() time.Time
}

// NewRoundStore creates a RoundStore backed by the given Client.
func NewRoundStore(c *Client, policy domain.WindowPolicy) *RoundStore {
	return &RoundStore{
		rdb:    c.Underlying(),
		policy: policy,
		now:    time.Now,
	}
}

// SetClock overrides the store's clock. Test hook.
func (s *RoundStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *RoundStore) GetLiveRound(ctx context.Context) (*domain.Round, error) {
	return s.roundAtPointer(ctx, liveRoundKey)
}

func (s *RoundStore) GetNextRound(ctx context.Context) (*domain.Round, error) {
	return s.roundAtPointer(ctx, nextRoundKey)
}

// roundAtPointer dereferences a singleton pointer key. An absent pointer, or
// a pointer to a round that no longer exists, reads as (nil, nil): both are
// normal states, not faults.
func (s *RoundStore) roundAtPointer(ctx context.Context, ptrKey string) (*domain.Round, error) {
	id, err := s.rdb.Get(ctx, ptrKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: get %s: %w", ptrKey, err)
	}

	r, err := s.getRound(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func (s *RoundStore) GetRound(ctx context.Context, id string) (*domain.Round, error) {
	return s.getRound(ctx, id)
}

func (s *RoundStore) getRound(ctx context.Context, id string) (*domain.Round, error) {
	data, err := s.rdb.Get(ctx, roundKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis: round %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("redis: get round %s: %w", id, err)
	}

	var r domain.Round
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("redis: unmarshal round %s: %w", id, err)
	}
	return &r, nil
}

func (s *RoundStore) CreateNextRound(ctx context.Context, tokens []domain.Token) (*domain.Round, error) {
	r := &domain.Round{
		ID:          newRoundID(s.now()),
		Status:      domain.RoundStatusPreview,
		Tokens:      tokens,
		StartPrices: map[string]float64{},
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("redis: marshal round %s: %w", r.ID, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, roundKey(r.ID), data, 0)
	pipe.Set(ctx, nextRoundKey, r.ID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis: create next round %s: %w", r.ID, err)
	}
	return r, nil
}

func (s *RoundStore) PromoteNextRoundToLive(ctx context.Context, startPrices map[string]float64) (*domain.Round, error) {
	r, err := s.roundAtPointer(ctx, nextRoundKey)
	if err != nil || r == nil {
		return nil, err
	}

	now := s.now()
	r.StartTime = now.UnixMilli()
	r.EndTime = now.Add(s.policy.RoundDuration).UnixMilli()
	r.StakingClosesAt = now.Add(s.policy.StakingWindow).UnixMilli()
	r.StartPrices = startPrices
	r.Status = domain.RoundStatusLive

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("redis: marshal round %s: %w", r.ID, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, roundKey(r.ID), data, 0)
	pipe.Set(ctx, liveRoundKey, r.ID, 0)
	pipe.Del(ctx, nextRoundKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis: promote round %s: %w", r.ID, err)
	}
	return r, nil
}

func (s *RoundStore) StartNewLiveRound(ctx context.Context, tokens []domain.Token, startPrices map[string]float64) (*domain.Round, error) {
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

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("redis: marshal round %s: %w", r.ID, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, roundKey(r.ID), data, 0)
	pipe.Set(ctx, liveRoundKey, r.ID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis: start live round %s: %w", r.ID, err)
	}
	return r, nil
}

func (s *RoundStore) EndRound(ctx context.Context, endPrices map[string]float64, winner string) (*domain.Round, error) {
	r, err := s.roundAtPointer(ctx, liveRoundKey)
	if err != nil || r == nil {
		return nil, err
	}

	r.EndPrices = endPrices
	r.Winner = winner
	r.Status = domain.RoundStatusSettled

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("redis: marshal round %s: %w", r.ID, err)
	}

	// Clearing the live pointer in the same transaction as the settled write
	// is what makes a second settlement attempt read (nil, nil) and no-op.
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, roundKey(r.ID), data, 0)
	pipe.Del(ctx, liveRoundKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis: end round %s: %w", r.ID, err)
	}
	return r, nil
}

func (s *RoundStore) AddStake(ctx context.Context, wallet, token string, amount float64, txRef, roundID string) (*domain.Stake, error) {
	now := s.now()

	targetID, err := s.resolveStakeRound(ctx, roundID, now)
	if err != nil {
		return nil, err
	}
	if targetID == "" {
		return nil, nil
	}

	var stake *domain.Stake
	key := roundKey(targetID)

	// WATCH/MULTI optimistic concurrency on the round key: concurrent stakes
	// against the same round retry instead of losing each other's append.
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				stake = nil
				return nil
			}
			return fmt.Errorf("redis: get round %s: %w", targetID, err)
		}

		var r domain.Round
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("redis: unmarshal round %s: %w", targetID, err)
		}
		if !domain.IsStakingOpen(&r, now) {
			stake = nil
			return nil
		}

		st := domain.Stake{
			ID:        newStakeID(now),
			Wallet:    wallet,
			Token:     token,
			Amount:    amount,
			Timestamp: now.UnixMilli(),
			TxRef:     txRef,
			RoundID:   r.ID,
		}
		r.Stakes = append(r.Stakes, st)
		r.TotalPool += amount

		updated, err := json.Marshal(&r)
		if err != nil {
			return fmt.Errorf("redis: marshal round %s: %w", r.ID, err)
		}
		stakeJSON, err := json.Marshal(&st)
		if err != nil {
			return fmt.Errorf("redis: marshal stake %s: %w", st.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			pipe.LPush(ctx, activityFeedKey, stakeJSON)
			pipe.LTrim(ctx, activityFeedKey, 0, activityFeedCap-1)
			return nil
		})
		if err != nil {
			return err
		}
		stake = &st
		return nil
	}

	for i := 0; i < addStakeRetries; i++ {
		err := s.rdb.Watch(ctx, txn, key)
		if err == nil {
			return stake, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("redis: add stake: %w", err)
	}
	return nil, fmt.Errorf("redis: add stake: %w", redis.TxFailedErr)
}

// resolveStakeRound picks the round a new stake targets: the explicit id when
// given, otherwise the preview round if its window is open, otherwise the
// live round. Returns "" when nothing accepts stakes.
func (s *RoundStore) resolveStakeRound(ctx context.Context, roundID string, now time.Time) (string, error) {
	if roundID != "" {
		return roundID, nil
	}

	next, err := s.GetNextRound(ctx)
	if err != nil {
		return "", err
	}
	if next != nil && domain.IsStakingOpen(next, now) {
		return next.ID, nil
	}

	live, err := s.GetLiveRound(ctx)
	if err != nil {
		return "", err
	}
	if live != nil {
		return live.ID, nil
	}
	return "", nil
}

func (s *RoundStore) GetStakeCountsByToken(ctx context.Context, roundID string) (map[string]int, error) {
	counts := map[string]int{}

	var r *domain.Round
	var err error
	if roundID != "" {
		r, err = s.getRound(ctx, roundID)
		if errors.Is(err, domain.ErrNotFound) {
			return counts, nil
		}
	} else {
		r, err = s.GetLiveRound(ctx)
	}
	if err != nil {
		return nil, err
	}
	if r == nil {
		return counts, nil
	}

	for _, stake := range r.Stakes {
		counts[stake.Token]++
	}
	return counts, nil
}

func (s *RoundStore) UpdateLeaderboard(ctx context.Context, wallet string, amount float64) error {
	txn := func(tx *redis.Tx) error {
		entry := domain.LeaderboardEntry{Wallet: wallet}

		data, err := tx.HGet(ctx, leaderboardKey, wallet).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis: get leaderboard entry %s: %w", wallet, err)
		}
		if err == nil {
			if err := json.Unmarshal(data, &entry); err != nil {
				return fmt.Errorf("redis: unmarshal leaderboard entry %s: %w", wallet, err)
			}
		}

		entry.TotalWinnings += amount
		entry.WinCount++

		updated, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("redis: marshal leaderboard entry %s: %w", wallet, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, leaderboardKey, wallet, updated)
			return nil
		})
		return err
	}

	for i := 0; i < addStakeRetries; i++ {
		err := s.rdb.Watch(ctx, txn, leaderboardKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("redis: update leaderboard: %w", err)
	}
	return fmt.Errorf("redis: update leaderboard: %w", redis.TxFailedErr)
}

func (s *RoundStore) GetLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	raw, err := s.rdb.HGetAll(ctx, leaderboardKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(raw))
	for wallet, data := range raw {
		var entry domain.LeaderboardEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, fmt.Errorf("redis: unmarshal leaderboard entry %s: %w", wallet, err)
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TotalWinnings > entries[j].TotalWinnings
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *RoundStore) GetActivityFeed(ctx context.Context, limit int) ([]domain.Stake, error) {
	if limit <= 0 || limit > activityFeedCap {
		limit = activityFeedCap
	}

	raw, err := s.rdb.LRange(ctx, activityFeedKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get activity feed: %w", err)
	}

	feed := make([]domain.Stake, 0, len(raw))
	for _, data := range raw {
		var stake domain.Stake
		if err := json.Unmarshal([]byte(data), &stake); err != nil {
			return nil, fmt.Errorf("redis: unmarshal activity stake: %w", err)
		}
		feed = append(feed, stake)
	}
	return feed, nil
}

func (s *RoundStore) SaveRoundToHistory(ctx context.Context, entry domain.RoundHistoryEntry) error {
	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("redis: marshal history entry %s: %w", entry.Round.ID, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, roundHistoryKey, data)
	pipe.LTrim(ctx, roundHistoryKey, 0, roundHistoryCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save history entry %s: %w", entry.Round.ID, err)
	}
	return nil
}

func (s *RoundStore) GetRoundHistory(ctx context.Context, limit int) ([]domain.RoundHistoryEntry, error) {
	if limit <= 0 || limit > roundHistoryCap {
		limit = roundHistoryCap
	}

	raw, err := s.rdb.LRange(ctx, roundHistoryKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get round history: %w", err)
	}

	entries := make([]domain.RoundHistoryEntry, 0, len(raw))
	for _, data := range raw {
		var entry domain.RoundHistoryEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, fmt.Errorf("redis: unmarshal history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func newRoundID(now time.Time) string {
	return fmt.Sprintf("round_%d", now.UnixMilli())
}

func newStakeID(now time.Time) string {
	return fmt.Sprintf("stake_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}

// Compile-time interface check.
var _ domain.RoundStore = (*RoundStore)(nil)
