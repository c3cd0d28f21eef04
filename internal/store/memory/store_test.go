package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degendice/backend/internal/domain"
)

func testTokens() []domain.Token {
	return []domain.Token{
		{ID: "bonk", Symbol: "BONK"},
		{ID: "wif", Symbol: "WIF"},
	}
}

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	s := New(domain.DefaultWindowPolicy())
	now := time.Unix(1_700_000_000, 0)
	s.SetClock(func() time.Time { return now })
	return s, &now
}

func TestLifecyclePreviewToSettled(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	live, err := s.GetLiveRound(ctx)
	require.NoError(t, err)
	assert.Nil(t, live, "empty live slot reads as nil without error")

	next, err := s.CreateNextRound(ctx, testTokens())
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStatusPreview, next.Status)

	promoted, err := s.PromoteNextRoundToLive(ctx, map[string]float64{"BONK": 1, "WIF": 2})
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, domain.RoundStatusLive, promoted.Status)
	assert.Equal(t, next.ID, promoted.ID)
	assert.Greater(t, promoted.EndTime, promoted.StartTime)
	assert.Greater(t, promoted.StakingClosesAt, promoted.StartTime)

	next, err = s.GetNextRound(ctx)
	require.NoError(t, err)
	assert.Nil(t, next, "promotion clears the next slot")

	settled, err := s.EndRound(ctx, map[string]float64{"BONK": 1.5, "WIF": 2}, "BONK")
	require.NoError(t, err)
	require.NotNil(t, settled)
	assert.Equal(t, domain.RoundStatusSettled, settled.Status)
	assert.Equal(t, "BONK", settled.Winner)

	live, err = s.GetLiveRound(ctx)
	require.NoError(t, err)
	assert.Nil(t, live, "settlement clears the live slot")

	again, err := s.EndRound(ctx, nil, "BONK")
	require.NoError(t, err)
	assert.Nil(t, again, "second settlement is a no-op")
}

func TestPromoteWithoutNextRound(t *testing.T) {
	s, _ := newTestStore(t)
	r, err := s.PromoteNextRoundToLive(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestGetRoundNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.GetRound(context.Background(), "round_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAddStakeResolvesPreviewBeforeLive(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.StartNewLiveRound(ctx, testTokens(), map[string]float64{"BONK": 1})
	require.NoError(t, err)
	preview, err := s.CreateNextRound(ctx, testTokens())
	require.NoError(t, err)

	stake, err := s.AddStake(ctx, "wallet1", "BONK", 1.0, "tx1", "")
	require.NoError(t, err)
	require.NotNil(t, stake)
	assert.Equal(t, preview.ID, stake.RoundID, "preview round takes precedence for new stakes")
}

func TestAddStakeClosedWindow(t *testing.T) {
	ctx := context.Background()
	s, now := newTestStore(t)

	live, err := s.StartNewLiveRound(ctx, testTokens(), map[string]float64{"BONK": 1})
	require.NoError(t, err)

	*now = now.Add(domain.DefaultWindowPolicy().StakingWindow + time.Second)

	stake, err := s.AddStake(ctx, "wallet1", "BONK", 1.0, "tx1", live.ID)
	require.NoError(t, err)
	assert.Nil(t, stake, "a closed staking window rejects without error")
}

func TestAddStakeUpdatesPoolAndFeed(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	live, err := s.StartNewLiveRound(ctx, testTokens(), map[string]float64{"BONK": 1})
	require.NoError(t, err)

	_, err = s.AddStake(ctx, "wallet1", "BONK", 0.5, "tx1", live.ID)
	require.NoError(t, err)
	_, err = s.AddStake(ctx, "wallet2", "WIF", 1.5, "tx2", live.ID)
	require.NoError(t, err)

	got, err := s.GetRound(ctx, live.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got.TotalPool, 1e-9)
	assert.Len(t, got.Stakes, 2)

	feed, err := s.GetActivityFeed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "wallet2", feed[0].Wallet, "feed is newest-first")

	counts, err := s.GetStakeCountsByToken(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"BONK": 1, "WIF": 1}, counts)
}

func TestActivityFeedCapped(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	live, err := s.StartNewLiveRound(ctx, testTokens(), map[string]float64{"BONK": 1})
	require.NoError(t, err)

	for i := 0; i < activityFeedCap+10; i++ {
		_, err = s.AddStake(ctx, "wallet1", "BONK", 0.1, "tx", live.ID)
		require.NoError(t, err)
	}

	feed, err := s.GetActivityFeed(ctx, activityFeedCap*2)
	require.NoError(t, err)
	assert.Len(t, feed, activityFeedCap)
}

func TestLeaderboardOrdering(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.UpdateLeaderboard(ctx, "small", 1.0))
	require.NoError(t, s.UpdateLeaderboard(ctx, "big", 5.0))
	require.NoError(t, s.UpdateLeaderboard(ctx, "big", 5.0))

	entries, err := s.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "big", entries[0].Wallet)
	assert.InDelta(t, 10.0, entries[0].TotalWinnings, 1e-9)
	assert.Equal(t, 2, entries[0].WinCount)

	top1, err := s.GetLeaderboard(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top1, 1)
}

func TestRoundHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	first := domain.RoundHistoryEntry{Round: domain.Round{ID: "round_1"}}
	second := domain.RoundHistoryEntry{Round: domain.Round{ID: "round_2"}}
	require.NoError(t, s.SaveRoundToHistory(ctx, first))
	require.NoError(t, s.SaveRoundToHistory(ctx, second))

	got, err := s.GetRoundHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "round_2", got[0].Round.ID)

	limited, err := s.GetRoundHistory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestReturnedRoundsAreCopies(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	live, err := s.StartNewLiveRound(ctx, testTokens(), map[string]float64{"BONK": 1})
	require.NoError(t, err)

	live.Stakes = append(live.Stakes, domain.Stake{Wallet: "mutant"})
	live.StartPrices["BONK"] = 999

	got, err := s.GetRound(ctx, live.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Stakes)
	assert.InDelta(t, 1.0, got.StartPrices["BONK"], 1e-9)
}
