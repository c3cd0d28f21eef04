package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degendice/backend/internal/store/memory"
)

func newRoundFixture(t *testing.T) (*RoundService, *memory.Store, *time.Time) {
	t.Helper()
	store, now := newTestStore()
	feed := &stubFeed{
		tokens: testTokens(),
		prices: map[string]float64{"mint-doge": 1.0, "mint-pepe": 2.0, "mint-bonk": 3.0},
	}
	svc := NewRoundService(store, feed, testPolicy())
	svc.SetClock(func() time.Time { return *now })
	return svc, store, now
}

func TestViewEmptyState(t *testing.T) {
	svc, _, _ := newRoundFixture(t)

	view, err := svc.View(context.Background())
	require.NoError(t, err)
	assert.Nil(t, view.LiveRound)
	assert.Nil(t, view.NextRound)
	assert.Equal(t, "none", view.Staking.Status)
	assert.False(t, view.Staking.LiveOpen)
	assert.False(t, view.Staking.NextOpen)
	assert.Equal(t, int64(15*time.Minute/time.Millisecond), view.Config.RoundDuration)
}

func TestViewLiveRoundOpenWindow(t *testing.T) {
	svc, store, now := newRoundFixture(t)
	live, err := store.StartNewLiveRound(context.Background(), testTokens(), map[string]float64{"DOGE": 1})
	require.NoError(t, err)

	view, err := svc.View(context.Background())
	require.NoError(t, err)
	require.NotNil(t, view.LiveRound)
	assert.Equal(t, live.ID, view.LiveRound.ID)
	assert.Equal(t, "open", view.Staking.Status)
	assert.Equal(t, "live", view.Staking.Target)
	assert.Equal(t, live.StakingClosesAt-now.UnixMilli(), view.Staking.EndsIn)
}

func TestViewLockedAfterStakingWindow(t *testing.T) {
	svc, store, now := newRoundFixture(t)
	_, err := store.StartNewLiveRound(context.Background(), testTokens(), map[string]float64{"DOGE": 1})
	require.NoError(t, err)

	*now = now.Add(3 * time.Minute)

	view, err := svc.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "locked", view.Staking.Status)
	assert.Empty(t, view.Staking.Target)
}

func TestViewPreviewRoundTakesPrecedence(t *testing.T) {
	svc, store, now := newRoundFixture(t)
	live, err := store.StartNewLiveRound(context.Background(), testTokens(), map[string]float64{"DOGE": 1})
	require.NoError(t, err)

	*now = now.Add(14 * time.Minute)
	_, err = store.CreateNextRound(context.Background(), testTokens())
	require.NoError(t, err)

	view, err := svc.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "open", view.Staking.Status)
	assert.Equal(t, "next", view.Staking.Target)
	// The preview closes once it goes live and its own window elapses.
	wantEndsIn := live.EndTime - now.UnixMilli() + testPolicy().StakingWindow.Milliseconds()
	assert.Equal(t, wantEndsIn, view.Staking.EndsIn)
}

func TestViewIncludesStakeCountsAndActivity(t *testing.T) {
	svc, store, _ := newRoundFixture(t)
	_, err := store.StartNewLiveRound(context.Background(), testTokens(), map[string]float64{"DOGE": 1})
	require.NoError(t, err)

	for _, token := range []string{"DOGE", "DOGE", "PEPE"} {
		_, err := store.AddStake(context.Background(), walletA, token, 0.5, validTxRef, "")
		require.NoError(t, err)
	}

	view, err := svc.View(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"DOGE": 2, "PEPE": 1}, view.LiveStakeCounts)
	assert.Len(t, view.Activity, 3)
}

func TestPricesPrefersLiveRound(t *testing.T) {
	svc, store, _ := newRoundFixture(t)
	_, err := store.StartNewLiveRound(context.Background(), testTokens(), map[string]float64{"DOGE": 1})
	require.NoError(t, err)

	quotes, err := svc.Prices(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	assert.Equal(t, "DOGE", quotes[0].Symbol)
	assert.Equal(t, 1.0, quotes[0].Price)
}

func TestPricesFallsBackToPreview(t *testing.T) {
	svc, store, _ := newRoundFixture(t)
	_, err := store.CreateNextRound(context.Background(), testTokens())
	require.NoError(t, err)

	quotes, err := svc.Prices(context.Background())
	require.NoError(t, err)
	assert.Len(t, quotes, 3)
}

func TestPricesEmptyWithoutRounds(t *testing.T) {
	svc, _, _ := newRoundFixture(t)

	quotes, err := svc.Prices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, quotes)
}
