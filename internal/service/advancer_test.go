package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degendice/backend/internal/domain"
	"github.com/degendice/backend/internal/store/memory"
)

type advancerFixture struct {
	advancer *Advancer
	store    *memory.Store
	feed     *stubFeed
	treasury *stubTreasury
	locks    *stubLocks
	now      *time.Time
}

func newAdvancerFixture(t *testing.T) *advancerFixture {
	t.Helper()
	store, now := newTestStore()
	feed := &stubFeed{
		tokens: testTokens(),
		prices: map[string]float64{"mint-doge": 1.0, "mint-pepe": 2.0, "mint-bonk": 3.0},
	}
	treasury := &stubTreasury{}
	locks := &stubLocks{}

	adv := NewAdvancer(AdvancerConfig{
		Store:          store,
		Feed:           feed,
		Treasury:       treasury,
		Payouts:        newPayoutProcessor(treasury),
		Locks:          locks,
		Log:            testLogger(),
		Policy:         testPolicy(),
		TokensPerRound: 3,
		FeeRate:        0.10,
		LockTTL:        time.Minute,
	})
	adv.SetClock(func() time.Time { return *now })

	return &advancerFixture{
		advancer: adv,
		store:    store,
		feed:     feed,
		treasury: treasury,
		locks:    locks,
		now:      now,
	}
}

func (f *advancerFixture) stake(t *testing.T, wallet, token string, amount float64) {
	t.Helper()
	stake, err := f.store.AddStake(context.Background(), wallet, token, amount, validTxRef, "")
	require.NoError(t, err)
	require.NotNil(t, stake)
}

func TestAdvanceColdStart(t *testing.T) {
	f := newAdvancerFixture(t)

	actions, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Contains(t, actions[0], "started round")

	live, err := f.store.GetLiveRound(context.Background())
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, domain.RoundStatusLive, live.Status)
	// Start prices are snapshotted by symbol from the feed.
	assert.Equal(t, 2.0, live.StartPrices["PEPE"])
	assert.Equal(t, 1, f.locks.acquired)
	assert.Equal(t, 1, f.locks.released)
}

func TestAdvanceSkipsWhenLockHeld(t *testing.T) {
	f := newAdvancerFixture(t)
	f.locks.held = true

	actions, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"advancement already in progress"}, actions)

	live, err := f.store.GetLiveRound(context.Background())
	require.NoError(t, err)
	assert.Nil(t, live)
}

func TestAdvanceNoopMidRound(t *testing.T) {
	f := newAdvancerFixture(t)
	_, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)

	*f.now = f.now.Add(5 * time.Minute)

	actions, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestAdvanceCreatesPreviewInsideWindow(t *testing.T) {
	f := newAdvancerFixture(t)
	_, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)

	*f.now = f.now.Add(13*time.Minute + 30*time.Second)

	actions, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Contains(t, actions[0], "created preview round")

	next, err := f.store.GetNextRound(context.Background())
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, domain.RoundStatusPreview, next.Status)
}

func TestAdvanceSettlesExpiredRoundAndRollsOver(t *testing.T) {
	f := newAdvancerFixture(t)
	_, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)

	f.stake(t, walletA, "PEPE", 1.0)
	f.stake(t, walletB, "DOGE", 1.0)

	// PEPE rallies, the others stay flat.
	f.feed.prices["mint-pepe"] = 3.0
	*f.now = f.now.Add(16 * time.Minute)

	actions, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Contains(t, actions[0], "winner PEPE")
	assert.Contains(t, actions[1], "started round")

	history, err := f.store.GetRoundHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	entry := history[0]
	assert.Equal(t, "PEPE", entry.Round.Winner)
	assert.Equal(t, domain.RoundStatusSettled, entry.Round.Status)
	require.Len(t, entry.Payouts, 1)
	// Sole winning stake takes the whole pool minus the 10% fee.
	assert.InDelta(t, 1.8, entry.Payouts[0].Amount, 1e-9)

	// Manual payouts credit the leaderboard directly.
	board, err := f.store.GetLeaderboard(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, walletA, board[0].Wallet)
	assert.InDelta(t, 1.8, board[0].TotalWinnings, 1e-9)
}

func TestAdvancePromotesPreviewAfterSettlement(t *testing.T) {
	f := newAdvancerFixture(t)
	_, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)

	*f.now = f.now.Add(14 * time.Minute)
	_, err = f.advancer.Advance(context.Background())
	require.NoError(t, err)
	next, err := f.store.GetNextRound(context.Background())
	require.NoError(t, err)
	require.NotNil(t, next)

	*f.now = f.now.Add(2 * time.Minute)
	actions, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Contains(t, actions[1], "promoted preview round")

	live, err := f.store.GetLiveRound(context.Background())
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, next.ID, live.ID)
	assert.Equal(t, domain.RoundStatusLive, live.Status)
}

func TestAdvanceHealsOrphanedPreview(t *testing.T) {
	f := newAdvancerFixture(t)
	next, err := f.store.CreateNextRound(context.Background(), testTokens())
	require.NoError(t, err)

	actions, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Contains(t, actions[0], "promoted preview round")

	live, err := f.store.GetLiveRound(context.Background())
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, next.ID, live.ID)
}

func TestSettleCreditsLeaderboardOnConfirmedTransfersOnly(t *testing.T) {
	f := newAdvancerFixture(t)
	f.treasury.configured = true
	f.treasury.balance = 100
	f.treasury.failWallet = walletB

	_, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)
	f.stake(t, walletA, "PEPE", 1.0)
	f.stake(t, walletB, "PEPE", 1.0)
	f.stake(t, walletC, "DOGE", 2.0)

	f.feed.prices["mint-pepe"] = 3.0
	*f.now = f.now.Add(16 * time.Minute)

	outcome, err := f.advancer.SettleLiveRound(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	require.NotNil(t, outcome.Summary)
	assert.Equal(t, 1, outcome.Summary.SuccessCount)
	assert.Equal(t, 1, outcome.Summary.FailedCount)

	board, err := f.store.GetLeaderboard(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, walletA, board[0].Wallet)

	// Confirmed transfer references land in the history record.
	history, err := f.store.GetRoundHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	for _, payout := range history[0].Payouts {
		if payout.Wallet == walletA {
			assert.NotEmpty(t, payout.TxRef)
		} else {
			assert.Empty(t, payout.TxRef)
		}
	}
}

func TestSettleRefundsUndersubscribedRound(t *testing.T) {
	f := newAdvancerFixture(t)
	f.treasury.configured = true
	f.treasury.balance = 100

	_, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)
	f.stake(t, walletA, "PEPE", 1.0)
	f.stake(t, walletA, "DOGE", 0.5)

	*f.now = f.now.Add(16 * time.Minute)

	outcome, err := f.advancer.SettleLiveRound(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.True(t, outcome.Refunded)
	assert.Equal(t, domain.WinnerRefunded, outcome.Winner)
	require.Len(t, outcome.Payouts, 2)
	assert.Equal(t, 1.0, outcome.Payouts[0].Amount)
	assert.Equal(t, 0.5, outcome.Payouts[1].Amount)
	assert.Empty(t, outcome.PriceChanges)

	// Refunds are not winnings.
	board, err := f.store.GetLeaderboard(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, board)

	history, err := f.store.GetRoundHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.WinnerRefunded, history[0].Round.Winner)
}

func TestSettleWithoutLiveRound(t *testing.T) {
	f := newAdvancerFixture(t)

	_, err := f.advancer.SettleLiveRound(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoLiveRound)
}

func TestSettleTwiceIsNoop(t *testing.T) {
	f := newAdvancerFixture(t)
	_, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)
	f.stake(t, walletA, "PEPE", 1.0)
	f.stake(t, walletB, "DOGE", 1.0)

	*f.now = f.now.Add(16 * time.Minute)

	first, err := f.advancer.SettleLiveRound(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)

	_, err = f.advancer.SettleLiveRound(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoLiveRound)

	history, err := f.store.GetRoundHistory(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestStartRoundRejectsWhenLiveExists(t *testing.T) {
	f := newAdvancerFixture(t)
	_, err := f.advancer.Advance(context.Background())
	require.NoError(t, err)

	_, err = f.advancer.StartRound(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "a live round already exists", verr.Reason)
}

func TestStartRoundBootstraps(t *testing.T) {
	f := newAdvancerFixture(t)

	round, err := f.advancer.StartRound(context.Background())
	require.NoError(t, err)
	require.NotNil(t, round)
	assert.Equal(t, domain.RoundStatusLive, round.Status)
	assert.Len(t, round.Tokens, 3)
}
