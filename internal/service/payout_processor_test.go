package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degendice/backend/internal/domain"
)

func newPayoutProcessor(treasury *stubTreasury) *PayoutProcessor {
	p := NewPayoutProcessor(treasury, 0.001, 500*time.Millisecond, testLogger())
	p.sleep = func(ctx context.Context, d time.Duration) {}
	return p
}

func twoPayouts() []domain.Payout {
	return []domain.Payout{
		{Wallet: walletA, Amount: 1.0, StakeAmount: 0.5},
		{Wallet: walletB, Amount: 0.5, StakeAmount: 0.25},
	}
}

func TestProcessEmptyBatch(t *testing.T) {
	p := newPayoutProcessor(&stubTreasury{configured: true, balance: 10})

	summary := p.Process(context.Background(), nil)
	assert.Empty(t, summary.Results)
	assert.Zero(t, summary.SuccessCount)
}

func TestProcessFailsAllWhenUnconfigured(t *testing.T) {
	p := newPayoutProcessor(&stubTreasury{configured: false})

	summary := p.Process(context.Background(), twoPayouts())
	assert.Equal(t, 2, summary.FailedCount)
	assert.Zero(t, summary.SuccessCount)
	for _, result := range summary.Results {
		assert.Equal(t, "automated payouts not configured", result.Error)
	}
}

func TestProcessFailsAllWhenBalanceUnavailable(t *testing.T) {
	treasury := &stubTreasury{configured: true, balanceErr: errors.New("rpc down")}
	p := newPayoutProcessor(treasury)

	summary := p.Process(context.Background(), twoPayouts())
	assert.Equal(t, 2, summary.FailedCount)
	assert.Equal(t, "escrow balance unavailable", summary.Results[0].Error)
	assert.Empty(t, treasury.paid)
}

func TestProcessFailsAllWhenBalanceInsufficient(t *testing.T) {
	// 1.5 SOL of payouts plus two fee buffers needs 1.502.
	treasury := &stubTreasury{configured: true, balance: 1.501}
	p := newPayoutProcessor(treasury)

	summary := p.Process(context.Background(), twoPayouts())
	assert.Equal(t, 2, summary.FailedCount)
	assert.Equal(t, "insufficient escrow balance", summary.Results[0].Error)
	assert.Empty(t, treasury.paid)
}

func TestProcessSendsEachPayout(t *testing.T) {
	treasury := &stubTreasury{configured: true, balance: 10}
	p := newPayoutProcessor(treasury)

	summary := p.Process(context.Background(), twoPayouts())
	require.Len(t, summary.Results, 2)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Zero(t, summary.FailedCount)
	assert.InDelta(t, 1.5, summary.TotalPaid, 1e-9)
	for _, result := range summary.Results {
		assert.True(t, result.Success)
		assert.NotEmpty(t, result.TxRef)
	}
	assert.Len(t, treasury.paid, 2)
}

func TestProcessSkipsDustAmounts(t *testing.T) {
	treasury := &stubTreasury{configured: true, balance: 10}
	p := newPayoutProcessor(treasury)

	payouts := []domain.Payout{
		{Wallet: walletA, Amount: 0.0005},
		{Wallet: walletB, Amount: 1.0},
	}
	summary := p.Process(context.Background(), payouts)
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, "amount below minimum payout", summary.Results[0].Error)
	assert.True(t, summary.Results[1].Success)
	require.Len(t, treasury.paid, 1)
	assert.Equal(t, walletB, treasury.paid[0].Wallet)
}

func TestProcessContinuesPastFailedTransfer(t *testing.T) {
	treasury := &stubTreasury{configured: true, balance: 10, failWallet: walletA}
	p := newPayoutProcessor(treasury)

	summary := p.Process(context.Background(), twoPayouts())
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, "transfer rejected", summary.Results[0].Error)
	assert.True(t, summary.Results[1].Success)
	assert.InDelta(t, 0.5, summary.TotalPaid, 1e-9)
}

func TestProcessDelaysBetweenTransfers(t *testing.T) {
	treasury := &stubTreasury{configured: true, balance: 10}
	p := NewPayoutProcessor(treasury, 0.001, 500*time.Millisecond, testLogger())

	var sleeps []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) { sleeps = append(sleeps, d) }

	p.Process(context.Background(), []domain.Payout{
		{Wallet: walletA, Amount: 1},
		{Wallet: walletB, Amount: 1},
		{Wallet: walletC, Amount: 1},
	})
	// No delay before the first transfer, one before each of the rest.
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, sleeps)
}
