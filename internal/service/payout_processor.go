package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/degendice/backend/internal/domain"
)

// txFeeBuffer is the per-transfer network fee reserved on top of the payout
// amounts when checking the escrow balance.
const txFeeBuffer = 0.001

// PayoutProcessor disburses a settled round's payouts through the treasury.
// Transfers run sequentially with a small delay so the signer never races its
// own nonce, and a failed transfer never aborts the rest of the batch.
type PayoutProcessor struct {
	treasury  domain.Treasury
	minPayout float64
	delay     time.Duration
	log       *slog.Logger

	sleep func(ctx context.Context, d time.Duration)
}

// NewPayoutProcessor creates a PayoutProcessor.
func NewPayoutProcessor(treasury domain.Treasury, minPayout float64, delay time.Duration, log *slog.Logger) *PayoutProcessor {
	return &PayoutProcessor{
		treasury:  treasury,
		minPayout: minPayout,
		delay:     delay,
		log:       log,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Process sends every payout and reports per-recipient outcomes. Batch-level
// preconditions (treasury unconfigured, unreadable or insufficient escrow
// balance) fail every entry rather than returning an error: settlement has
// already happened and the caller records the outcome either way.
func (p *PayoutProcessor) Process(ctx context.Context, payouts []domain.Payout) *domain.PayoutSummary {
	if len(payouts) == 0 {
		return &domain.PayoutSummary{Results: []domain.PayoutResult{}}
	}

	if !p.treasury.Configured() {
		return p.failAll(payouts, "automated payouts not configured")
	}

	balance, err := p.treasury.Balance(ctx)
	if err != nil {
		p.log.Error("escrow balance check failed", "error", err)
		return p.failAll(payouts, "escrow balance unavailable")
	}

	var required float64
	for _, payout := range payouts {
		required += payout.Amount
	}
	required += float64(len(payouts)) * txFeeBuffer

	if balance < required {
		p.log.Error("insufficient escrow balance",
			"balance", balance,
			"required", required,
		)
		return p.failAll(payouts, "insufficient escrow balance")
	}

	summary := &domain.PayoutSummary{Results: make([]domain.PayoutResult, 0, len(payouts))}
	for i, payout := range payouts {
		if i > 0 {
			p.sleep(ctx, p.delay)
		}

		result := domain.PayoutResult{Wallet: payout.Wallet, Amount: payout.Amount}

		if payout.Amount < p.minPayout {
			result.Error = "amount below minimum payout"
			summary.Results = append(summary.Results, result)
			summary.FailedCount++
			continue
		}

		txRef, err := p.treasury.Pay(ctx, payout.Wallet, payout.Amount)
		if err != nil {
			p.log.Error("payout failed",
				"wallet", payout.Wallet,
				"amount", payout.Amount,
				"error", err,
			)
			result.Error = err.Error()
			summary.Results = append(summary.Results, result)
			summary.FailedCount++
			continue
		}

		result.Success = true
		result.TxRef = txRef
		summary.Results = append(summary.Results, result)
		summary.SuccessCount++
		summary.TotalPaid += payout.Amount

		p.log.Info("payout sent",
			"wallet", payout.Wallet,
			"amount", payout.Amount,
			"tx_ref", txRef,
		)
	}
	return summary
}

func (p *PayoutProcessor) failAll(payouts []domain.Payout, reason string) *domain.PayoutSummary {
	summary := &domain.PayoutSummary{
		Results:     make([]domain.PayoutResult, 0, len(payouts)),
		FailedCount: len(payouts),
	}
	for _, payout := range payouts {
		summary.Results = append(summary.Results, domain.PayoutResult{
			Wallet: payout.Wallet,
			Amount: payout.Amount,
			Error:  reason,
		})
	}
	return summary
}
