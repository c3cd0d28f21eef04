// Package settlement determines round outcomes: winner selection,
// proportional payout computation, and the undersubscribed refund path. All
// functions are pure over a round snapshot and a price map; persistence and
// fund movement belong to the caller.
package settlement

import "github.com/degendice/backend/internal/domain"

// DefaultFeeRate is the platform's cut of the pool on normal settlement.
// Refunds withhold no fee.
const DefaultFeeRate = 0.10

// MinDistinctWallets is the eligibility threshold for a normal settlement.
// Below it (with at least one stake) the round is refunded.
const MinDistinctWallets = 2

// Eligible reports whether the round settles normally. A round with stakes
// from fewer than two distinct wallets is refunded instead; a round with no
// stakes at all settles normally (a winner is still determined, there is just
// nothing to pay out).
func Eligible(r *domain.Round) bool {
	if len(r.Stakes) == 0 {
		return true
	}
	return r.DistinctWallets() >= MinDistinctWallets
}

// PriceChanges computes each token's percentage move over the round, in the
// round's token-list order. A zero start price yields a 0 change rather than
// a division by zero.
func PriceChanges(r *domain.Round, endPrices map[string]float64) []domain.PriceChange {
	changes := make([]domain.PriceChange, 0, len(r.Tokens))
	for _, tok := range r.Tokens {
		start := r.StartPrices[tok.Symbol]
		end := endPrices[tok.Symbol]
		var change float64
		if start > 0 {
			change = (end - start) / start * 100
		}
		changes = append(changes, domain.PriceChange{
			Symbol:     tok.Symbol,
			StartPrice: start,
			EndPrice:   end,
			Change:     change,
		})
	}
	return changes
}

// Winner returns the symbol with the strictly highest percentage change. On a
// tie the earlier entry wins, so callers must pass changes in the round's
// token-list order for deterministic results.
func Winner(changes []domain.PriceChange) string {
	if len(changes) == 0 {
		return ""
	}
	best := changes[0]
	for _, c := range changes[1:] {
		if c.Change > best.Change {
			best = c
		}
	}
	return best.Symbol
}

// Payouts computes the proportional split of the fee-adjusted pool among the
// stakes placed on the winning token. Returns nil when nobody staked the
// winner: the pool is then retained undistributed.
//
// Each payout is (stake / total winning stake) * pool * (1 - feeRate). The
// payouts sum to the payout pool up to floating-point rounding; no residual
// correction is applied.
func Payouts(r *domain.Round, winner string, feeRate float64) []domain.Payout {
	var winning []domain.Stake
	var totalWinning float64
	for _, s := range r.Stakes {
		if s.Token == winner {
			winning = append(winning, s)
			totalWinning += s.Amount
		}
	}
	if len(winning) == 0 || totalWinning <= 0 {
		return nil
	}

	pool := r.TotalPool * (1 - feeRate)
	payouts := make([]domain.Payout, 0, len(winning))
	for _, s := range winning {
		payouts = append(payouts, domain.Payout{
			Wallet:      s.Wallet,
			Amount:      s.Amount / totalWinning * pool,
			StakeAmount: s.Amount,
		})
	}
	return payouts
}

// Refunds returns every stake's full amount back to its wallet, fee-free.
// Used when the eligibility gate fails.
func Refunds(r *domain.Round) []domain.Payout {
	refunds := make([]domain.Payout, 0, len(r.Stakes))
	for _, s := range r.Stakes {
		refunds = append(refunds, domain.Payout{
			Wallet:      s.Wallet,
			Amount:      s.Amount,
			StakeAmount: s.Amount,
		})
	}
	return refunds
}
