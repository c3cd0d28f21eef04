package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/degendice/backend/internal/domain"
	"github.com/degendice/backend/internal/settlement"
)

// advanceLockKey guards the advancement critical section across replicas.
const advanceLockKey = "round:advance"

// Advancer drives the round lifecycle. Every tick runs the same idempotent
// sequence against current store state: settle an expired live round, open a
// preview near the end of the live round, heal a missing live round from an
// orphaned preview, and cold-start when nothing exists at all. Concurrent
// runs converge because each step re-reads the store and the settlement
// write clears the live pointer atomically.
type Advancer struct {
	store    domain.RoundStore
	feed     domain.PriceFeed
	treasury domain.Treasury
	payouts  *PayoutProcessor
	locks    domain.LockManager      // nil disables the advisory lock
	history  domain.HistoryArchive   // optional durable archive
	archiver domain.SnapshotArchiver // optional cold storage
	log      *slog.Logger

	policy         domain.WindowPolicy
	tokensPerRound int
	feeRate        float64
	lockTTL        time.Duration

	now func() time.Time
}

// AdvancerConfig bundles the Advancer's collaborators and tuning.
type AdvancerConfig struct {
	Store    domain.RoundStore
	Feed     domain.PriceFeed
	Treasury domain.Treasury
	Payouts  *PayoutProcessor
	Locks    domain.LockManager
	History  domain.HistoryArchive
	Archiver domain.SnapshotArchiver
	Log      *slog.Logger

	Policy         domain.WindowPolicy
	TokensPerRound int
	FeeRate        float64
	LockTTL        time.Duration
}

// NewAdvancer creates an Advancer.
func NewAdvancer(cfg AdvancerConfig) *Advancer {
	return &Advancer{
		store:          cfg.Store,
		feed:           cfg.Feed,
		treasury:       cfg.Treasury,
		payouts:        cfg.Payouts,
		locks:          cfg.Locks,
		history:        cfg.History,
		archiver:       cfg.Archiver,
		log:            cfg.Log,
		policy:         cfg.Policy,
		tokensPerRound: cfg.TokensPerRound,
		feeRate:        cfg.FeeRate,
		lockTTL:        cfg.LockTTL,
		now:            time.Now,
	}
}

// SetClock overrides the advancer clock. Test hook.
func (a *Advancer) SetClock(now func() time.Time) {
	a.now = now
}

// Advance runs one advancement pass and returns a human-readable action log.
// Calling it when nothing is due is a cheap no-op, so it is safe to trigger
// from a tight ticker and from an external cron at the same time.
func (a *Advancer) Advance(ctx context.Context) ([]string, error) {
	if a.locks != nil {
		unlock, err := a.locks.Acquire(ctx, advanceLockKey, a.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return []string{"advancement already in progress"}, nil
			}
			return nil, fmt.Errorf("service: advance: %w", err)
		}
		defer unlock()
	}

	var actions []string

	// Step 1: settle the live round once it has expired.
	live, err := a.store.GetLiveRound(ctx)
	if err != nil {
		return actions, fmt.Errorf("service: advance: %w", err)
	}
	if live != nil && a.now().UnixMilli() >= live.EndTime {
		outcome, err := a.SettleLiveRound(ctx)
		if err != nil && !errors.Is(err, domain.ErrNoLiveRound) {
			return actions, err
		}
		if outcome != nil {
			if outcome.Refunded {
				actions = append(actions, fmt.Sprintf("refunded round %s (%d stakes)", outcome.Round.ID, len(outcome.Round.Stakes)))
			} else {
				actions = append(actions, fmt.Sprintf("settled round %s, winner %s", outcome.Round.ID, outcome.Winner))
			}
			if outcome.Summary != nil {
				actions = append(actions, fmt.Sprintf("sent %d/%d payouts (%.4f SOL)",
					outcome.Summary.SuccessCount, len(outcome.Summary.Results), outcome.Summary.TotalPaid))
			}
		}
	}

	// Step 2: open a preview round inside the preview window.
	live, err = a.store.GetLiveRound(ctx)
	if err != nil {
		return actions, fmt.Errorf("service: advance: %w", err)
	}
	next, err := a.store.GetNextRound(ctx)
	if err != nil {
		return actions, fmt.Errorf("service: advance: %w", err)
	}

	if live != nil && next == nil {
		untilEnd := live.EndTime - a.now().UnixMilli()
		if untilEnd > 0 && untilEnd <= a.policy.PreviewWindow.Milliseconds() {
			tokens, err := a.feed.DiscoverTokens(ctx, a.tokensPerRound)
			if err != nil {
				return actions, fmt.Errorf("service: advance: discover tokens: %w", err)
			}
			created, err := a.store.CreateNextRound(ctx, tokens)
			if err != nil {
				return actions, fmt.Errorf("service: advance: %w", err)
			}
			actions = append(actions, fmt.Sprintf("created preview round %s", created.ID))
			next = created
		}
	}

	// Step 3: heal the gap where a preview exists without a live round, which
	// can be left behind by a crash between settlement and promotion.
	if live == nil && next != nil {
		startPrices, err := a.pricesBySymbol(ctx, next.Tokens)
		if err != nil {
			return actions, fmt.Errorf("service: advance: %w", err)
		}
		promoted, err := a.store.PromoteNextRoundToLive(ctx, startPrices)
		if err != nil {
			return actions, fmt.Errorf("service: advance: %w", err)
		}
		if promoted != nil {
			actions = append(actions, fmt.Sprintf("promoted preview round %s to live", promoted.ID))
			live = promoted
		}
	}

	// Step 4: cold start when neither slot is occupied.
	if live == nil && next == nil {
		started, err := a.startLiveRound(ctx)
		if err != nil {
			return actions, fmt.Errorf("service: advance: %w", err)
		}
		actions = append(actions, fmt.Sprintf("started round %s", started.ID))
	}

	return actions, nil
}

// SettlementOutcome reports what a settlement did.
type SettlementOutcome struct {
	Round        *domain.Round         `json:"round"`
	Winner       string                `json:"winner"`
	Refunded     bool                  `json:"refunded"`
	PriceChanges []domain.PriceChange  `json:"priceChanges"`
	Payouts      []domain.Payout       `json:"payouts"`
	Summary      *domain.PayoutSummary `json:"payoutSummary,omitempty"`
}

// SettleLiveRound settles the current live round immediately: it determines
// the winner (or the refund path), clears the live slot, disburses payouts,
// credits the leaderboard, and records the settlement history. Returns
// domain.ErrNoLiveRound when there is nothing to settle, and (nil, nil) when
// a concurrent settlement got there first.
func (a *Advancer) SettleLiveRound(ctx context.Context) (*SettlementOutcome, error) {
	live, err := a.store.GetLiveRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: settle: %w", err)
	}
	if live == nil {
		return nil, domain.ErrNoLiveRound
	}

	if !settlement.Eligible(live) {
		return a.refundRound(ctx)
	}

	endPrices, err := a.pricesBySymbol(ctx, live.Tokens)
	if err != nil {
		return nil, fmt.Errorf("service: settle: %w", err)
	}

	changes := settlement.PriceChanges(live, endPrices)
	winner := settlement.Winner(changes)

	settled, err := a.store.EndRound(ctx, endPrices, winner)
	if err != nil {
		return nil, fmt.Errorf("service: settle: %w", err)
	}
	if settled == nil {
		// Another settler cleared the live pointer first.
		return nil, nil
	}

	a.log.Info("round settled",
		"round_id", settled.ID,
		"winner", winner,
		"pool", settled.TotalPool,
		"stakes", len(settled.Stakes),
	)

	payouts := settlement.Payouts(settled, winner, a.feeRate)
	var summary *domain.PayoutSummary

	switch {
	case len(payouts) == 0:
		// Nobody staked the winner; the pool is retained.
	case a.treasury.Configured():
		summary = a.payouts.Process(ctx, payouts)
		// Only confirmed transfers count as winnings.
		for _, result := range summary.Results {
			if !result.Success {
				continue
			}
			if err := a.store.UpdateLeaderboard(ctx, result.Wallet, result.Amount); err != nil {
				a.log.Error("leaderboard update failed", "wallet", result.Wallet, "error", err)
			}
		}
	default:
		// Manual payouts: credit the leaderboard now, transfers follow
		// out of band.
		for _, payout := range payouts {
			if err := a.store.UpdateLeaderboard(ctx, payout.Wallet, payout.Amount); err != nil {
				a.log.Error("leaderboard update failed", "wallet", payout.Wallet, "error", err)
			}
		}
	}

	outcome := &SettlementOutcome{
		Round:        settled,
		Winner:       winner,
		PriceChanges: changes,
		Payouts:      payouts,
		Summary:      summary,
	}
	a.recordSettlement(ctx, outcome)
	return outcome, nil
}

// refundRound settles an undersubscribed round: every stake is returned in
// full, the round closes with the refund marker instead of a winner, and the
// leaderboard is untouched.
func (a *Advancer) refundRound(ctx context.Context) (*SettlementOutcome, error) {
	live, err := a.store.GetLiveRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: refund: %w", err)
	}
	if live == nil {
		return nil, nil
	}

	refunds := settlement.Refunds(live)

	var summary *domain.PayoutSummary
	if len(refunds) > 0 && a.treasury.Configured() {
		summary = a.payouts.Process(ctx, refunds)
	}

	settled, err := a.store.EndRound(ctx, map[string]float64{}, domain.WinnerRefunded)
	if err != nil {
		return nil, fmt.Errorf("service: refund: %w", err)
	}
	if settled == nil {
		return nil, nil
	}

	a.log.Info("round refunded",
		"round_id", settled.ID,
		"stakes", len(settled.Stakes),
		"distinct_wallets", settled.DistinctWallets(),
	)

	outcome := &SettlementOutcome{
		Round:    settled,
		Winner:   domain.WinnerRefunded,
		Refunded: true,
		Payouts:  refunds,
		Summary:  summary,
	}
	a.recordSettlement(ctx, outcome)
	return outcome, nil
}

// recordSettlement writes the history entry to the round store and the
// optional archives. Archive failures are logged, never fatal: the store's
// own history list is the source of truth.
func (a *Advancer) recordSettlement(ctx context.Context, outcome *SettlementOutcome) {
	payouts := make([]domain.Payout, len(outcome.Payouts))
	copy(payouts, outcome.Payouts)
	if outcome.Summary != nil {
		for i := range payouts {
			for _, result := range outcome.Summary.Results {
				if result.Success && result.Wallet == payouts[i].Wallet {
					payouts[i].TxRef = result.TxRef
					break
				}
			}
		}
	}

	entry := domain.RoundHistoryEntry{
		Round:        *outcome.Round,
		Payouts:      payouts,
		PriceChanges: outcome.PriceChanges,
		SettledAt:    a.now().UnixMilli(),
	}

	if err := a.store.SaveRoundToHistory(ctx, entry); err != nil {
		a.log.Error("save round history failed", "round_id", entry.Round.ID, "error", err)
	}
	if a.history != nil {
		if err := a.history.Append(ctx, entry); err != nil {
			a.log.Error("history archive append failed", "round_id", entry.Round.ID, "error", err)
		}
	}
	if a.archiver != nil {
		if err := a.archiver.ArchiveRound(ctx, entry); err != nil {
			a.log.Error("round snapshot archive failed", "round_id", entry.Round.ID, "error", err)
		}
	}
}

// StartRound starts a fresh live round on operator request. It refuses when
// a live round already exists.
func (a *Advancer) StartRound(ctx context.Context) (*domain.Round, error) {
	live, err := a.store.GetLiveRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: start round: %w", err)
	}
	if live != nil {
		return nil, invalid("a live round already exists")
	}
	return a.startLiveRound(ctx)
}

func (a *Advancer) startLiveRound(ctx context.Context) (*domain.Round, error) {
	tokens, err := a.feed.DiscoverTokens(ctx, a.tokensPerRound)
	if err != nil {
		return nil, fmt.Errorf("service: discover tokens: %w", err)
	}
	startPrices, err := a.pricesBySymbol(ctx, tokens)
	if err != nil {
		return nil, err
	}

	started, err := a.store.StartNewLiveRound(ctx, tokens, startPrices)
	if err != nil {
		return nil, fmt.Errorf("service: start live round: %w", err)
	}
	a.log.Info("round started", "round_id", started.ID, "tokens", len(tokens))
	return started, nil
}

// pricesBySymbol fetches feed prices by token id and re-keys them by symbol,
// the key space rounds use for settlement math.
func (a *Advancer) pricesBySymbol(ctx context.Context, tokens []domain.Token) (map[string]float64, error) {
	ids := make([]string, 0, len(tokens))
	for _, t := range tokens {
		ids = append(ids, t.ID)
	}

	byID, err := a.feed.Prices(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: fetch prices: %w", err)
	}

	bySymbol := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		bySymbol[t.Symbol] = byID[t.ID]
	}
	return bySymbol, nil
}
