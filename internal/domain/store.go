package domain

import (
	"context"
	"time"
)

// RoundStore persists rounds, the live/next round pointers, the leaderboard,
// the activity feed, and the settlement history. Backed by a key/value store
// with per-key atomicity only; no cross-key transactions are assumed.
//
// Pointer reads (GetLiveRound, GetNextRound) return (nil, nil) when the slot
// is empty: an empty slot is a normal state, not a fault. GetRound returns
// ErrNotFound for an unknown id, since there the caller asked for a specific
// round. Backend failures surface as wrapped errors and are never swallowed.
type RoundStore interface {
	GetLiveRound(ctx context.Context) (*Round, error)
	GetNextRound(ctx context.Context) (*Round, error)
	GetRound(ctx context.Context, id string) (*Round, error)

	// CreateNextRound creates a preview round with the given token set and
	// points the "next" slot at it. Callers must check for an existing next
	// round first; a concurrent create silently overwrites the pointer
	// (documented last-writer-wins race).
	CreateNextRound(ctx context.Context, tokens []Token) (*Round, error)

	// PromoteNextRoundToLive stamps the next round's timers and start prices,
	// marks it live, repoints the "live" slot and clears the "next" slot.
	// Returns (nil, nil) when no next round exists.
	PromoteNextRoundToLive(ctx context.Context, startPrices map[string]float64) (*Round, error)

	// StartNewLiveRound constructs a live round directly, skipping preview.
	// Used for bootstrap and when no preview exists at settlement time.
	StartNewLiveRound(ctx context.Context, tokens []Token, startPrices map[string]float64) (*Round, error)

	// EndRound settles the current live round with the given end prices and
	// winner (or WinnerRefunded) and clears the "live" slot. Returns
	// (nil, nil) when no live round exists, which makes a second settlement
	// attempt a no-op.
	EndRound(ctx context.Context, endPrices map[string]float64, winner string) (*Round, error)

	// AddStake resolves the target round (explicit id, else next-if-open,
	// else live-if-open), verifies the staking window, appends the stake and
	// updates the pool and activity feed. Returns (nil, nil) when no eligible
	// round accepts stakes -- a normal "betting closed" outcome.
	AddStake(ctx context.Context, wallet, token string, amount float64, txRef, roundID string) (*Stake, error)

	// GetStakeCountsByToken tallies stake counts per token symbol for the
	// given round, defaulting to the live round when id is empty.
	GetStakeCountsByToken(ctx context.Context, roundID string) (map[string]int, error)

	// UpdateLeaderboard credits winnings to a wallet, creating the entry if
	// absent.
	UpdateLeaderboard(ctx context.Context, wallet string, amount float64) error

	GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	GetActivityFeed(ctx context.Context, limit int) ([]Stake, error)

	SaveRoundToHistory(ctx context.Context, entry RoundHistoryEntry) error
	GetRoundHistory(ctx context.Context, limit int) ([]RoundHistoryEntry, error)
}

// LockManager provides advisory distributed locks used to shrink (not close)
// the race window around the round advancement critical section.
type LockManager interface {
	// Acquire obtains the lock or returns ErrLockHeld. On success the
	// returned function releases the lock and is safe to call repeatedly.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// PriceFeed is the token discovery / price lookup collaborator. Treated as a
// black box per the system boundary.
type PriceFeed interface {
	// DiscoverTokens returns count tradable tokens for a new round.
	DiscoverTokens(ctx context.Context, count int) ([]Token, error)
	// Prices returns current prices keyed by token id. Tokens the feed
	// cannot price are reported as 0.
	Prices(ctx context.Context, tokenIDs []string) (map[string]float64, error)
	// TokenPrices returns display quotes (price plus 24h change) for the
	// given round tokens, in the same order.
	TokenPrices(ctx context.Context, tokens []Token) ([]TokenPrice, error)
}

// Treasury is the disbursement transport that moves funds to winners.
type Treasury interface {
	// Configured reports whether automated payouts are available. When false,
	// settlement credits the leaderboard directly and payouts are manual.
	Configured() bool
	// Pay transfers amount to wallet and returns the transfer reference.
	Pay(ctx context.Context, wallet string, amount float64) (string, error)
	// Balance returns the escrow balance available for payouts.
	Balance(ctx context.Context) (float64, error)
}

// HistoryArchive is an optional durable sink for settlement records, written
// in addition to the round store's own history list.
type HistoryArchive interface {
	Append(ctx context.Context, entry RoundHistoryEntry) error
}

// SnapshotArchiver uploads settled-round snapshots to cold storage.
type SnapshotArchiver interface {
	ArchiveRound(ctx context.Context, entry RoundHistoryEntry) error
}
