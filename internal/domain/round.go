package domain

import "time"

// RoundStatus represents the lifecycle state of a round.
type RoundStatus string

const (
	RoundStatusPreview RoundStatus = "preview"
	RoundStatusLive    RoundStatus = "live"
	RoundStatusSettled RoundStatus = "settled"
)

// WinnerRefunded is the sentinel winner value for rounds closed through the
// refund path instead of a normal settlement.
const WinnerRefunded = "REFUNDED"

// Token is one of the tradable tokens selected into a round. Immutable once
// the round is created.
type Token struct {
	ID      string `json:"id"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	Color   string `json:"color"`
	Address string `json:"address,omitempty"`
}

// Stake is a single wager placed into a round. Stakes are immutable
// historical facts: created once by stake admission, never mutated.
type Stake struct {
	ID        string  `json:"id"`
	Wallet    string  `json:"wallet"`
	Token     string  `json:"token"`
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp"`
	TxRef     string  `json:"txRef"`
	RoundID   string  `json:"roundId"`
}

// Round is one instance of the predict-and-stake game, bound to a fixed set
// of tokens and a time window.
//
// Timer fields and StartPrices are zero while Status is preview; they are
// stamped atomically when the round is promoted to live. EndPrices and Winner
// are set exactly once at settlement. All times are epoch milliseconds.
type Round struct {
	ID              string             `json:"id"`
	Status          RoundStatus        `json:"status"`
	Tokens          []Token            `json:"tokens"`
	StartTime       int64              `json:"startTime"`
	EndTime         int64              `json:"endTime"`
	StakingClosesAt int64              `json:"stakingClosesAt"`
	StartPrices     map[string]float64 `json:"startPrices"`
	EndPrices       map[string]float64 `json:"endPrices,omitempty"`
	Stakes          []Stake            `json:"stakes"`
	TotalPool       float64            `json:"totalPool"`
	Winner          string             `json:"winner,omitempty"`
}

// DistinctWallets returns the number of distinct wallets among the round's
// stakes. Settlement eligibility requires at least two.
func (r *Round) DistinctWallets() int {
	seen := make(map[string]struct{}, len(r.Stakes))
	for _, s := range r.Stakes {
		seen[s.Wallet] = struct{}{}
	}
	return len(seen)
}

// HasToken reports whether symbol is one of the round's tokens.
func (r *Round) HasToken(symbol string) bool {
	for _, t := range r.Tokens {
		if t.Symbol == symbol {
			return true
		}
	}
	return false
}

// WindowPolicy holds the round timing constants. Preview rounds have no
// clock; the durations apply from the moment a round goes live.
type WindowPolicy struct {
	// RoundDuration is the full length of a live round.
	RoundDuration time.Duration
	// StakingWindow is how long after going live a round still accepts stakes.
	StakingWindow time.Duration
	// PreviewWindow is how long before a live round's end the next round's
	// preview should be created.
	PreviewWindow time.Duration
}

// DefaultWindowPolicy returns the production timing: 15 minute rounds, 2
// minute staking window, 2 minute preview window.
func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{
		RoundDuration: 15 * time.Minute,
		StakingWindow: 2 * time.Minute,
		PreviewWindow: 2 * time.Minute,
	}
}

// IsStakingOpen reports whether a stake may be admitted into the round at the
// given time. Settled rounds never accept stakes. Preview rounds always do:
// their prices have not been snapshotted yet, so there is no informational
// edge. Live rounds accept stakes only before StakingClosesAt, which closes
// well before EndTime.
func IsStakingOpen(r *Round, now time.Time) bool {
	if r == nil {
		return false
	}
	switch r.Status {
	case RoundStatusSettled:
		return false
	case RoundStatusPreview:
		return true
	default:
		return now.UnixMilli() < r.StakingClosesAt
	}
}
