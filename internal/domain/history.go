package domain

// LeaderboardEntry accumulates a wallet's lifetime winnings. Both counters
// are monotonically non-decreasing; they are updated only when a payout is
// actually credited.
type LeaderboardEntry struct {
	Wallet        string  `json:"wallet"`
	TotalWinnings float64 `json:"totalWinnings"`
	WinCount      int     `json:"winCount"`
}

// Payout is one recipient's share of a settled round. For refunds the payout
// equals the stake amount. TxRef is set when the disbursement transport
// confirmed the transfer.
type Payout struct {
	Wallet      string  `json:"wallet"`
	Amount      float64 `json:"amount"`
	StakeAmount float64 `json:"betAmount"`
	TxRef       string  `json:"txSignature,omitempty"`
}

// PriceChange records a token's price movement over a settled round.
type PriceChange struct {
	Symbol     string  `json:"symbol"`
	StartPrice float64 `json:"startPrice"`
	EndPrice   float64 `json:"endPrice"`
	Change     float64 `json:"change"`
}

// TokenPrice is a live price quote for one of the round's tokens, used for
// display rather than settlement.
type TokenPrice struct {
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Change24 float64 `json:"change24h"`
}

// RoundHistoryEntry is the write-once settlement record appended to the audit
// history for every settlement, refunds included. Never mutated after insert.
type RoundHistoryEntry struct {
	Round        Round         `json:"round"`
	Payouts      []Payout      `json:"payouts"`
	PriceChanges []PriceChange `json:"priceChanges"`
	SettledAt    int64         `json:"settledAt"`
}

// PayoutResult is the outcome of a single disbursement attempt. Partial
// failure across a batch is expected and modeled per recipient; a failed send
// never rolls back settlement.
type PayoutResult struct {
	Wallet  string  `json:"wallet"`
	Amount  float64 `json:"amount"`
	Success bool    `json:"success"`
	TxRef   string  `json:"signature,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// PayoutSummary aggregates a payout batch for callers.
type PayoutSummary struct {
	Results      []PayoutResult `json:"results"`
	SuccessCount int            `json:"successCount"`
	FailedCount  int            `json:"failedCount"`
	TotalPaid    float64        `json:"totalPaid"`
}
