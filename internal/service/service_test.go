package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/degendice/backend/internal/domain"
	"github.com/degendice/backend/internal/store/memory"
)

// Valid base58 wallet addresses used across the service tests.
const (
	walletA = "So11111111111111111111111111111111111111112"
	walletB = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	walletC = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
)

// validTxRef is long enough to pass the transaction reference check.
const validTxRef = "5VERYLONGTXREFTHATISATLEAST32CHARSLONG0000"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy() domain.WindowPolicy {
	return domain.WindowPolicy{
		RoundDuration: 15 * time.Minute,
		StakingWindow: 2 * time.Minute,
		PreviewWindow: 2 * time.Minute,
	}
}

func testTokens() []domain.Token {
	return []domain.Token{
		{ID: "mint-doge", Symbol: "DOGE", Name: "Doge"},
		{ID: "mint-pepe", Symbol: "PEPE", Name: "Pepe"},
		{ID: "mint-bonk", Symbol: "BONK", Name: "Bonk"},
	}
}

// stubFeed serves a fixed token set and price table.
type stubFeed struct {
	tokens      []domain.Token
	prices      map[string]float64 // keyed by token id
	discoverErr error
	pricesErr   error
}

func (f *stubFeed) DiscoverTokens(ctx context.Context, count int) ([]domain.Token, error) {
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	if count < len(f.tokens) {
		return f.tokens[:count], nil
	}
	return f.tokens, nil
}

func (f *stubFeed) Prices(ctx context.Context, tokenIDs []string) (map[string]float64, error) {
	if f.pricesErr != nil {
		return nil, f.pricesErr
	}
	out := make(map[string]float64, len(tokenIDs))
	for _, id := range tokenIDs {
		out[id] = f.prices[id]
	}
	return out, nil
}

func (f *stubFeed) TokenPrices(ctx context.Context, tokens []domain.Token) ([]domain.TokenPrice, error) {
	if f.pricesErr != nil {
		return nil, f.pricesErr
	}
	quotes := make([]domain.TokenPrice, 0, len(tokens))
	for _, t := range tokens {
		quotes = append(quotes, domain.TokenPrice{Symbol: t.Symbol, Price: f.prices[t.ID]})
	}
	return quotes, nil
}

// stubTreasury records transfers and optionally fails specific wallets.
type stubTreasury struct {
	configured bool
	balance    float64
	balanceErr error
	failWallet string

	paid []domain.Payout
}

func (t *stubTreasury) Configured() bool { return t.configured }

func (t *stubTreasury) Pay(ctx context.Context, wallet string, amount float64) (string, error) {
	if wallet == t.failWallet {
		return "", errors.New("transfer rejected")
	}
	t.paid = append(t.paid, domain.Payout{Wallet: wallet, Amount: amount})
	return "sig-" + wallet[:8], nil
}

func (t *stubTreasury) Balance(ctx context.Context) (float64, error) {
	if t.balanceErr != nil {
		return 0, t.balanceErr
	}
	return t.balance, nil
}

// stubLocks hands out the lock unless held is set.
type stubLocks struct {
	held     bool
	acquired int
	released int
}

func (l *stubLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	l.acquired++
	return func() { l.released++ }, nil
}

var (
	_ domain.PriceFeed   = (*stubFeed)(nil)
	_ domain.Treasury    = (*stubTreasury)(nil)
	_ domain.LockManager = (*stubLocks)(nil)
)

// newTestStore returns a memory store plus a movable clock shared with it.
func newTestStore() (*memory.Store, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := memory.New(testPolicy())
	store.SetClock(func() time.Time { return now })
	return store, &now
}
