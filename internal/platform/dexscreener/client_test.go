package dexscreener

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degendice/backend/internal/domain"
)

func pairJSON(chain, address, symbol, price string, liquidity, volume, change float64) string {
	return fmt.Sprintf(`{
		"chainId": %q,
		"baseToken": {"address": %q, "name": %q, "symbol": %q},
		"priceUsd": %q,
		"volume": {"h24": %g},
		"priceChange": {"h24": %g},
		"liquidity": {"usd": %g}
	}`, chain, address, symbol, symbol, price, volume, change, liquidity)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(ClientConfig{
		BaseURL:      srv.URL,
		MinLiquidity: 10_000,
		MinVolume:    50_000,
	})
}

func TestDiscoverTokensFiltersAndDedupes(t *testing.T) {
	// Eight distinct eligible tokens plus junk that must be filtered out.
	var eligible []string
	for i := 0; i < 8; i++ {
		eligible = append(eligible, pairJSON("solana", fmt.Sprintf("Addr%02d", i), fmt.Sprintf("TOK%d", i), "1.5", 20_000, 100_000+float64(i), 4.2))
	}
	junk := []string{
		pairJSON("ethereum", "EthAddr", "PEPE", "1.0", 50_000, 900_000, 9),   // wrong chain
		pairJSON("solana", "StableAddr", "USDC", "1.0", 90_000, 900_000, 1),  // excluded symbol
		pairJSON("solana", "ThinAddr", "THIN", "1.0", 5_000, 900_000, 3),     // low liquidity
		pairJSON("solana", "QuietAddr", "QUIET", "1.0", 50_000, 10_000, 3),   // low volume
		pairJSON("solana", "Addr00", "TOK0", "1.5", 30_000, 120_000, 4.2),    // duplicate address
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/latest/dex/search"))
		fmt.Fprintf(w, `{"pairs": [%s]}`, strings.Join(append(eligible, junk...), ","))
	})

	tokens, err := client.DiscoverTokens(context.Background(), 6)
	require.NoError(t, err)
	require.Len(t, tokens, 6)

	seen := map[string]bool{}
	for _, tok := range tokens {
		assert.False(t, seen[tok.Address], "no duplicate addresses")
		seen[tok.Address] = true
		assert.NotEqual(t, "USDC", tok.Symbol)
		assert.NotEmpty(t, tok.Color)
		assert.NotEmpty(t, tok.Image)
	}
}

func TestDiscoverTokensFallsBackWhenThin(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pairs": []}`)
	})

	tokens, err := client.DiscoverTokens(context.Background(), 6)
	require.NoError(t, err)
	require.Len(t, tokens, 6)
	assert.Equal(t, "BONK", tokens[0].Symbol, "fallback set is returned in order")
}

func TestPricesPicksHighestLiquidityPair(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/latest/dex/tokens/"))
		pairs := []string{
			pairJSON("solana", "AddrA", "AAA", "1.00", 10_000, 100_000, 2),
			pairJSON("solana", "AddrA", "AAA", "1.10", 90_000, 100_000, 2), // deepest pool wins
			pairJSON("ethereum", "AddrA", "AAA", "9.99", 999_999, 100_000, 2),
		}
		fmt.Fprintf(w, `{"pairs": [%s]}`, strings.Join(pairs, ","))
	})

	prices, err := client.Prices(context.Background(), []string{"AddrA", "AddrMissing"})
	require.NoError(t, err)
	assert.InDelta(t, 1.10, prices["AddrA"], 1e-9)
	assert.Zero(t, prices["AddrMissing"], "unpriceable tokens report 0")
}

func TestTokenPricesKeepsOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		pairs := []string{
			pairJSON("solana", "AddrB", "BBB", "2.5", 40_000, 100_000, -3.1),
		}
		fmt.Fprintf(w, `{"pairs": [%s]}`, strings.Join(pairs, ","))
	})

	quotes, err := client.TokenPrices(context.Background(), []domain.Token{
		{ID: "AddrA", Symbol: "AAA"},
		{ID: "AddrB", Symbol: "BBB"},
	})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "AAA", quotes[0].Symbol)
	assert.Zero(t, quotes[0].Price)
	assert.Equal(t, "BBB", quotes[1].Symbol)
	assert.InDelta(t, 2.5, quotes[1].Price, 1e-9)
	assert.InDelta(t, -3.1, quotes[1].Change24, 1e-9)
}

func TestSelectRoundTokensFiltersDeadQuotes(t *testing.T) {
	mk := func(addr string, price, volume, change float64) candidate {
		return candidate{
			token:    domain.Token{ID: addr, Symbol: addr, Address: addr},
			price:    price,
			volume:   volume,
			change24: change,
		}
	}

	candidates := []candidate{
		mk("live1", 1, 10_000, 5),
		mk("live2", 2, 10_000, -5),
		mk("flat", 1, 10_000, 0),      // flat 24h change
		mk("unpriced", 0, 10_000, 5),  // no price
		mk("illiquid", 1, 500, 5),     // negligible volume
	}

	tokens := selectRoundTokens(candidates, 2)
	require.Len(t, tokens, 2)
	for _, tok := range tokens {
		assert.Contains(t, []string{"live1", "live2"}, tok.ID)
	}

	// Too few survivors falls back to the static set.
	fallback := selectRoundTokens(candidates, 3)
	require.Len(t, fallback, 3)
	assert.Equal(t, "BONK", fallback[0].Symbol)
}
