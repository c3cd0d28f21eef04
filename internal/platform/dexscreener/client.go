// Package dexscreener implements token discovery and price lookup against
// the DexScreener public API. It is the production domain.PriceFeed.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/degendice/backend/internal/domain"
)

// searchQueries is the set of search terms combined to build a broad pool of
// candidate pairs for a new round.
var searchQueries = []string{"SOL", "meme", "ai", "defi"}

// excludedSymbols are stables and wrapped majors that make for a boring
// round.
var excludedSymbols = map[string]bool{
	"USDC": true,
	"USDT": true,
	"SOL":  true,
	"WSOL": true,
	"WETH": true,
	"USDE": true,
	"DAI":  true,
}

// ClientConfig holds the DexScreener client parameters.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "https://api.dexscreener.com".
	BaseURL string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
	// MinLiquidity is the minimum pair liquidity in USD for discovery.
	MinLiquidity float64
	// MinVolume is the minimum 24h pair volume in USD for discovery.
	MinVolume float64
}

// Client is the REST client for the DexScreener API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	minLiquidity float64
	minVolume    float64
}

// New creates a new DexScreener client.
func New(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		minLiquidity: cfg.MinLiquidity,
		minVolume:    cfg.MinVolume,
	}
}

// apiPair is the DexScreener pair shape, narrowed to the fields used here.
type apiPair struct {
	ChainID   string `json:"chainId"`
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUsd string `json:"priceUsd"`
	Volume   struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Info *struct {
		ImageURL string `json:"imageUrl"`
	} `json:"info"`
}

type pairsResponse struct {
	Pairs []apiPair `json:"pairs"`
}

// DiscoverTokens returns count tradable tokens for a new round, chosen from
// high-volume Solana pairs across several search queries. When the API does
// not yield enough candidates the built-in fallback set is returned instead,
// so round creation never fails on a thin feed.
func (c *Client) DiscoverTokens(ctx context.Context, count int) ([]domain.Token, error) {
	candidates, err := c.searchCandidates(ctx)
	if err != nil || len(candidates) < count {
		return FallbackTokens(count), nil
	}

	return selectRoundTokens(candidates, count), nil
}

// searchCandidates gathers pairs from all search queries, filters them down
// to liquid non-stable Solana tokens, and deduplicates by token address with
// the highest-volume pair winning.
func (c *Client) searchCandidates(ctx context.Context) ([]candidate, error) {
	var pairs []apiPair
	for _, query := range searchQueries {
		path := "/latest/dex/search?q=" + url.QueryEscape(query)
		body, err := c.doGet(ctx, path)
		if err != nil {
			// One failed query should not sink discovery.
			continue
		}
		var resp pairsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("dexscreener: decode search %s: %w", query, err)
		}
		pairs = append(pairs, resp.Pairs...)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("dexscreener: no pairs from any search query")
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Volume.H24 > pairs[j].Volume.H24
	})

	seen := map[string]bool{}
	var out []candidate
	for _, p := range pairs {
		if !c.eligible(p) || seen[p.BaseToken.Address] {
			continue
		}
		seen[p.BaseToken.Address] = true

		price, _ := strconv.ParseFloat(p.PriceUsd, 64)
		image := ""
		if p.Info != nil {
			image = p.Info.ImageURL
		}
		if image == "" {
			image = fmt.Sprintf("https://dd.dexscreener.com/ds-data/tokens/solana/%s.png", p.BaseToken.Address)
		}
		out = append(out, candidate{
			token: domain.Token{
				ID:      p.BaseToken.Address,
				Symbol:  strings.ToUpper(p.BaseToken.Symbol),
				Name:    p.BaseToken.Name,
				Image:   image,
				Address: p.BaseToken.Address,
			},
			price:    price,
			change24: p.PriceChange.H24,
			volume:   p.Volume.H24,
		})
	}
	return out, nil
}

func (c *Client) eligible(p apiPair) bool {
	if p.ChainID != "solana" || p.BaseToken.Address == "" {
		return false
	}
	if p.Liquidity.USD <= c.minLiquidity || p.Volume.H24 <= c.minVolume {
		return false
	}
	return !excludedSymbols[strings.ToUpper(p.BaseToken.Symbol)]
}

// Prices returns the current USD price for each token id, taking the
// highest-liquidity Solana pair per token. Tokens without a pair are
// reported as 0.
func (c *Client) Prices(ctx context.Context, tokenIDs []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(tokenIDs))
	for _, id := range tokenIDs {
		prices[id] = 0
	}
	if len(tokenIDs) == 0 {
		return prices, nil
	}

	pairs, err := c.tokenPairs(ctx, tokenIDs)
	if err != nil {
		return nil, err
	}

	for _, id := range tokenIDs {
		if best, ok := bestPair(pairs, id); ok {
			price, _ := strconv.ParseFloat(best.PriceUsd, 64)
			prices[id] = price
		}
	}
	return prices, nil
}

// TokenPrices returns display quotes for the given round tokens, in order.
// Tokens the feed cannot price come back as zero quotes.
func (c *Client) TokenPrices(ctx context.Context, tokens []domain.Token) ([]domain.TokenPrice, error) {
	quotes := make([]domain.TokenPrice, 0, len(tokens))
	if len(tokens) == 0 {
		return quotes, nil
	}

	ids := make([]string, 0, len(tokens))
	for _, t := range tokens {
		ids = append(ids, t.ID)
	}

	pairs, err := c.tokenPairs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, t := range tokens {
		quote := domain.TokenPrice{Symbol: t.Symbol}
		if best, ok := bestPair(pairs, t.ID); ok {
			quote.Price, _ = strconv.ParseFloat(best.PriceUsd, 64)
			quote.Change24 = best.PriceChange.H24
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

// tokenPairs fetches all pairs for a batch of token addresses in a single
// comma-separated request.
func (c *Client) tokenPairs(ctx context.Context, tokenIDs []string) ([]apiPair, error) {
	path := "/latest/dex/tokens/" + url.PathEscape(strings.Join(tokenIDs, ","))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: get token pairs: %w", err)
	}

	var resp pairsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("dexscreener: decode token pairs: %w", err)
	}
	return resp.Pairs, nil
}

// bestPair picks the highest-liquidity Solana pair whose base token matches
// the address.
func bestPair(pairs []apiPair, address string) (apiPair, bool) {
	var best apiPair
	found := false
	for _, p := range pairs {
		if p.ChainID != "solana" || p.BaseToken.Address != address {
			continue
		}
		if !found || p.Liquidity.USD > best.Liquidity.USD {
			best = p
			found = true
		}
	}
	return best, found
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Compile-time interface check.
var _ domain.PriceFeed = (*Client)(nil)
