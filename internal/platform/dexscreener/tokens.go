package dexscreener

import (
	"math/rand"

	"github.com/degendice/backend/internal/domain"
)

// tokenColors is the display palette cycled over a round's token set.
var tokenColors = []string{
	"#F72585", // pink
	"#00F5D4", // cyan
	"#9D4EDD", // purple
	"#FF6D00", // orange
	"#4CC9F0", // light blue
	"#7209B7", // deep purple
	"#F77F00", // amber
	"#06D6A0", // teal
	"#EF476F", // coral
	"#118AB2", // ocean blue
}

// candidate is a discovered token plus the market stats used for selection.
type candidate struct {
	token    domain.Token
	price    float64
	change24 float64
	volume   float64
}

// selectRoundTokens randomly picks count tokens from the candidate pool,
// skipping dead quotes (no price, negligible volume, or a flat 24h change).
// Falls back to the built-in set when the pool is too thin after filtering.
func selectRoundTokens(candidates []candidate, count int) []domain.Token {
	valid := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.price <= 0 || c.volume <= 1000 {
			continue
		}
		if c.change24 > -0.01 && c.change24 < 0.01 {
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) < count {
		return FallbackTokens(count)
	}

	rand.Shuffle(len(valid), func(i, j int) {
		valid[i], valid[j] = valid[j], valid[i]
	})

	tokens := make([]domain.Token, 0, count)
	for i, c := range valid[:count] {
		tok := c.token
		tok.Color = tokenColors[i%len(tokenColors)]
		tokens = append(tokens, tok)
	}
	return tokens
}

// FallbackTokens returns the static round token set used when discovery
// cannot produce enough live candidates.
func FallbackTokens(count int) []domain.Token {
	all := []domain.Token{
		{
			ID:      "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
			Symbol:  "BONK",
			Name:    "Bonk",
			Image:   "https://dd.dexscreener.com/ds-data/tokens/solana/DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263.png",
			Color:   "#F7931A",
			Address: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		},
		{
			ID:      "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm",
			Symbol:  "WIF",
			Name:    "dogwifhat",
			Image:   "https://dd.dexscreener.com/ds-data/tokens/solana/EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm.png",
			Color:   "#C4A484",
			Address: "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm",
		},
		{
			ID:      "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr",
			Symbol:  "POPCAT",
			Name:    "Popcat",
			Image:   "https://dd.dexscreener.com/ds-data/tokens/solana/7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr.png",
			Color:   "#FFB6C1",
			Address: "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr",
		},
		{
			ID:      "jtojtomepa8beP8AuQc6eXt5FriJwfFMwQx2v2f9mCL",
			Symbol:  "JTO",
			Name:    "Jito",
			Image:   "https://dd.dexscreener.com/ds-data/tokens/solana/jtojtomepa8beP8AuQc6eXt5FriJwfFMwQx2v2f9mCL.png",
			Color:   "#8B5CF6",
			Address: "jtojtomepa8beP8AuQc6eXt5FriJwfFMwQx2v2f9mCL",
		},
		{
			ID:      "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN",
			Symbol:  "JUP",
			Name:    "Jupiter",
			Image:   "https://dd.dexscreener.com/ds-data/tokens/solana/JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN.png",
			Color:   "#4ECDC4",
			Address: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN",
		},
		{
			ID:      "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R",
			Symbol:  "RAY",
			Name:    "Raydium",
			Image:   "https://dd.dexscreener.com/ds-data/tokens/solana/4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R.png",
			Color:   "#FF6B6B",
			Address: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R",
		},
	}
	if count <= 0 || count >= len(all) {
		return all
	}
	return all[:count]
}
