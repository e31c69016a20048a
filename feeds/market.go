package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tokenbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MARKET DATA - Dexscreener pair feed
// ═══════════════════════════════════════════════════════════════════════════════
//
// Contract: zero/empty on failure, never an error surfaced to the monitor —
// a failed fetch means "skip this cycle", not a crashed loop.
//
// ═══════════════════════════════════════════════════════════════════════════════

// MarketData supplies live price, liquidity and volume for a token
type MarketData interface {
	// Price returns the current price, or zero when unavailable
	Price(ctx context.Context, token string) decimal.Decimal
	// MarketFacts fills the market-side fields of a facts snapshot.
	// Missing data stays nil.
	MarketFacts(ctx context.Context, token string) *types.TokenFacts
}

// dexPair mirrors one pair in the Dexscreener payload
type dexPair struct {
	PriceNative string `json:"priceNative"`
	Liquidity   struct {
		Base float64 `json:"base"`
		USD  float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Txns struct {
		M5 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"m5"`
		H1 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h1"`
	} `json:"txns"`
	PriceChange struct {
		M5 float64 `json:"m5"`
		H1 float64 `json:"h1"`
	} `json:"priceChange"`
	PairCreatedAt int64 `json:"pairCreatedAt"` // unix millis
	BaseToken     struct {
		Symbol string `json:"symbol"`
	} `json:"baseToken"`
}

type dexPairResponse struct {
	Pairs []dexPair `json:"pairs"`
}

// DexClient fetches pair data from the Dexscreener API
type DexClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDexClient creates a Dexscreener client with a bounded timeout
func NewDexClient(baseURL string, timeout time.Duration) *DexClient {
	return &DexClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Price returns the current pair price, zero on any failure
func (c *DexClient) Price(ctx context.Context, token string) decimal.Decimal {
	pair := c.fetchPair(ctx, token)
	if pair == nil {
		return decimal.Zero
	}
	price, err := decimal.NewFromString(pair.PriceNative)
	if err != nil {
		log.Debug().Str("token", token).Str("raw", pair.PriceNative).Msg("Bad price payload")
		return decimal.Zero
	}
	return price
}

// MarketFacts fills the market-side fields of a facts snapshot
func (c *DexClient) MarketFacts(ctx context.Context, token string) *types.TokenFacts {
	facts := &types.TokenFacts{Address: token}

	pair := c.fetchPair(ctx, token)
	if pair == nil {
		return facts // all fields stay nil → checklist surfaces "Unknown"
	}

	facts.Symbol = pair.BaseToken.Symbol
	facts.Liquidity = types.Dec(pair.Liquidity.Base)
	facts.Volume24h = types.Dec(pair.Volume.H24)
	facts.Buys5m = types.Int(pair.Txns.M5.Buys)
	facts.Sells5m = types.Int(pair.Txns.M5.Sells)
	facts.Buys1h = types.Int(pair.Txns.H1.Buys)
	facts.Sells1h = types.Int(pair.Txns.H1.Sells)
	facts.PriceChange5mPct = types.Float(pair.PriceChange.M5)
	facts.PriceChange1hPct = types.Float(pair.PriceChange.H1)

	if pair.PairCreatedAt > 0 {
		age := time.Since(time.UnixMilli(pair.PairCreatedAt)).Minutes()
		facts.AgeMinutes = types.Float(age)
	}

	return facts
}

// fetchPair returns the first (deepest) pair for a token, nil on failure
func (c *DexClient) fetchPair(ctx context.Context, token string) *dexPair {
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("token", token).Msg("Dexscreener fetch failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debug().Int("status", resp.StatusCode).Str("token", token).Msg("Dexscreener non-200")
		return nil
	}

	var data dexPairResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		log.Debug().Err(err).Str("token", token).Msg("Dexscreener parse failed")
		return nil
	}
	if len(data.Pairs) == 0 {
		return nil
	}
	return &data.Pairs[0]
}
