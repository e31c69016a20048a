package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/tokenbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ON-CHAIN SAFETY PROVIDERS
// ═══════════════════════════════════════════════════════════════════════════════
//
// Several providers report contract/holder/tax facts with different coverage.
// They are consulted in order; the first successful response takes precedence.
// A provider that fails returns an error and the chain moves on — it never
// fabricates facts.
//
// ═══════════════════════════════════════════════════════════════════════════════

// FactsProvider returns contract-level facts for a token. Fields it cannot
// determine stay nil.
type FactsProvider interface {
	Name() string
	Facts(ctx context.Context, token string) (*types.TokenFacts, error)
}

// Chain consults providers in order, first success wins
type Chain struct {
	providers []FactsProvider
}

// NewChain creates a provider chain
func NewChain(providers ...FactsProvider) *Chain {
	return &Chain{providers: providers}
}

// Facts returns the first successful provider response. When every provider
// fails it returns an empty snapshot — the checklist degrades to "Unknown"
// warns rather than the scan failing.
func (c *Chain) Facts(ctx context.Context, token string) *types.TokenFacts {
	for _, p := range c.providers {
		facts, err := p.Facts(ctx, token)
		if err != nil {
			log.Debug().Err(err).Str("provider", p.Name()).Str("token", token).
				Msg("Safety provider failed, trying next")
			continue
		}
		return facts
	}
	log.Warn().Str("token", token).Msg("All safety providers failed")
	return &types.TokenFacts{Address: token}
}

// ─────────────────────────────────────────────────────────────────────────────
// honeypot.is
// ─────────────────────────────────────────────────────────────────────────────

type honeypotResponse struct {
	HoneypotResult struct {
		IsHoneypot bool `json:"isHoneypot"`
	} `json:"honeypotResult"`
	SimulationResult struct {
		BuyTax      float64 `json:"buyTax"`
		SellTax     float64 `json:"sellTax"`
		TransferTax float64 `json:"transferTax"`
	} `json:"simulationResult"`
	ContractCode struct {
		OpenSource     bool `json:"openSource"`
		RootOpenSource bool `json:"rootOpenSource"`
		IsProxy        bool `json:"isProxy"`
		HasProxyCalls  bool `json:"hasProxyCalls"`
	} `json:"contractCode"`
}

// HoneypotClient queries the honeypot.is simulation API
type HoneypotClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHoneypotClient creates a honeypot.is client
func NewHoneypotClient(baseURL string, timeout time.Duration) *HoneypotClient {
	return &HoneypotClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HoneypotClient) Name() string { return "honeypot.is" }

// Facts runs a buy/sell simulation against the token
func (c *HoneypotClient) Facts(ctx context.Context, token string) (*types.TokenFacts, error) {
	url := fmt.Sprintf("%s/v2/IsHoneypot?address=%s", c.baseURL, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("honeypot fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("honeypot status %d", resp.StatusCode)
	}

	var data honeypotResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("honeypot parse: %w", err)
	}

	facts := &types.TokenFacts{Address: token}
	facts.Honeypot = types.Bool(data.HoneypotResult.IsHoneypot)
	facts.BuyTaxPct = types.Float(data.SimulationResult.BuyTax)
	facts.SellTaxPct = types.Float(data.SimulationResult.SellTax)
	facts.Verified = types.Bool(data.ContractCode.OpenSource)
	if data.SimulationResult.TransferTax >= 100 {
		facts.TransfersDisabled = types.Bool(true)
	}
	return facts, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// GoPlus token security API
// ─────────────────────────────────────────────────────────────────────────────

// goplusToken uses string-encoded numbers and "0"/"1" flags throughout
type goplusToken struct {
	IsOpenSource         string `json:"is_open_source"`
	IsHoneypot           string `json:"is_honeypot"`
	IsMintable           string `json:"is_mintable"`
	CanTakeBackOwnership string `json:"can_take_back_ownership"`
	HiddenOwner          string `json:"hidden_owner"`
	TransferPausable     string `json:"transfer_pausable"`
	CannotSellAll        string `json:"cannot_sell_all"`
	OwnerAddress         string `json:"owner_address"`
	BuyTax               string `json:"buy_tax"`  // fraction, "0.05" = 5%
	SellTax              string `json:"sell_tax"` // fraction
	CreatorPercent       string `json:"creator_percent"`
	LPLockedPercent      string `json:"lp_locked_percent"`
	Holders              []struct {
		Percent string `json:"percent"`
	} `json:"holders"`
}

type goplusResponse struct {
	Code   int                    `json:"code"`
	Result map[string]goplusToken `json:"result"`
}

// GoPlusClient queries the GoPlus token security API
type GoPlusClient struct {
	baseURL    string
	chainID    string
	httpClient *http.Client
}

// NewGoPlusClient creates a GoPlus client for one chain
func NewGoPlusClient(baseURL, chainID string, timeout time.Duration) *GoPlusClient {
	return &GoPlusClient{
		baseURL:    baseURL,
		chainID:    chainID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *GoPlusClient) Name() string { return "goplus" }

// Facts maps the GoPlus security report onto a facts snapshot
func (c *GoPlusClient) Facts(ctx context.Context, token string) (*types.TokenFacts, error) {
	url := fmt.Sprintf("%s/api/v1/token_security/%s?contract_addresses=%s",
		c.baseURL, c.chainID, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("goplus fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("goplus status %d", resp.StatusCode)
	}

	var data goplusResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("goplus parse: %w", err)
	}

	var report *goplusToken
	for _, v := range data.Result {
		report = &v
		break
	}
	if report == nil {
		return nil, fmt.Errorf("goplus: no report for %s", token)
	}

	facts := &types.TokenFacts{Address: token}
	facts.Verified = flagPtr(report.IsOpenSource)
	facts.Honeypot = flagPtr(report.IsHoneypot)
	if mintable := flagPtr(report.IsMintable); mintable != nil {
		facts.MintDisabled = types.Bool(!*mintable)
	}
	facts.TransfersDisabled = flagPtr(report.TransferPausable)
	if backdoor := flagPtr(report.CanTakeBackOwnership); backdoor != nil && *backdoor {
		facts.HasBackdoor = types.Bool(true)
	} else if hidden := flagPtr(report.HiddenOwner); hidden != nil {
		facts.HasBackdoor = hidden
	}
	if report.OwnerAddress != "" {
		renounced := report.OwnerAddress == "0x0000000000000000000000000000000000000000"
		facts.OwnerRenounced = types.Bool(renounced)
	}
	if tax := fractionPctPtr(report.BuyTax); tax != nil {
		facts.BuyTaxPct = tax
	}
	if tax := fractionPctPtr(report.SellTax); tax != nil {
		facts.SellTaxPct = tax
	}
	if pct := floatPtr(report.CreatorPercent); pct != nil {
		v := *pct * 100 // GoPlus reports a fraction
		facts.CreatorHoldPct = types.Float(v)
	}
	if pct := floatPtr(report.LPLockedPercent); pct != nil {
		v := *pct * 100
		facts.LiquidityLockPct = types.Float(v)
	}
	if len(report.Holders) > 0 {
		if top := floatPtr(report.Holders[0].Percent); top != nil {
			facts.TopHolderPct = types.Float(*top * 100)
		}
		sum := 0.0
		counted := 0
		for i, h := range report.Holders {
			if i >= 10 {
				break
			}
			if p := floatPtr(h.Percent); p != nil {
				sum += *p * 100
				counted++
			}
		}
		if counted > 0 {
			facts.Top10HolderPct = types.Float(sum)
		}
	}

	return facts, nil
}

// flagPtr parses a "0"/"1" API flag; empty string means the datum is absent
func flagPtr(s string) *bool {
	switch s {
	case "1":
		return types.Bool(true)
	case "0":
		return types.Bool(false)
	default:
		return nil
	}
}

// floatPtr parses a string-encoded number; empty or malformed means absent
func floatPtr(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// fractionPctPtr converts a string fraction ("0.05") to percent (5.0)
func fractionPctPtr(s string) *float64 {
	f := floatPtr(s)
	if f == nil {
		return nil
	}
	v := *f * 100
	return &v
}
