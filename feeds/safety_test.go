package feeds

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/tokenbot/types"
)

type stubProvider struct {
	name  string
	facts *types.TokenFacts
	err   error
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Facts(context.Context, string) (*types.TokenFacts, error) {
	p.calls++
	return p.facts, p.err
}

func TestChain_FirstSuccessWins(t *testing.T) {
	first := &stubProvider{name: "a", facts: &types.TokenFacts{Address: "0xA", Honeypot: types.Bool(false)}}
	second := &stubProvider{name: "b", facts: &types.TokenFacts{Address: "0xA", Honeypot: types.Bool(true)}}

	chain := NewChain(first, second)
	facts := chain.Facts(context.Background(), "0xA")

	require.NotNil(t, facts.Honeypot)
	assert.False(t, *facts.Honeypot)
	assert.Zero(t, second.calls, "later providers are not consulted on success")
}

func TestChain_FallsThroughOnError(t *testing.T) {
	first := &stubProvider{name: "a", err: errors.New("rate limited")}
	second := &stubProvider{name: "b", facts: &types.TokenFacts{Address: "0xA", Verified: types.Bool(true)}}

	chain := NewChain(first, second)
	facts := chain.Facts(context.Background(), "0xA")

	require.NotNil(t, facts.Verified)
	assert.True(t, *facts.Verified)
	assert.Equal(t, 1, first.calls)
}

func TestChain_AllFailYieldsEmptySnapshot(t *testing.T) {
	chain := NewChain(&stubProvider{name: "a", err: errors.New("down")})

	facts := chain.Facts(context.Background(), "0xA")

	require.NotNil(t, facts, "the scan degrades to Unknown warns, it never crashes")
	assert.Equal(t, "0xA", facts.Address)
	assert.Nil(t, facts.Honeypot)
}

func TestMergeFacts(t *testing.T) {
	market := &types.TokenFacts{
		Address:    "0xA",
		Symbol:     "TKN",
		Liquidity:  types.Dec(5),
		AgeMinutes: types.Float(60),
		Buys5m:     types.Int(12),
		BuyTaxPct:  types.Float(1), // superseded by the safety provider
	}
	safetyFacts := &types.TokenFacts{
		Address:   "0xA",
		Honeypot:  types.Bool(false),
		Verified:  types.Bool(true),
		BuyTaxPct: types.Float(3),
	}

	merged := MergeFacts(market, safetyFacts)

	// Market-side fields survive
	assert.Equal(t, "TKN", merged.Symbol)
	require.NotNil(t, merged.Liquidity)
	require.NotNil(t, merged.AgeMinutes)
	assert.Equal(t, 12, *merged.Buys5m)

	// Safety-side fields overlay
	require.NotNil(t, merged.Honeypot)
	assert.True(t, *merged.Verified)
	assert.Equal(t, 3.0, *merged.BuyTaxPct)

	// Nil inputs pass the other side through
	assert.Same(t, market, MergeFacts(market, nil))
	assert.Same(t, safetyFacts, MergeFacts(nil, safetyFacts))
}
