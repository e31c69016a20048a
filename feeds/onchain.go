package feeds

import (
	"context"
	"fmt"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/tokenbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ON-CHAIN FACTS - Direct RPC fallback provider
// ═══════════════════════════════════════════════════════════════════════════════
//
// Lowest-coverage provider in the chain: reads what the contract itself will
// answer (code presence, owner(), paused()) without any third-party index.
// Everything it cannot determine stays nil.
//
// ═══════════════════════════════════════════════════════════════════════════════

var (
	zeroAddress = common.Address{}

	// 4-byte selectors, keccak("owner()") / keccak("paused()")
	ownerSelector  = []byte{0x8d, 0xa5, 0xcb, 0x5b}
	pausedSelector = []byte{0x5c, 0x97, 0x5a, 0xbb}
)

// OnChainClient reads token facts straight from an EVM RPC endpoint
type OnChainClient struct {
	client *ethclient.Client
}

// NewOnChainClient dials the RPC endpoint
func NewOnChainClient(ctx context.Context, rpcURL string) (*OnChainClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial eth rpc: %w", err)
	}
	return &OnChainClient{client: client}, nil
}

func (c *OnChainClient) Name() string { return "onchain" }

// Facts inspects the contract directly
func (c *OnChainClient) Facts(ctx context.Context, token string) (*types.TokenFacts, error) {
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("not an EVM address: %s", token)
	}
	addr := common.HexToAddress(token)

	code, err := c.client.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("code fetch: %w", err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("no contract at %s", token)
	}

	facts := &types.TokenFacts{Address: token}

	// owner() — zero address means ownership was renounced
	if res, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: ownerSelector}, nil); err == nil && len(res) == 32 {
		owner := common.BytesToAddress(res[12:])
		facts.OwnerRenounced = types.Bool(owner == zeroAddress)
	}

	// paused() — a paused token cannot be transferred
	if res, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: pausedSelector}, nil); err == nil && len(res) == 32 {
		paused := res[31] == 1
		facts.TransfersDisabled = types.Bool(paused)
	}

	log.Debug().Str("token", token).Msg("On-chain facts read")
	return facts, nil
}

// Close releases the RPC connection
func (c *OnChainClient) Close() {
	c.client.Close()
}

// MergeFacts overlays safety-provider facts onto a market snapshot. Market
// data wins for market fields; safety data wins for contract fields. Nil
// stays nil so unknowns keep surfacing as warns.
func MergeFacts(market, safety *types.TokenFacts) *types.TokenFacts {
	if market == nil {
		return safety
	}
	if safety == nil {
		return market
	}

	merged := *market
	merged.Verified = safety.Verified
	merged.MintDisabled = safety.MintDisabled
	merged.OwnerRenounced = safety.OwnerRenounced
	merged.HasBackdoor = safety.HasBackdoor
	merged.TransfersDisabled = safety.TransfersDisabled
	merged.Honeypot = safety.Honeypot
	if safety.BuyTaxPct != nil {
		merged.BuyTaxPct = safety.BuyTaxPct
	}
	if safety.SellTaxPct != nil {
		merged.SellTaxPct = safety.SellTaxPct
	}
	if safety.TopHolderPct != nil {
		merged.TopHolderPct = safety.TopHolderPct
	}
	if safety.Top10HolderPct != nil {
		merged.Top10HolderPct = safety.Top10HolderPct
	}
	if safety.CreatorHoldPct != nil {
		merged.CreatorHoldPct = safety.CreatorHoldPct
	}
	if safety.LiquidityLockPct != nil {
		merged.LiquidityLockPct = safety.LiquidityLockPct
	}
	return &merged
}
