package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// TokenFacts is an immutable snapshot of everything we know about a token at
// evaluation time. Pointer fields distinguish "provider had no data" from a real
// zero — a nil fact must surface as a WARN/Unknown check, never a silent pass.
type TokenFacts struct {
	Address string
	Symbol  string

	// Contract flags
	Verified          *bool
	MintDisabled      *bool
	OwnerRenounced    *bool
	HasBackdoor       *bool
	TransfersDisabled *bool
	Honeypot          *bool

	// Liquidity
	Liquidity        *decimal.Decimal // in base currency units (SOL/BNB/ETH)
	LiquidityLockPct *float64

	// Taxes
	BuyTaxPct  *float64
	SellTaxPct *float64

	// Holder distribution
	TopHolderPct   *float64
	Top10HolderPct *float64
	CreatorHoldPct *float64

	// Market activity
	AgeMinutes       *float64
	Buys5m           *int
	Sells5m          *int
	Buys1h           *int
	Sells1h          *int
	Volume24h        *decimal.Decimal
	PriceChange5mPct *float64
	PriceChange1hPct *float64
}

// CheckStatus is the outcome of a single safety check
type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
)

// ChecklistItem is one atomic safety test with its observed value
type ChecklistItem struct {
	Label  string
	Status CheckStatus
	Value  string // observed value, "Unknown" when the datum was unavailable
	Stage  int    // 1-13, informational grouping only
}

// Overall is the aggregate safety classification
type Overall string

const (
	OverallSafe    Overall = "SAFE"
	OverallCaution Overall = "CAUTION"
	OverallRisk    Overall = "RISK"
	OverallDanger  Overall = "DANGER"
)

// ListStatus says where the journal last filed a token
type ListStatus string

const (
	ListNone      ListStatus = ""
	ListWhitelist ListStatus = "whitelist"
	ListBlacklist ListStatus = "blacklist"
)

// SafetyVerdict aggregates a checklist into a classification
type SafetyVerdict struct {
	Score          int // count of passed checks
	Total          int // count of all checks
	Overall        Overall
	Recommendation string
	ListNote       ListStatus // journal annotation, informational only
}

// Position is one open paper trade. Owned by the account that opened it;
// mutated only under the engine lock.
type Position struct {
	ID            string
	Token         string
	Symbol        string
	EntryPrice    decimal.Decimal
	Size          decimal.Decimal // remaining stake in base currency
	InitialSize   decimal.Decimal
	StopPrice     decimal.Decimal // moves to entry at the breakeven tier
	HighWaterMark decimal.Decimal
	Realized      decimal.Decimal // proceeds credited back by partial exits
	FiredTags     map[string]bool // ladder tiers fire at most once each
	VerdictAtOpen Overall
	Mode          Mode // pool the stake was debited from; exits settle there
	OpenedAt      time.Time
}

// PnLPct returns unrealized PnL from entry at the given price, in percent
func (p *Position) PnLPct(price decimal.Decimal) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	return price.Sub(p.EntryPrice).Div(p.EntryPrice).Mul(decimal.NewFromInt(100))
}

// TradeRecord is the append-only outcome of one closed trade
type TradeRecord struct {
	ID            string
	Token         string
	Symbol        string
	EntryPrice    decimal.Decimal
	ExitPrice     decimal.Decimal
	PnLPct        decimal.Decimal
	Win           bool
	ExitReason    string
	Lesson        string
	VerdictAtOpen Overall
	Timestamp     time.Time
}

// Mode is the account trading mode
type Mode string

const (
	ModePaper Mode = "paper"
	ModeReal  Mode = "real"
)

// RejectCode classifies why an entry was refused. These are expected,
// structured outcomes — not errors (and not provider failures).
type RejectCode string

const (
	RejectNotReady            RejectCode = "not_ready"
	RejectDailyLossLimit      RejectCode = "daily_loss_limit"
	RejectConsecutiveLosses   RejectCode = "consecutive_losses"
	RejectMaxPositions        RejectCode = "max_positions"
	RejectInsufficientBalance RejectCode = "insufficient_balance"
	RejectDuplicatePosition   RejectCode = "duplicate_position"
)

// Rejection is the structured result of a refused entry
type Rejection struct {
	Code   RejectCode
	Reason string
}

func (r *Rejection) String() string { return string(r.Code) + ": " + r.Reason }

// StatsSnapshot is the account state exposed to callers
type StatsSnapshot struct {
	Balance           decimal.Decimal
	RealBalance       decimal.Decimal
	Mode              Mode
	TradeCount        int
	WinCount          int
	WinRate           decimal.Decimal // percent
	DailyLoss         decimal.Decimal
	ConsecutiveLosses int
	OpenPositions     int
}

// Bool, Float, Int, Dec build fact pointers inline (snapshot builders, tests)
func Bool(v bool) *bool { return &v }

func Float(v float64) *float64 { return &v }

func Int(v int) *int { return &v }

func Dec(v float64) *decimal.Decimal { d := decimal.NewFromFloat(v); return &d }
