package monitor

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tokenbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION MONITOR - Exit ladder state machine
// ═══════════════════════════════════════════════════════════════════════════════
//
// Per position: OPEN → (PARTIAL_EXIT)* → CLOSED
//
// Evaluation order each cycle:
//   1. High-water-mark update (before any threshold check)
//   2. Stop-loss            → full close
//   3. Dump-from-high guard → 90% full close, 70% close 75%, 50% close 50%
//   4. Profit ladder        → +20% breakeven stop, +30/+50/+100% close 25% of
//                             remaining each, +200% close all but a 10% runner
//
// Each named tier fires at most once per position lifetime (fired-tag set).
// Within one cycle every applicable, still-unfired tier fires — a single price
// crossing several thresholds triggers each of them once. Any full close ends
// evaluation immediately; a closed position is never re-evaluated.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Tags for ladder tiers. Each appears at most once in a position's fired set.
const (
	TagStopLoss  = "stop_loss"
	TagDump90    = "dump_90"
	TagDump70    = "dump_70"
	TagDump50    = "dump_50"
	TagBreakeven = "breakeven"
	TagTP30      = "tp_30"
	TagTP50      = "tp_50"
	TagTP100     = "tp_100"
	TagTP200     = "tp_200_runner"
)

// Action is one exit (or stop adjustment) the ladder requests
type Action struct {
	Tag                 string
	CloseFraction       decimal.Decimal // fraction of remaining size to close
	FullClose           bool
	MoveStopToBreakeven bool
}

// DumpTier closes part of a position on a drawdown from the high-water-mark
type DumpTier struct {
	Tag           string
	DropPct       float64 // drawdown from high, percent
	CloseFraction decimal.Decimal
	FullClose     bool
}

// ProfitTier acts when unrealized PnL from entry reaches a gain threshold
type ProfitTier struct {
	Tag           string
	GainPct       float64
	CloseFraction decimal.Decimal
	Breakeven     bool // move the stop to cost basis instead of closing
}

// Config is the full exit ladder
type Config struct {
	DumpTiers   []DumpTier   // descending by DropPct
	ProfitTiers []ProfitTier // ascending by GainPct
}

// DefaultConfig returns the standard ladder
func DefaultConfig() Config {
	quarter := decimal.NewFromFloat(0.25)
	return Config{
		DumpTiers: []DumpTier{
			{Tag: TagDump90, DropPct: 90, CloseFraction: decimal.NewFromInt(1), FullClose: true},
			{Tag: TagDump70, DropPct: 70, CloseFraction: decimal.NewFromFloat(0.75)},
			{Tag: TagDump50, DropPct: 50, CloseFraction: decimal.NewFromFloat(0.50)},
		},
		ProfitTiers: []ProfitTier{
			{Tag: TagBreakeven, GainPct: 20, Breakeven: true},
			{Tag: TagTP30, GainPct: 30, CloseFraction: quarter},
			{Tag: TagTP50, GainPct: 50, CloseFraction: quarter},
			{Tag: TagTP100, GainPct: 100, CloseFraction: quarter},
			{Tag: TagTP200, GainPct: 200, CloseFraction: decimal.NewFromFloat(0.90)},
		},
	}
}

// Monitor evaluates positions against the ladder. It mutates only the
// position's high-water-mark, stop price, and fired-tag set; applying the
// returned actions (and the balance math) is the engine's job, under its lock.
type Monitor struct {
	cfg Config
}

// New creates a monitor with the given ladder
func New(cfg Config) *Monitor {
	return &Monitor{cfg: cfg}
}

// Evaluate advances one position one cycle at the given price
func (m *Monitor) Evaluate(pos *types.Position, price decimal.Decimal) []Action {
	if price.LessThanOrEqual(decimal.Zero) {
		return nil // no data this cycle, leave state unchanged
	}

	// High-water-mark first, so a rise-and-reverse within one cycle is captured
	if price.GreaterThan(pos.HighWaterMark) {
		pos.HighWaterMark = price
	}

	var actions []Action

	// Stop-loss: full close, ends evaluation
	if price.LessThanOrEqual(pos.StopPrice) && !pos.FiredTags[TagStopLoss] {
		pos.FiredTags[TagStopLoss] = true
		return append(actions, Action{
			Tag:           TagStopLoss,
			CloseFraction: decimal.NewFromInt(1),
			FullClose:     true,
		})
	}

	// Dump-from-high guard
	drawdown := m.drawdownPct(pos, price)
	for _, tier := range m.cfg.DumpTiers {
		if pos.FiredTags[tier.Tag] || drawdown.LessThan(decimal.NewFromFloat(tier.DropPct)) {
			continue
		}
		pos.FiredTags[tier.Tag] = true
		actions = append(actions, Action{
			Tag:           tier.Tag,
			CloseFraction: tier.CloseFraction,
			FullClose:     tier.FullClose,
		})
		if tier.FullClose {
			return actions
		}
	}

	// Profit ladder
	pnl := pos.PnLPct(price)
	for _, tier := range m.cfg.ProfitTiers {
		if pos.FiredTags[tier.Tag] || pnl.LessThan(decimal.NewFromFloat(tier.GainPct)) {
			continue
		}
		pos.FiredTags[tier.Tag] = true
		if tier.Breakeven {
			pos.StopPrice = pos.EntryPrice
			actions = append(actions, Action{Tag: tier.Tag, MoveStopToBreakeven: true})
			continue
		}
		actions = append(actions, Action{
			Tag:           tier.Tag,
			CloseFraction: tier.CloseFraction,
		})
	}

	return actions
}

// drawdownPct is the percent fall from the position's high-water-mark
func (m *Monitor) drawdownPct(pos *types.Position, price decimal.Decimal) decimal.Decimal {
	if pos.HighWaterMark.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return pos.HighWaterMark.Sub(price).Div(pos.HighWaterMark).Mul(decimal.NewFromInt(100))
}
