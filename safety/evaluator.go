package safety

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tokenbot/internal/config"
	"github.com/web3guy0/tokenbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SAFETY EVALUATOR - Token rug/honeypot checklist
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow:
//   TokenFacts → 13-stage checklist → critical override → percentage bands
//
// The critical override runs FIRST: a token with one fatal flaw can never
// score SAFE off cosmetic passes. Unknown data is a WARN, never a pass.
//
// ═══════════════════════════════════════════════════════════════════════════════

const unknown = "Unknown"

// ListLookup annotates verdicts with prior journal encounters. Read-only:
// it never alters the verdict itself.
type ListLookup interface {
	Lookup(token string) types.ListStatus
}

// Evaluator scores a token's safety from a facts snapshot. Pure function of
// (facts, thresholds) plus the read-only list lookup.
type Evaluator struct {
	cfg   config.SafetyThresholds
	lists ListLookup
}

// NewEvaluator creates a safety evaluator
func NewEvaluator(cfg config.SafetyThresholds, lists ListLookup) *Evaluator {
	return &Evaluator{cfg: cfg, lists: lists}
}

// Evaluate runs the full checklist and derives the verdict
func (e *Evaluator) Evaluate(facts *types.TokenFacts) ([]types.ChecklistItem, types.SafetyVerdict) {
	items := e.checklist(facts)

	score := 0
	fails := 0
	for _, it := range items {
		switch it.Status {
		case types.CheckPass:
			score++
		case types.CheckFail:
			fails++
		}
	}

	verdict := types.SafetyVerdict{
		Score: score,
		Total: len(items),
	}

	// Critical override first, then percentage bands. Order matters.
	if critical, reason := e.criticalFailure(facts); critical {
		verdict.Overall = types.OverallDanger
		verdict.Recommendation = fmt.Sprintf("%s — do not buy, do not trade", reason)
	} else {
		pct := float64(score) / float64(len(items)) * 100
		switch {
		case pct < e.cfg.RiskPctBand || fails >= e.cfg.RiskFailCount:
			verdict.Overall = types.OverallRisk
			verdict.Recommendation = "Too many failed checks — avoid"
		case pct >= e.cfg.SafePctBand:
			verdict.Overall = types.OverallSafe
			verdict.Recommendation = "Checks look clean — size per risk rules"
		default:
			verdict.Overall = types.OverallCaution
			verdict.Recommendation = "Mixed signals — small size, tight stop"
		}
	}

	if e.lists != nil {
		verdict.ListNote = e.lists.Lookup(facts.Address)
	}

	log.Debug().
		Str("token", facts.Address).
		Int("score", verdict.Score).
		Int("total", verdict.Total).
		Str("verdict", string(verdict.Overall)).
		Msg("🔍 Token evaluated")

	return items, verdict
}

// criticalFailure checks the fixed subset that forces DANGER regardless of
// how many cosmetic checks passed.
func (e *Evaluator) criticalFailure(f *types.TokenFacts) (bool, string) {
	if f.Honeypot != nil && *f.Honeypot {
		return true, "Honeypot detected"
	}
	if f.BuyTaxPct != nil && *f.BuyTaxPct > e.cfg.MaxTaxPct {
		return true, fmt.Sprintf("Buy tax %.1f%% exceeds %.0f%%", *f.BuyTaxPct, e.cfg.MaxTaxPct)
	}
	if f.SellTaxPct != nil && *f.SellTaxPct > e.cfg.MaxTaxPct {
		return true, fmt.Sprintf("Sell tax %.1f%% exceeds %.0f%%", *f.SellTaxPct, e.cfg.MaxTaxPct)
	}
	if f.HasBackdoor != nil && *f.HasBackdoor {
		return true, "Contract backdoor present"
	}
	if f.TransfersDisabled != nil && *f.TransfersDisabled {
		return true, "Transfers disabled"
	}
	if f.MintDisabled != nil && !*f.MintDisabled {
		return true, "Mint authority still active"
	}
	return false, ""
}

// checklist builds the 13-stage evidence trail
func (e *Evaluator) checklist(f *types.TokenFacts) []types.ChecklistItem {
	var items []types.ChecklistItem

	// Stage 1-6: contract flags
	items = append(items,
		boolCheck("Contract verified", 1, f.Verified, true),
		boolCheck("Mint disabled", 2, f.MintDisabled, true),
		boolCheck("Ownership renounced", 3, f.OwnerRenounced, true),
		boolCheck("No backdoor functions", 4, f.HasBackdoor, false),
		boolCheck("Transfers enabled", 5, f.TransfersDisabled, false),
		boolCheck("Not a honeypot", 6, f.Honeypot, false),
	)

	// Stage 7: liquidity depth and lock
	items = append(items, e.liquidityCheck(f.Liquidity))
	items = append(items, bandCheckHighGood("Liquidity locked", 7, f.LiquidityLockPct,
		e.cfg.LockPctPass, e.cfg.LockPctWarn))

	// Stage 8: taxes
	items = append(items, e.taxCheck("Buy tax", 8, f.BuyTaxPct))
	items = append(items, e.taxCheck("Sell tax", 8, f.SellTaxPct))

	// Stage 9-11: holder distribution
	items = append(items, bandCheckLowGood("Top holder concentration", 9, f.TopHolderPct,
		e.cfg.TopHolderPass, e.cfg.TopHolderWarn))
	items = append(items, bandCheckLowGood("Top-10 holder concentration", 10, f.Top10HolderPct,
		e.cfg.Top10Pass, e.cfg.Top10Warn))
	items = append(items, bandCheckLowGood("Creator holding", 11, f.CreatorHoldPct,
		e.cfg.CreatorPass, e.cfg.CreatorWarn))

	// Stage 12: age and volume
	items = append(items, e.ageCheck(f.AgeMinutes))
	items = append(items, e.volumeCheck(f.Volume24h))

	// Stage 13: buy pressure
	items = append(items, e.pressureCheck(f.Buys5m, f.Sells5m))

	return items
}

func (e *Evaluator) liquidityCheck(liq *decimal.Decimal) types.ChecklistItem {
	item := types.ChecklistItem{Label: "Liquidity depth", Stage: 7}
	if liq == nil {
		item.Status = types.CheckWarn
		item.Value = unknown
		return item
	}
	item.Value = liq.StringFixed(2)
	switch {
	case liq.GreaterThan(e.cfg.LiquidityPass):
		item.Status = types.CheckPass
	case liq.GreaterThanOrEqual(e.cfg.LiquidityWarn):
		item.Status = types.CheckWarn
	default:
		item.Status = types.CheckFail
	}
	return item
}

func (e *Evaluator) taxCheck(label string, stage int, tax *float64) types.ChecklistItem {
	item := types.ChecklistItem{Label: label, Stage: stage}
	if tax == nil {
		item.Status = types.CheckWarn
		item.Value = unknown
		return item
	}
	item.Value = fmt.Sprintf("%.1f%%", *tax)
	if *tax <= e.cfg.MaxTaxPct {
		item.Status = types.CheckPass
	} else {
		item.Status = types.CheckFail
	}
	return item
}

func (e *Evaluator) ageCheck(age *float64) types.ChecklistItem {
	item := types.ChecklistItem{Label: "Token age", Stage: 12}
	if age == nil {
		item.Status = types.CheckWarn
		item.Value = unknown
		return item
	}
	item.Value = fmt.Sprintf("%.0f min", *age)
	if *age >= e.cfg.MinAgeMinutes {
		item.Status = types.CheckPass
	} else {
		item.Status = types.CheckWarn // too fresh to judge, not unsafe
	}
	return item
}

func (e *Evaluator) volumeCheck(vol *decimal.Decimal) types.ChecklistItem {
	item := types.ChecklistItem{Label: "24h volume", Stage: 12}
	if vol == nil {
		item.Status = types.CheckWarn
		item.Value = unknown
		return item
	}
	item.Value = vol.StringFixed(2)
	if vol.GreaterThanOrEqual(e.cfg.MinVolume24h) {
		item.Status = types.CheckPass
	} else {
		item.Status = types.CheckWarn
	}
	return item
}

func (e *Evaluator) pressureCheck(buys, sells *int) types.ChecklistItem {
	item := types.ChecklistItem{Label: "Buy pressure (5m)", Stage: 13}
	if buys == nil || sells == nil {
		item.Status = types.CheckWarn
		item.Value = unknown
		return item
	}
	item.Value = fmt.Sprintf("%d buys / %d sells", *buys, *sells)
	if *buys > *sells {
		item.Status = types.CheckPass
	} else {
		item.Status = types.CheckWarn
	}
	return item
}

// boolCheck maps a boolean fact to pass/fail; wantTrue flips polarity.
// nil is always a warn with the literal value "Unknown".
func boolCheck(label string, stage int, v *bool, wantTrue bool) types.ChecklistItem {
	item := types.ChecklistItem{Label: label, Stage: stage}
	if v == nil {
		item.Status = types.CheckWarn
		item.Value = unknown
		return item
	}
	item.Value = fmt.Sprintf("%t", *v)
	if *v == wantTrue {
		item.Status = types.CheckPass
	} else {
		item.Status = types.CheckFail
	}
	return item
}

// bandCheckLowGood: lower observed value is safer (holder concentration)
func bandCheckLowGood(label string, stage int, v *float64, passBelow, warnBelow float64) types.ChecklistItem {
	item := types.ChecklistItem{Label: label, Stage: stage}
	if v == nil {
		item.Status = types.CheckWarn
		item.Value = unknown
		return item
	}
	item.Value = fmt.Sprintf("%.1f%%", *v)
	switch {
	case *v < passBelow:
		item.Status = types.CheckPass
	case *v < warnBelow:
		item.Status = types.CheckWarn
	default:
		item.Status = types.CheckFail
	}
	return item
}

// bandCheckHighGood: higher observed value is safer (liquidity lock ratio)
func bandCheckHighGood(label string, stage int, v *float64, passAbove, warnAbove float64) types.ChecklistItem {
	item := types.ChecklistItem{Label: label, Stage: stage}
	if v == nil {
		item.Status = types.CheckWarn
		item.Value = unknown
		return item
	}
	item.Value = fmt.Sprintf("%.1f%%", *v)
	switch {
	case *v >= passAbove:
		item.Status = types.CheckPass
	case *v >= warnAbove:
		item.Status = types.CheckWarn
	default:
		item.Status = types.CheckFail
	}
	return item
}
