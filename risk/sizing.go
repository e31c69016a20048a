package risk

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tokenbot/internal/config"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION SIZING - Constant dollar risk per trade
// ═══════════════════════════════════════════════════════════════════════════════
//
// Formula: stake = min(max_trade_fraction * balance,
//                      risk_fraction * balance / (stop_loss_pct / 100))
//
// This keeps the amount lost at the stop constant regardless of stop width:
// - Wider stop  → smaller stake
// - Tighter stop → larger stake, capped by the single-trade fraction
//
// ═══════════════════════════════════════════════════════════════════════════════

// Sizer computes a bounded stake for an entry
type Sizer struct {
	riskFraction decimal.Decimal
	maxFraction  decimal.Decimal
	minStake     decimal.Decimal
}

// NewSizer creates a position sizer
func NewSizer(cfg config.RiskLimits) *Sizer {
	return &Sizer{
		riskFraction: cfg.RiskFraction,
		maxFraction:  cfg.MaxTradeFraction,
		minStake:     cfg.MinStake,
	}
}

// Stake computes the stake for a balance and stop width
func (s *Sizer) Stake(balance decimal.Decimal, stopLossPct float64) decimal.Decimal {
	if balance.LessThanOrEqual(decimal.Zero) || stopLossPct <= 0 {
		return decimal.Zero
	}

	stopFraction := decimal.NewFromFloat(stopLossPct / 100)
	riskBased := s.riskFraction.Mul(balance).Div(stopFraction)
	capBased := s.maxFraction.Mul(balance)

	stake := riskBased
	if capBased.LessThan(stake) {
		stake = capBased
	}

	// Floor at the minimum tradable stake
	if stake.LessThan(s.minStake) {
		stake = s.minStake
	}

	// Never stake more than the balance holds
	if stake.GreaterThan(balance) {
		stake = balance
	}

	return stake
}

// RiskAmount returns the base-currency amount lost if the stop fires
func (s *Sizer) RiskAmount(stake decimal.Decimal, stopLossPct float64) decimal.Decimal {
	return stake.Mul(decimal.NewFromFloat(stopLossPct / 100))
}
