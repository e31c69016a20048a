package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tokenbot/internal/clock"
	"github.com/web3guy0/tokenbot/internal/config"
	"github.com/web3guy0/tokenbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MODE GATE - Paper → real graduation
// ═══════════════════════════════════════════════════════════════════════════════
//
// Promotion needs a proven record: enough trades, a high win rate, and a day
// that hasn't hit the loss ceiling. Demotion back to paper is immediate on
// either circuit breaker, independent of the record.
//
// Promotion is gradual: successive weeks unlock 25/50/75/100% of real capital.
// The exposure value is read by the sizing component, not re-derived there.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ModeGate decides when the account may trade real capital
type ModeGate struct {
	mu sync.Mutex

	cfg config.ModeGateRules
	clk clock.Clock

	promotedAt time.Time // zero while in paper mode
}

// NewModeGate creates a mode gate
func NewModeGate(cfg config.ModeGateRules, clk clock.Clock) *ModeGate {
	return &ModeGate{cfg: cfg, clk: clk}
}

// Evaluate decides the account mode from current statistics. Returns the
// resulting mode and whether it changed.
func (g *ModeGate) Evaluate(current types.Mode, stats types.StatsSnapshot, dailyLimitHit, breakerTripped bool) (types.Mode, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Demotion is unconditional and immediate
	if current == types.ModeReal && (dailyLimitHit || breakerTripped) {
		g.promotedAt = time.Time{}
		log.Warn().
			Bool("daily_limit", dailyLimitHit).
			Bool("breaker", breakerTripped).
			Msg("⬇️ Demoted to paper trading")
		return types.ModePaper, true
	}

	if current == types.ModePaper {
		if stats.TradeCount >= g.cfg.MinTrades &&
			stats.WinRate.GreaterThanOrEqual(g.cfg.MinWinRatePct) &&
			!dailyLimitHit {
			g.promotedAt = g.clk.Now()
			log.Info().
				Int("trades", stats.TradeCount).
				Str("win_rate", stats.WinRate.StringFixed(1)+"%").
				Msg("⬆️ Promoted to real trading")
			return types.ModeReal, true
		}
	}

	return current, false
}

// Exposure returns the staged real-capital exposure percentage for the
// current week since promotion. 100% while in paper mode (paper stakes are
// not scaled down).
func (g *ModeGate) Exposure() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.promotedAt.IsZero() || len(g.cfg.ExposureSteps) == 0 {
		return decimal.NewFromInt(100)
	}

	weeks := int(g.clk.Now().Sub(g.promotedAt).Hours() / (24 * 7))
	if weeks >= len(g.cfg.ExposureSteps) {
		weeks = len(g.cfg.ExposureSteps) - 1
	}
	return g.cfg.ExposureSteps[weeks]
}
