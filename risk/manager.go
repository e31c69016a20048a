package risk

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tokenbot/internal/clock"
	"github.com/web3guy0/tokenbot/internal/config"
	"github.com/web3guy0/tokenbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RISK MANAGER - Gatekeeper for all entries
// ═══════════════════════════════════════════════════════════════════════════════
//
// Responsibilities:
// 1. Enforce the daily-loss ceiling (hard stop until the day rolls over)
// 2. Enforce the consecutive-loss circuit breaker (hard stop until cleared)
// 3. Enforce max open positions
// 4. Size stakes (constant dollar risk, see sizing.go)
//
// The two circuit breakers are independent: either alone blocks entries.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Manager gates entries on account-level risk limits
type Manager struct {
	mu sync.Mutex

	cfg     config.RiskLimits
	sizer   *Sizer
	breaker *Breaker
	clk     clock.Clock

	dailyLoss    decimal.Decimal // accumulated loss today, positive number
	lastResetDay string          // calendar date of the last daily reset

	exposurePct decimal.Decimal // staged real-capital exposure, set by the mode gate
}

// NewManager creates a risk manager
func NewManager(cfg config.RiskLimits, clk clock.Clock) *Manager {
	mgr := &Manager{
		cfg:         cfg,
		sizer:       NewSizer(cfg),
		breaker:     NewBreaker(cfg.MaxConsecLosses),
		clk:         clk,
		dailyLoss:   decimal.Zero,
		exposurePct: decimal.NewFromInt(100),
	}

	log.Info().
		Str("risk_fraction", cfg.RiskFraction.String()).
		Str("max_trade_fraction", cfg.MaxTradeFraction.String()).
		Str("daily_loss_limit", cfg.DailyLossLimitPct.String()+"%").
		Int("max_positions", cfg.MaxOpenPositions).
		Int("max_consec_losses", cfg.MaxConsecLosses).
		Msg("🛡️ Risk manager initialized")

	return mgr
}

// CanOpen returns nil when a new entry is allowed, or a structured rejection.
// Both circuit breakers are checked independently.
func (m *Manager) CanOpen(balance decimal.Decimal, openCount int) *types.Rejection {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkDayReset()

	// 1. Daily loss ceiling — hard stop until the daily counter resets
	if m.dailyLossPctLocked(balance).GreaterThanOrEqual(m.cfg.DailyLossLimitPct) {
		return &types.Rejection{
			Code:   types.RejectDailyLossLimit,
			Reason: fmt.Sprintf("daily loss limit reached (%s%%)", m.cfg.DailyLossLimitPct),
		}
	}

	// 2. Consecutive-loss breaker — stays tripped until manually cleared
	if m.breaker.Tripped() {
		return &types.Rejection{
			Code:   types.RejectConsecutiveLosses,
			Reason: fmt.Sprintf("%d consecutive losses", m.breaker.Losses()),
		}
	}

	// 3. Max open positions
	if openCount >= m.cfg.MaxOpenPositions {
		return &types.Rejection{
			Code:   types.RejectMaxPositions,
			Reason: fmt.Sprintf("%d positions open (max %d)", openCount, m.cfg.MaxOpenPositions),
		}
	}

	// 4. Balance must cover the minimum stake
	if balance.LessThan(m.cfg.MinStake) {
		return &types.Rejection{
			Code:   types.RejectInsufficientBalance,
			Reason: fmt.Sprintf("balance %s below minimum stake %s", balance, m.cfg.MinStake),
		}
	}

	return nil
}

// Stake computes the stake for an entry, scaled by the staged exposure
func (m *Manager) Stake(balance decimal.Decimal) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	stake := m.sizer.Stake(balance, m.cfg.StopLossPct)
	if m.exposurePct.LessThan(decimal.NewFromInt(100)) {
		stake = stake.Mul(m.exposurePct).Div(decimal.NewFromInt(100))
	}
	return stake
}

// StopLossPct returns the configured stop width for new positions
func (m *Manager) StopLossPct() float64 { return m.cfg.StopLossPct }

// RecordClose feeds a realized PnL into the daily accumulator and the
// consecutive-loss breaker.
func (m *Manager) RecordClose(pnl decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkDayReset()

	if pnl.IsNegative() {
		m.dailyLoss = m.dailyLoss.Add(pnl.Abs())
		m.breaker.RecordLoss()
	} else {
		m.breaker.RecordWin()
	}

	log.Info().
		Str("pnl", pnl.StringFixed(6)).
		Str("daily_loss", m.dailyLoss.StringFixed(6)).
		Int("consecutive_losses", m.breaker.Losses()).
		Msg("📊 Trade recorded")
}

// DailyLoss returns today's accumulated loss
func (m *Manager) DailyLoss() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkDayReset()
	return m.dailyLoss
}

// DailyLimitHit reports whether the daily ceiling blocks entries right now
func (m *Manager) DailyLimitHit(balance decimal.Decimal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkDayReset()
	return m.dailyLossPctLocked(balance).GreaterThanOrEqual(m.cfg.DailyLossLimitPct)
}

// ConsecutiveLosses returns the current losing streak
func (m *Manager) ConsecutiveLosses() int { return m.breaker.Losses() }

// BreakerTripped returns the consecutive-loss breaker state
func (m *Manager) BreakerTripped() bool { return m.breaker.Tripped() }

// ClearBreaker manually resets the consecutive-loss breaker
func (m *Manager) ClearBreaker() { m.breaker.Clear() }

// SetExposure applies the mode gate's staged real-capital exposure (percent)
func (m *Manager) SetExposure(pct decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exposurePct = pct
	log.Info().Str("exposure", pct.String()+"%").Msg("Staged exposure updated")
}

// dailyLossPctLocked returns today's loss as a percent of balance.
// Caller holds m.mu.
func (m *Manager) dailyLossPctLocked(balance decimal.Decimal) decimal.Decimal {
	if balance.LessThanOrEqual(decimal.Zero) {
		if m.dailyLoss.IsPositive() {
			return decimal.NewFromInt(100)
		}
		return decimal.Zero
	}
	return m.dailyLoss.Div(balance).Mul(decimal.NewFromInt(100))
}

// checkDayReset zeroes the daily accumulator exactly once per calendar day.
// Caller holds m.mu.
func (m *Manager) checkDayReset() {
	today := m.clk.Now().Format("2006-01-02")
	if m.lastResetDay != today {
		m.dailyLoss = decimal.Zero
		m.lastResetDay = today
		log.Info().Msg("📅 Daily loss counter reset")
	}
}
