package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/tokenbot/internal/clock"
	"github.com/web3guy0/tokenbot/internal/config"
	"github.com/web3guy0/tokenbot/types"
)

func managerLimits() config.RiskLimits {
	return config.RiskLimits{
		RiskFraction:      decimal.NewFromFloat(0.02),
		MaxTradeFraction:  decimal.NewFromFloat(0.10),
		MinStake:          decimal.NewFromFloat(0.01),
		StopLossPct:       15,
		DailyLossLimitPct: decimal.NewFromInt(8),
		MaxOpenPositions:  3,
		MaxConsecLosses:   3,
	}
}

func newTestManager() (*Manager, *clock.Fake) {
	clk := clock.NewFake(time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	return NewManager(managerLimits(), clk), clk
}

func TestManager_AllowsCleanEntry(t *testing.T) {
	mgr, _ := newTestManager()
	assert.Nil(t, mgr.CanOpen(decimal.NewFromInt(1), 0))
}

func TestManager_DailyLossCeiling(t *testing.T) {
	mgr, clk := newTestManager()
	balance := decimal.NewFromInt(1)

	// 8% of a 1.0 balance is the ceiling
	mgr.RecordClose(decimal.NewFromFloat(-0.05))
	assert.Nil(t, mgr.CanOpen(balance, 0), "5% loss is under the ceiling")

	mgr.RecordClose(decimal.NewFromFloat(-0.03))
	rej := mgr.CanOpen(balance, 0)
	require.NotNil(t, rej)
	assert.Equal(t, types.RejectDailyLossLimit, rej.Code)
	assert.True(t, mgr.DailyLimitHit(balance))

	// The ceiling clears itself on the next calendar day
	clk.Advance(24 * time.Hour)
	assert.Nil(t, mgr.CanOpen(balance, 0))
	assert.False(t, mgr.DailyLimitHit(balance))
}

func TestManager_DailyResetExactlyOncePerDay(t *testing.T) {
	mgr, clk := newTestManager()

	mgr.RecordClose(decimal.NewFromFloat(-0.04))
	clk.Advance(25 * time.Hour)
	assert.True(t, mgr.DailyLoss().IsZero(), "day rollover clears the counter")

	// Losses after the rollover must survive repeated reads the same day
	mgr.RecordClose(decimal.NewFromFloat(-0.02))
	clk.Advance(2 * time.Hour)
	assert.True(t, mgr.DailyLoss().Equal(decimal.NewFromFloat(0.02)))
	assert.True(t, mgr.DailyLoss().Equal(decimal.NewFromFloat(0.02)))
}

func TestManager_ConsecutiveLossBreaker(t *testing.T) {
	mgr, clk := newTestManager()
	balance := decimal.NewFromInt(100) // huge balance keeps the daily ceiling out of play

	mgr.RecordClose(decimal.NewFromFloat(-0.01))
	mgr.RecordClose(decimal.NewFromFloat(-0.01))
	assert.Nil(t, mgr.CanOpen(balance, 0), "two losses is under the streak limit")

	mgr.RecordClose(decimal.NewFromFloat(-0.01))
	rej := mgr.CanOpen(balance, 0)
	require.NotNil(t, rej)
	assert.Equal(t, types.RejectConsecutiveLosses, rej.Code)
	assert.True(t, mgr.BreakerTripped())

	// Independent of the daily cycle: a new day does NOT clear it
	clk.Advance(48 * time.Hour)
	rej = mgr.CanOpen(balance, 0)
	require.NotNil(t, rej)
	assert.Equal(t, types.RejectConsecutiveLosses, rej.Code)

	// Only a manual clear does
	mgr.ClearBreaker()
	assert.Nil(t, mgr.CanOpen(balance, 0))
	assert.Zero(t, mgr.ConsecutiveLosses())
}

func TestManager_WinResetsStreakNotTrip(t *testing.T) {
	mgr, _ := newTestManager()

	mgr.RecordClose(decimal.NewFromFloat(-0.01))
	mgr.RecordClose(decimal.NewFromFloat(-0.01))
	mgr.RecordClose(decimal.NewFromFloat(0.02))
	assert.Zero(t, mgr.ConsecutiveLosses(), "a win resets the streak")
	assert.False(t, mgr.BreakerTripped())

	// Trip it, then win: the trip state must hold
	mgr.RecordClose(decimal.NewFromFloat(-0.01))
	mgr.RecordClose(decimal.NewFromFloat(-0.01))
	mgr.RecordClose(decimal.NewFromFloat(-0.01))
	require.True(t, mgr.BreakerTripped())
	mgr.RecordClose(decimal.NewFromFloat(0.05))
	assert.True(t, mgr.BreakerTripped(), "wins never un-trip the breaker")
}

func TestManager_MaxPositionsAndBalance(t *testing.T) {
	mgr, _ := newTestManager()

	rej := mgr.CanOpen(decimal.NewFromInt(1), 3)
	require.NotNil(t, rej)
	assert.Equal(t, types.RejectMaxPositions, rej.Code)

	rej = mgr.CanOpen(decimal.NewFromFloat(0.001), 0)
	require.NotNil(t, rej)
	assert.Equal(t, types.RejectInsufficientBalance, rej.Code)
}

func TestManager_StakeScaledByExposure(t *testing.T) {
	mgr, _ := newTestManager()
	balance := decimal.NewFromInt(1)

	full := mgr.Stake(balance)
	assert.True(t, full.Equal(decimal.NewFromFloat(0.10)), "stake %s", full)

	mgr.SetExposure(decimal.NewFromInt(25))
	quarter := mgr.Stake(balance)
	assert.True(t, quarter.Equal(decimal.NewFromFloat(0.025)), "stake %s", quarter)
}
