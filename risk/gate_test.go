package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/tokenbot/internal/clock"
	"github.com/web3guy0/tokenbot/internal/config"
	"github.com/web3guy0/tokenbot/types"
)

func gateRules() config.ModeGateRules {
	return config.ModeGateRules{
		MinTrades:     30,
		MinWinRatePct: decimal.NewFromInt(70),
		ExposureSteps: []decimal.Decimal{
			decimal.NewFromInt(25),
			decimal.NewFromInt(50),
			decimal.NewFromInt(75),
			decimal.NewFromInt(100),
		},
	}
}

func newTestGate() (*ModeGate, *clock.Fake) {
	clk := clock.NewFake(time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	return NewModeGate(gateRules(), clk), clk
}

func TestModeGate_NoPromotionUnderMinTrades(t *testing.T) {
	gate, _ := newTestGate()

	// A perfect record is not enough without the trade count
	stats := types.StatsSnapshot{TradeCount: 29, WinRate: decimal.NewFromInt(100)}
	mode, changed := gate.Evaluate(types.ModePaper, stats, false, false)
	assert.Equal(t, types.ModePaper, mode)
	assert.False(t, changed)
}

func TestModeGate_NoPromotionUnderMinWinRate(t *testing.T) {
	gate, _ := newTestGate()

	stats := types.StatsSnapshot{TradeCount: 50, WinRate: decimal.NewFromInt(69)}
	mode, changed := gate.Evaluate(types.ModePaper, stats, false, false)
	assert.Equal(t, types.ModePaper, mode)
	assert.False(t, changed)
}

func TestModeGate_PromotionBlockedByDailyLimit(t *testing.T) {
	gate, _ := newTestGate()

	stats := types.StatsSnapshot{TradeCount: 40, WinRate: decimal.NewFromInt(80)}
	mode, changed := gate.Evaluate(types.ModePaper, stats, true, false)
	assert.Equal(t, types.ModePaper, mode)
	assert.False(t, changed)
}

func TestModeGate_PromotionAndStagedExposure(t *testing.T) {
	gate, clk := newTestGate()

	stats := types.StatsSnapshot{TradeCount: 35, WinRate: decimal.NewFromInt(75)}
	mode, changed := gate.Evaluate(types.ModePaper, stats, false, false)
	assert.Equal(t, types.ModeReal, mode)
	assert.True(t, changed)

	// Week by week the exposure steps up, then holds at the top tier
	assert.True(t, gate.Exposure().Equal(decimal.NewFromInt(25)))
	clk.Advance(7 * 24 * time.Hour)
	assert.True(t, gate.Exposure().Equal(decimal.NewFromInt(50)))
	clk.Advance(7 * 24 * time.Hour)
	assert.True(t, gate.Exposure().Equal(decimal.NewFromInt(75)))
	clk.Advance(7 * 24 * time.Hour)
	assert.True(t, gate.Exposure().Equal(decimal.NewFromInt(100)))
	clk.Advance(30 * 24 * time.Hour)
	assert.True(t, gate.Exposure().Equal(decimal.NewFromInt(100)))
}

func TestModeGate_ImmediateDemotion(t *testing.T) {
	okStats := types.StatsSnapshot{TradeCount: 35, WinRate: decimal.NewFromInt(75)}

	// Daily ceiling demotes regardless of the record
	gate, _ := newTestGate()
	gate.Evaluate(types.ModePaper, okStats, false, false)
	mode, changed := gate.Evaluate(types.ModeReal, okStats, true, false)
	assert.Equal(t, types.ModePaper, mode)
	assert.True(t, changed)
	assert.True(t, gate.Exposure().Equal(decimal.NewFromInt(100)), "paper stakes are unscaled")

	// So does the consecutive-loss breaker
	gate, _ = newTestGate()
	gate.Evaluate(types.ModePaper, okStats, false, false)
	mode, changed = gate.Evaluate(types.ModeReal, okStats, false, true)
	assert.Equal(t, types.ModePaper, mode)
	assert.True(t, changed)
}

func TestModeGate_ExposureInPaperMode(t *testing.T) {
	gate, _ := newTestGate()
	assert.True(t, gate.Exposure().Equal(decimal.NewFromInt(100)))
}
