package monitor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/tokenbot/types"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// openPosition builds a fresh position at entry 1.0 with the given stop
func openPosition(stopPrice float64) *types.Position {
	return &types.Position{
		ID:            "pos-1",
		Token:         "0xAAA",
		Symbol:        "TKN",
		EntryPrice:    dec(1.0),
		Size:          dec(0.10),
		InitialSize:   dec(0.10),
		StopPrice:     dec(stopPrice),
		HighWaterMark: dec(1.0),
		FiredTags:     map[string]bool{},
		OpenedAt:      time.Now(),
	}
}

func tags(actions []Action) []string {
	var out []string
	for _, a := range actions {
		out = append(out, a.Tag)
	}
	return out
}

func TestMonitor_ZeroPriceSkipsCycle(t *testing.T) {
	m := New(DefaultConfig())
	pos := openPosition(0.85)
	pos.HighWaterMark = dec(1.4)

	assert.Nil(t, m.Evaluate(pos, decimal.Zero))
	assert.True(t, pos.HighWaterMark.Equal(dec(1.4)), "no data must not touch state")
	assert.Empty(t, pos.FiredTags)
}

func TestMonitor_HighWaterMarkBeforeThresholds(t *testing.T) {
	m := New(DefaultConfig())
	pos := openPosition(0.85)

	m.Evaluate(pos, dec(1.1))
	assert.True(t, pos.HighWaterMark.Equal(dec(1.1)))

	// A lower price never lowers the mark
	m.Evaluate(pos, dec(0.95))
	assert.True(t, pos.HighWaterMark.Equal(dec(1.1)))
}

func TestMonitor_StopLossFullClose(t *testing.T) {
	m := New(DefaultConfig())
	pos := openPosition(0.85)

	actions := m.Evaluate(pos, dec(0.84))
	require.Len(t, actions, 1)
	assert.Equal(t, TagStopLoss, actions[0].Tag)
	assert.True(t, actions[0].FullClose)

	// A closed tier never re-fires
	actions = m.Evaluate(pos, dec(0.80))
	assert.NotContains(t, tags(actions), TagStopLoss)
}

func TestMonitor_DumpTierFiresOnce(t *testing.T) {
	m := New(DefaultConfig())
	pos := openPosition(0.10) // wide stop keeps the stop-loss out of play
	pos.HighWaterMark = dec(1.5)

	// 1.5 → 0.45 is a 70% drawdown from the high
	actions := m.Evaluate(pos, dec(0.45))

	got := tags(actions)
	assert.Contains(t, got, TagDump70)
	assert.Contains(t, got, TagDump50, "a crossing covers every threshold it passed")
	assert.NotContains(t, got, TagDump90)
	for _, a := range actions {
		if a.Tag == TagDump70 {
			assert.True(t, a.CloseFraction.Equal(dec(0.75)))
			assert.False(t, a.FullClose)
		}
	}

	// Same price next cycle: nothing left to fire
	actions = m.Evaluate(pos, dec(0.45))
	assert.Empty(t, actions)
}

func TestMonitor_Dump90IsFullCloseAndEndsCycle(t *testing.T) {
	m := New(DefaultConfig())
	pos := openPosition(0.10)
	pos.HighWaterMark = dec(1.5)

	actions := m.Evaluate(pos, dec(0.14))
	require.Len(t, actions, 1, "a full close ends the cycle")
	assert.Equal(t, TagDump90, actions[0].Tag)
	assert.True(t, actions[0].FullClose)
}

func TestMonitor_BreakevenMovesStop(t *testing.T) {
	m := New(DefaultConfig())
	pos := openPosition(0.85)

	actions := m.Evaluate(pos, dec(1.2))
	require.Len(t, actions, 1)
	assert.Equal(t, TagBreakeven, actions[0].Tag)
	assert.True(t, actions[0].MoveStopToBreakeven)
	assert.True(t, pos.StopPrice.Equal(pos.EntryPrice))

	// Falling back through entry now trips the (moved) stop
	actions = m.Evaluate(pos, dec(0.99))
	require.Len(t, actions, 1)
	assert.Equal(t, TagStopLoss, actions[0].Tag)
}

func TestMonitor_ProfitLadderCascade(t *testing.T) {
	m := New(DefaultConfig())
	pos := openPosition(0.85)

	// +110% in one jump crosses breakeven, +30, +50 and +100 together
	actions := m.Evaluate(pos, dec(2.1))
	assert.ElementsMatch(t, []string{TagBreakeven, TagTP30, TagTP50, TagTP100}, tags(actions))

	// Each fired exactly once: the same price again fires nothing
	assert.Empty(t, m.Evaluate(pos, dec(2.1)))
}

func TestMonitor_RunnerTier(t *testing.T) {
	m := New(DefaultConfig())
	pos := openPosition(0.85)
	for tag := range map[string]bool{TagBreakeven: true, TagTP30: true, TagTP50: true, TagTP100: true} {
		pos.FiredTags[tag] = true
	}
	pos.StopPrice = pos.EntryPrice

	actions := m.Evaluate(pos, dec(3.5))
	require.Len(t, actions, 1)
	assert.Equal(t, TagTP200, actions[0].Tag)
	assert.True(t, actions[0].CloseFraction.Equal(dec(0.90)))
	assert.False(t, actions[0].FullClose, "the runner keeps a slice open")
}

func TestMonitor_RiseAndReverseWithinOneCycleArmsDumpGuard(t *testing.T) {
	m := New(DefaultConfig())
	pos := openPosition(0.10)

	// Push the mark up (below the first profit tier), then crash: drawdown is
	// measured from the new mark, not from entry
	m.Evaluate(pos, dec(1.19))
	actions := m.Evaluate(pos, dec(0.55))

	got := tags(actions)
	assert.Contains(t, got, TagDump50, "53%% off the 1.19 high")
}
