package journal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/tokenbot/types"
)

func trade(token, reason string, pnlPct float64) types.TradeRecord {
	return types.TradeRecord{
		ID:            "t-" + token,
		Token:         token,
		ExitReason:    reason,
		PnLPct:        decimal.NewFromFloat(pnlPct),
		Win:           pnlPct > 0,
		VerdictAtOpen: types.OverallSafe,
	}
}

func TestJournal_RecordAppendOnly(t *testing.T) {
	j := New(10, nil)

	j.Record(trade("0xA", "stop_loss", -15))
	j.Record(trade("0xB", "tp_30", 30))
	j.Record(trade("0xC", "tp_50", 50))

	assert.Equal(t, 3, j.Len())

	recent := j.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "0xB", recent[0].Token)
	assert.Equal(t, "0xC", recent[1].Token, "newest last")

	// Recent returns a copy, not a window into internal state
	recent[0].Token = "mutated"
	assert.Equal(t, "0xB", j.Recent(2)[0].Token)
}

func TestJournal_ListsExclusive(t *testing.T) {
	j := New(10, nil)

	j.FileVerdict("0xA", types.OverallSafe)
	assert.Equal(t, types.ListWhitelist, j.Lookup("0xA"))

	// A later bad verdict moves the token, it doesn't duplicate it
	j.FileVerdict("0xA", types.OverallDanger)
	assert.Equal(t, types.ListBlacklist, j.Lookup("0xA"))

	j.FileVerdict("0xA", types.OverallSafe)
	assert.Equal(t, types.ListWhitelist, j.Lookup("0xA"))

	// CAUTION files nothing
	j.FileVerdict("0xB", types.OverallCaution)
	assert.Equal(t, types.ListNone, j.Lookup("0xB"))

	// RISK blacklists like DANGER does
	j.FileVerdict("0xC", types.OverallRisk)
	assert.Equal(t, types.ListBlacklist, j.Lookup("0xC"))
}

func TestJournal_OldestFirstEviction(t *testing.T) {
	j := New(3, nil)

	for i := 0; i < 3; i++ {
		j.FileVerdict(fmt.Sprintf("0x%d", i), types.OverallSafe)
	}
	assert.Equal(t, types.ListWhitelist, j.Lookup("0x0"))

	// A fourth entry evicts the oldest
	j.FileVerdict("0x3", types.OverallSafe)
	assert.Equal(t, types.ListNone, j.Lookup("0x0"))
	assert.Equal(t, types.ListWhitelist, j.Lookup("0x1"))
	assert.Equal(t, types.ListWhitelist, j.Lookup("0x3"))

	// Re-filing an existing token is a no-op, not an eviction
	j.FileVerdict("0x2", types.OverallSafe)
	assert.Equal(t, types.ListWhitelist, j.Lookup("0x1"))
}

func TestJournal_PatternAggregation(t *testing.T) {
	j := New(10, nil)

	j.Record(trade("0xA", "stop_loss", -15))
	j.Record(trade("0xB", "stop_loss", -15))
	j.Record(trade("0xC", "tp_100", 100))

	byReason := j.PatternsByReason()
	require.Contains(t, byReason, "stop_loss")
	assert.Equal(t, 2, byReason["stop_loss"].Count)
	assert.Zero(t, byReason["stop_loss"].Wins)
	assert.True(t, byReason["stop_loss"].TotalPnLPct.Equal(decimal.NewFromInt(-30)))

	byVerdict := j.PatternsByVerdict()
	require.Contains(t, byVerdict, types.OverallSafe)
	assert.Equal(t, 3, byVerdict[types.OverallSafe].Count)
	assert.Equal(t, 1, byVerdict[types.OverallSafe].Wins)
}

type failingStore struct{ calls int }

func (s *failingStore) SaveTrade(types.TradeRecord) error {
	s.calls++
	return errors.New("disk gone")
}

func TestJournal_StoreFailureDoesNotDropRecord(t *testing.T) {
	store := &failingStore{}
	j := New(10, store)

	j.Record(trade("0xA", "stop_loss", -15))

	assert.Equal(t, 1, store.calls)
	assert.Equal(t, 1, j.Len(), "persistence failure must not lose the in-memory record")
}
