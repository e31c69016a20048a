package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/tokenbot/types"
)

func TestEntryFilter_Ready(t *testing.T) {
	safe := types.SafetyVerdict{Overall: types.OverallSafe}

	tests := []struct {
		name      string
		mutate    func(*types.TokenFacts)
		verdict   types.SafetyVerdict
		wantReady bool
		reason    string
	}{
		{
			name:      "clean token is ready",
			mutate:    func(*types.TokenFacts) {},
			verdict:   safe,
			wantReady: true,
		},
		{
			name:      "caution verdict is still tradeable",
			mutate:    func(*types.TokenFacts) {},
			verdict:   types.SafetyVerdict{Overall: types.OverallCaution},
			wantReady: true,
		},
		{
			name:      "risk verdict blocks",
			mutate:    func(*types.TokenFacts) {},
			verdict:   types.SafetyVerdict{Overall: types.OverallRisk},
			wantReady: false,
			reason:    "verdict RISK",
		},
		{
			name:      "danger verdict blocks",
			mutate:    func(*types.TokenFacts) {},
			verdict:   types.SafetyVerdict{Overall: types.OverallDanger},
			wantReady: false,
			reason:    "verdict DANGER",
		},
		{
			name:      "unknown age blocks",
			mutate:    func(f *types.TokenFacts) { f.AgeMinutes = nil },
			verdict:   safe,
			wantReady: false,
			reason:    "token age unknown",
		},
		{
			name:      "too young blocks",
			mutate:    func(f *types.TokenFacts) { f.AgeMinutes = types.Float(1) },
			verdict:   safe,
			wantReady: false,
		},
		{
			name: "mid-dump with no recovery blocks",
			mutate: func(f *types.TokenFacts) {
				f.PriceChange1hPct = types.Float(-70)
				f.PriceChange5mPct = types.Float(-2)
			},
			verdict:   safe,
			wantReady: false,
		},
		{
			name: "mid-dump with unknown 5m change blocks",
			mutate: func(f *types.TokenFacts) {
				f.PriceChange1hPct = types.Float(-70)
				f.PriceChange5mPct = nil
			},
			verdict:   safe,
			wantReady: false,
		},
		{
			name: "dump with recovery underway passes",
			mutate: func(f *types.TokenFacts) {
				f.PriceChange1hPct = types.Float(-70)
				f.PriceChange5mPct = types.Float(3)
			},
			verdict:   safe,
			wantReady: true,
		},
		{
			name: "missing transaction data blocks",
			mutate: func(f *types.TokenFacts) {
				f.Buys5m = nil
				f.Sells5m = nil
			},
			verdict:   safe,
			wantReady: false,
			reason:    "no recent transaction data",
		},
		{
			name: "sell pressure blocks",
			mutate: func(f *types.TokenFacts) {
				f.Buys5m = types.Int(5)
				f.Sells5m = types.Int(12)
			},
			verdict:   safe,
			wantReady: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := NewEntryFilter(testThresholds())
			facts := cleanFacts()
			tt.mutate(facts)

			ready, reason := filter.Ready(facts, tt.verdict)
			assert.Equal(t, tt.wantReady, ready)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, reason)
			}
		})
	}
}
