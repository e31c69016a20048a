package safety

import (
	"fmt"

	"github.com/web3guy0/tokenbot/internal/config"
	"github.com/web3guy0/tokenbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENTRY FILTER - Timing gate on top of the safety verdict
// ═══════════════════════════════════════════════════════════════════════════════
//
// A token can be safe but not timing-ready: too young (launch-sniper noise),
// mid-dump with no recovery, or lacking buy-pressure confirmation. "Not ready"
// is advisory, not an error.
//
// ═══════════════════════════════════════════════════════════════════════════════

// EntryFilter decides whether a safe token is also timing-ready
type EntryFilter struct {
	cfg config.SafetyThresholds
}

// NewEntryFilter creates an entry filter
func NewEntryFilter(cfg config.SafetyThresholds) *EntryFilter {
	return &EntryFilter{cfg: cfg}
}

// Ready returns whether the token may be entered now, with the blocking
// reason when it may not.
func (f *EntryFilter) Ready(facts *types.TokenFacts, verdict types.SafetyVerdict) (bool, string) {
	if verdict.Overall != types.OverallSafe && verdict.Overall != types.OverallCaution {
		return false, fmt.Sprintf("verdict %s", verdict.Overall)
	}

	if facts.AgeMinutes == nil {
		return false, "token age unknown"
	}
	if *facts.AgeMinutes < f.cfg.MinAgeMinutes {
		return false, fmt.Sprintf("token too young (%.0f min < %.0f min)",
			*facts.AgeMinutes, f.cfg.MinAgeMinutes)
	}

	// Mid-dump guard: a large 1h drop with no 5m recovery is a falling knife
	if facts.PriceChange1hPct != nil && *facts.PriceChange1hPct <= -f.cfg.DumpPct {
		if facts.PriceChange5mPct == nil || *facts.PriceChange5mPct <= 0 {
			return false, fmt.Sprintf("dumping (%.1f%% in 1h, no recovery)", *facts.PriceChange1hPct)
		}
	}

	// Buy-pressure confirmation
	if facts.Buys5m == nil || facts.Sells5m == nil {
		return false, "no recent transaction data"
	}
	if *facts.Buys5m <= *facts.Sells5m {
		return false, fmt.Sprintf("sell pressure (%d buys vs %d sells)",
			*facts.Buys5m, *facts.Sells5m)
	}

	return true, ""
}
