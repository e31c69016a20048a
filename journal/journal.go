package journal

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tokenbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRADE JOURNAL & PATTERN STORE
// ═══════════════════════════════════════════════════════════════════════════════
//
// Append-only history of closed trades plus two bounded token lists derived
// from evaluation verdicts: blacklist (DANGER/RISK at encounter) and whitelist
// (SAFE). A token lives in at most one list; eviction is oldest-first.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Store persists closed trades. The journal works without one.
type Store interface {
	SaveTrade(rec types.TradeRecord) error
}

// PatternStats aggregates outcomes for one bucket (exit reason or verdict)
type PatternStats struct {
	Count       int
	Wins        int
	TotalPnLPct decimal.Decimal
}

// Journal records trade outcomes and derives the token lists
type Journal struct {
	mu sync.RWMutex

	window  int
	records []types.TradeRecord

	whitelist *boundedList
	blacklist *boundedList

	byReason  map[string]*PatternStats
	byVerdict map[types.Overall]*PatternStats

	store Store
}

// New creates a journal with the given list window. store may be nil.
func New(window int, store Store) *Journal {
	return &Journal{
		window:    window,
		whitelist: newBoundedList(window),
		blacklist: newBoundedList(window),
		byReason:  make(map[string]*PatternStats),
		byVerdict: make(map[types.Overall]*PatternStats),
		store:     store,
	}
}

// Record appends a closed trade. Records are never mutated afterwards.
func (j *Journal) Record(rec types.TradeRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.records = append(j.records, rec)

	rs := j.statsFor(j.byReason, rec.ExitReason)
	rs.Count++
	rs.TotalPnLPct = rs.TotalPnLPct.Add(rec.PnLPct)
	if rec.Win {
		rs.Wins++
	}

	if rec.VerdictAtOpen != "" {
		vs, ok := j.byVerdict[rec.VerdictAtOpen]
		if !ok {
			vs = &PatternStats{}
			j.byVerdict[rec.VerdictAtOpen] = vs
		}
		vs.Count++
		vs.TotalPnLPct = vs.TotalPnLPct.Add(rec.PnLPct)
		if rec.Win {
			vs.Wins++
		}
	}

	if j.store != nil {
		if err := j.store.SaveTrade(rec); err != nil {
			log.Error().Err(err).Str("trade", rec.ID).Msg("Failed to persist trade")
		}
	}

	log.Info().
		Str("token", rec.Token).
		Str("pnl_pct", rec.PnLPct.StringFixed(2)).
		Bool("win", rec.Win).
		Str("reason", rec.ExitReason).
		Msg("📒 Trade journaled")
}

// FileVerdict places a token on the appropriate list for the verdict it was
// met with. Filing on one list removes the token from the other.
func (j *Journal) FileVerdict(token string, overall types.Overall) {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch overall {
	case types.OverallDanger, types.OverallRisk:
		j.whitelist.remove(token)
		j.blacklist.add(token)
	case types.OverallSafe:
		j.blacklist.remove(token)
		j.whitelist.add(token)
	}
}

// Lookup reports which list, if any, a token is on
func (j *Journal) Lookup(token string) types.ListStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.blacklist.contains(token) {
		return types.ListBlacklist
	}
	if j.whitelist.contains(token) {
		return types.ListWhitelist
	}
	return types.ListNone
}

// Recent returns the most recent closed trades, newest last
func (j *Journal) Recent(limit int) []types.TradeRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if limit <= 0 || limit > len(j.records) {
		limit = len(j.records)
	}
	out := make([]types.TradeRecord, limit)
	copy(out, j.records[len(j.records)-limit:])
	return out
}

// Len returns the total number of journaled trades
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.records)
}

// PatternsByReason returns win/loss aggregates keyed by exit reason
func (j *Journal) PatternsByReason() map[string]PatternStats {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make(map[string]PatternStats, len(j.byReason))
	for k, v := range j.byReason {
		out[k] = *v
	}
	return out
}

// PatternsByVerdict returns win/loss aggregates keyed by entry verdict
func (j *Journal) PatternsByVerdict() map[types.Overall]PatternStats {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make(map[types.Overall]PatternStats, len(j.byVerdict))
	for k, v := range j.byVerdict {
		out[k] = *v
	}
	return out
}

func (j *Journal) statsFor(m map[string]*PatternStats, key string) *PatternStats {
	s, ok := m[key]
	if !ok {
		s = &PatternStats{}
		m[key] = s
	}
	return s
}

// boundedList is an insertion-ordered set with oldest-first eviction.
// Callers hold the journal lock.
type boundedList struct {
	cap   int
	order []string
	set   map[string]struct{}
}

func newBoundedList(cap int) *boundedList {
	return &boundedList{cap: cap, set: make(map[string]struct{})}
}

func (l *boundedList) add(token string) {
	if _, ok := l.set[token]; ok {
		return
	}
	if len(l.order) >= l.cap {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.set, oldest)
	}
	l.order = append(l.order, token)
	l.set[token] = struct{}{}
}

func (l *boundedList) remove(token string) {
	if _, ok := l.set[token]; !ok {
		return
	}
	delete(l.set, token)
	for i, t := range l.order {
		if t == token {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *boundedList) contains(token string) bool {
	_, ok := l.set[token]
	return ok
}
