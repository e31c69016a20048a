package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tokenbot/feeds"
	"github.com/web3guy0/tokenbot/internal/clock"
	"github.com/web3guy0/tokenbot/internal/config"
	"github.com/web3guy0/tokenbot/journal"
	"github.com/web3guy0/tokenbot/monitor"
	"github.com/web3guy0/tokenbot/risk"
	"github.com/web3guy0/tokenbot/safety"
	"github.com/web3guy0/tokenbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE - Central orchestrator
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow:
//   Facts → Safety Evaluator → Entry Filter → Sizing → Monitor → Journal → Mode Gate
//
// Two background loops run alongside manual commands:
//   - monitor loop (~10s): poll prices for open positions, run the exit ladder
//   - scan loop   (~60s): evaluate candidates, maybe open new positions
//
// One mutex guards the positions map and the account. Every read-price,
// compute-PnL, decide-exit, mutate-balance sequence runs as a unit under it,
// so two loops can never double-close a position or lose a balance update.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Persister stores positions and the account record. May be absent.
type Persister interface {
	SavePosition(pos *types.Position) error
	ClosePosition(id string, closedAt time.Time) error
	SaveSession(stats types.StatsSnapshot) error
	LoadOpenPositions() ([]*types.Position, error)
	LoadSession() (types.StatsSnapshot, bool, error)
}

// Notifier pushes trade events to the chat layer. May be absent.
type Notifier interface {
	NotifyTrade(action string, pos *types.Position, price decimal.Decimal)
	NotifyAlert(msg string)
}

// Engine wires the decision pipeline together
type Engine struct {
	mu sync.Mutex

	cfg *config.Config

	// Collaborators
	market    feeds.MarketData
	factsSrc  *feeds.Chain
	stream    *feeds.PriceStream
	evaluator *safety.Evaluator
	entry     *safety.EntryFilter
	riskMgr   *risk.Manager
	modeGate  *risk.ModeGate
	ladder    *monitor.Monitor
	journal   *journal.Journal
	db        Persister
	notifier  Notifier
	clk       clock.Clock

	// State, guarded by mu
	positions    map[string]*types.Position // keyed by token address
	paperBalance decimal.Decimal
	realBalance  decimal.Decimal
	mode         types.Mode
	tradeCount   int
	winCount     int
	candidates   []string

	running bool
	stopCh  chan struct{}
}

// NewEngine creates the trading engine
func NewEngine(
	cfg *config.Config,
	market feeds.MarketData,
	factsSrc *feeds.Chain,
	evaluator *safety.Evaluator,
	entry *safety.EntryFilter,
	riskMgr *risk.Manager,
	modeGate *risk.ModeGate,
	ladder *monitor.Monitor,
	jour *journal.Journal,
	clk clock.Clock,
) *Engine {
	return &Engine{
		cfg:          cfg,
		market:       market,
		factsSrc:     factsSrc,
		evaluator:    evaluator,
		entry:        entry,
		riskMgr:      riskMgr,
		modeGate:     modeGate,
		ladder:       ladder,
		journal:      jour,
		clk:          clk,
		positions:    make(map[string]*types.Position),
		paperBalance: cfg.InitialBalance,
		realBalance:  cfg.RealBalance,
		mode:         types.ModePaper,
		stopCh:       make(chan struct{}),
	}
}

// SetPersister attaches trade/session persistence
func (e *Engine) SetPersister(db Persister) { e.db = db }

// SetNotifier attaches the chat notifier
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// SetStream attaches the live price cache
func (e *Engine) SetStream(s *feeds.PriceStream) { e.stream = s }

// Start restores persisted state and launches the background loops.
// The loops run for process lifetime.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	e.restore()

	go e.monitorLoop(ctx)
	go e.scanLoop(ctx)

	log.Info().
		Dur("monitor_interval", e.cfg.MonitorInterval).
		Dur("scan_interval", e.cfg.ScanInterval).
		Msg("🚀 Engine started")
}

// Stop halts the background loops
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	close(e.stopCh)
}

// AddCandidate queues a token for the auto-entry scanner
func (e *Engine) AddCandidate(token string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.candidates {
		if c == token {
			return
		}
	}
	e.candidates = append(e.candidates, token)
}

// Evaluate fetches fresh facts for a token and scores its safety
func (e *Engine) Evaluate(ctx context.Context, token string) ([]types.ChecklistItem, types.SafetyVerdict) {
	facts := e.fetchFacts(ctx, token)
	items, verdict := e.evaluator.Evaluate(facts)
	e.journal.FileVerdict(token, verdict.Overall)
	return items, verdict
}

// TryEnter attempts to open a simulated position from a facts snapshot.
// A rejection is a normal synchronous outcome, not an error.
func (e *Engine) TryEnter(ctx context.Context, token string, facts *types.TokenFacts) (*types.Position, *types.Rejection) {
	_, verdict := e.evaluator.Evaluate(facts)
	e.journal.FileVerdict(token, verdict.Overall)

	if ready, reason := e.entry.Ready(facts, verdict); !ready {
		return nil, &types.Rejection{Code: types.RejectNotReady, Reason: reason}
	}

	price := e.currentPrice(ctx, token)
	if price.IsZero() {
		return nil, &types.Rejection{Code: types.RejectNotReady, Reason: "no price available"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, open := e.positions[token]; open {
		return nil, &types.Rejection{Code: types.RejectDuplicatePosition, Reason: "position already open"}
	}

	balance := e.balanceLocked()
	if rej := e.riskMgr.CanOpen(balance, len(e.positions)); rej != nil {
		return nil, rej
	}

	stake := e.riskMgr.Stake(balance)
	if stake.GreaterThan(balance) || stake.IsZero() {
		return nil, &types.Rejection{
			Code:   types.RejectInsufficientBalance,
			Reason: fmt.Sprintf("stake %s vs balance %s", stake, balance),
		}
	}

	slPct := decimal.NewFromFloat(e.riskMgr.StopLossPct())
	stopPrice := price.Mul(decimal.NewFromInt(100).Sub(slPct)).Div(decimal.NewFromInt(100))

	pos := &types.Position{
		ID:            uuid.NewString(),
		Token:         token,
		Symbol:        facts.Symbol,
		EntryPrice:    price,
		Size:          stake,
		InitialSize:   stake,
		StopPrice:     stopPrice,
		HighWaterMark: price,
		Realized:      decimal.Zero,
		FiredTags:     make(map[string]bool),
		VerdictAtOpen: verdict.Overall,
		Mode:          e.mode,
		OpenedAt:      e.clk.Now(),
	}

	e.setBalanceLocked(balance.Sub(stake))
	e.positions[token] = pos

	if e.stream != nil {
		e.stream.Subscribe(token)
	}
	if e.db != nil {
		if err := e.db.SavePosition(pos); err != nil {
			log.Error().Err(err).Str("position", pos.ID).Msg("Failed to persist position")
		}
	}
	if e.notifier != nil {
		e.notifier.NotifyTrade("OPEN", pos, price)
	}

	log.Info().
		Str("token", token).
		Str("entry", price.String()).
		Str("stake", stake.StringFixed(6)).
		Str("verdict", string(verdict.Overall)).
		Msg("📈 Position opened")

	return pos, nil
}

// Tick advances the position monitor one cycle. Price fetches happen outside
// the lock; each position's decide-and-mutate step runs under it.
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	tokens := make([]string, 0, len(e.positions))
	for t := range e.positions {
		tokens = append(tokens, t)
	}
	e.mu.Unlock()

	for _, token := range tokens {
		price := e.currentPrice(ctx, token)
		if price.IsZero() {
			log.Debug().Str("token", token).Msg("No price this cycle, skipping")
			continue
		}
		e.applyCycle(token, price)
	}
}

// applyCycle runs the exit ladder for one position at one price
func (e *Engine) applyCycle(token string, price decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[token]
	if !ok {
		return // closed by a concurrent command between snapshot and now
	}

	for _, action := range e.ladder.Evaluate(pos, price) {
		if action.MoveStopToBreakeven {
			log.Info().Str("token", token).Msg("🔒 Stop moved to breakeven")
			continue
		}
		e.closeLocked(pos, price, action.CloseFraction, action.Tag)
		if action.FullClose || pos.Size.IsZero() {
			return
		}
	}

	if e.db != nil {
		if err := e.db.SavePosition(pos); err != nil {
			log.Error().Err(err).Str("position", pos.ID).Msg("Failed to persist position")
		}
	}
}

// Close fully closes a position by id, at the live price
func (e *Engine) Close(ctx context.Context, positionID, reason string) error {
	e.mu.Lock()
	var pos *types.Position
	for _, p := range e.positions {
		if p.ID == positionID {
			pos = p
			break
		}
	}
	token := ""
	if pos != nil {
		token = pos.Token
	}
	e.mu.Unlock()

	if pos == nil {
		return fmt.Errorf("no open position %s", positionID)
	}

	price := e.currentPrice(ctx, token)
	if price.IsZero() {
		return fmt.Errorf("no price for %s, try again", token)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[token]
	if !ok || pos.ID != positionID {
		return fmt.Errorf("position %s already closed", positionID)
	}
	e.closeLocked(pos, price, decimal.NewFromInt(1), reason)
	return nil
}

// ClearBreaker manually resets the consecutive-loss circuit breaker
func (e *Engine) ClearBreaker() { e.riskMgr.ClearBreaker() }

// AccountStats returns a snapshot of the account
func (e *Engine) AccountStats() types.StatsSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statsLocked()
}

// OpenPositions returns copies of the currently open positions
func (e *Engine) OpenPositions() []types.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	return out
}

// Journal exposes the trade journal (read paths are concurrency-safe)
func (e *Engine) Journal() *journal.Journal { return e.journal }

// ─────────────────────────────────────────────────────────────────────────────
// internals
// ─────────────────────────────────────────────────────────────────────────────

// closeLocked realizes an exit of fraction×remaining at price. fraction 1
// fully closes the position. Caller holds e.mu.
func (e *Engine) closeLocked(pos *types.Position, price decimal.Decimal, fraction decimal.Decimal, tag string) {
	one := decimal.NewFromInt(1)
	if fraction.GreaterThan(one) {
		fraction = one
	}

	closeAmount := pos.Size.Mul(fraction)
	pnlPct := pos.PnLPct(price)
	proceeds := closeAmount.Mul(one.Add(pnlPct.Div(decimal.NewFromInt(100))))

	// Settle to the pool the stake came from. A position held across a mode
	// change must repay that pool, not whichever one the account is in now.
	e.creditPoolLocked(pos.Mode, proceeds)
	pos.Size = pos.Size.Sub(closeAmount)
	pos.Realized = pos.Realized.Add(proceeds)

	fullClose := pos.Size.LessThanOrEqual(pos.InitialSize.Mul(decimal.NewFromFloat(0.0001)))
	if !fullClose {
		log.Info().
			Str("token", pos.Token).
			Str("tag", tag).
			Str("closed", closeAmount.StringFixed(6)).
			Str("pnl_pct", pnlPct.StringFixed(2)).
			Msg("✂️ Partial exit")
		if e.notifier != nil {
			e.notifier.NotifyTrade("PARTIAL_"+tag, pos, price)
		}
		return
	}

	// Full close: realize the whole trade's outcome. Break-even counts as a
	// non-loss here and in the risk manager's streak alike.
	pos.Size = decimal.Zero
	pnlAmount := pos.Realized.Sub(pos.InitialSize)
	win := !pnlAmount.IsNegative()

	e.tradeCount++
	if win {
		e.winCount++
	}
	e.riskMgr.RecordClose(pnlAmount)

	rec := types.TradeRecord{
		ID:            uuid.NewString(),
		Token:         pos.Token,
		Symbol:        pos.Symbol,
		EntryPrice:    pos.EntryPrice,
		ExitPrice:     price,
		PnLPct:        pnlPct,
		Win:           win,
		ExitReason:    tag,
		Lesson:        lessonFor(tag, win),
		VerdictAtOpen: pos.VerdictAtOpen,
		Timestamp:     e.clk.Now(),
	}
	e.journal.Record(rec)

	delete(e.positions, pos.Token)
	if e.stream != nil {
		e.stream.Unsubscribe(pos.Token)
	}
	if e.db != nil {
		if err := e.db.ClosePosition(pos.ID, rec.Timestamp); err != nil {
			log.Error().Err(err).Str("position", pos.ID).Msg("Failed to mark position closed")
		}
		if err := e.db.SaveSession(e.statsLocked()); err != nil {
			log.Error().Err(err).Msg("Failed to persist session")
		}
	}
	if e.notifier != nil {
		e.notifier.NotifyTrade("CLOSE_"+tag, pos, price)
	}

	log.Info().
		Str("token", pos.Token).
		Str("tag", tag).
		Str("pnl", pnlAmount.StringFixed(6)).
		Bool("win", win).
		Msg("🏁 Position closed")

	e.shiftModeLocked()
}

// shiftModeLocked runs the mode gate after every full close. Caller holds e.mu.
func (e *Engine) shiftModeLocked() {
	stats := e.statsLocked()
	dailyHit := e.riskMgr.DailyLimitHit(e.balanceLocked())
	tripped := e.riskMgr.BreakerTripped()

	newMode, changed := e.modeGate.Evaluate(e.mode, stats, dailyHit, tripped)
	if !changed {
		return
	}

	e.mode = newMode
	e.riskMgr.SetExposure(e.modeGate.Exposure())

	if e.notifier != nil {
		e.notifier.NotifyAlert(fmt.Sprintf("Mode changed to %s", newMode))
	}
	if e.db != nil {
		if err := e.db.SaveSession(e.statsLocked()); err != nil {
			log.Error().Err(err).Msg("Failed to persist session")
		}
	}
}

// currentPrice consults the stream cache first, then the HTTP feed.
// Zero means "no data this cycle".
func (e *Engine) currentPrice(ctx context.Context, token string) decimal.Decimal {
	if e.stream != nil {
		if price, ok := e.stream.Price(token); ok {
			return price
		}
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ProviderTimeout)
	defer cancel()
	return e.market.Price(ctx, token)
}

// fetchFacts merges the market snapshot with the safety-provider report
func (e *Engine) fetchFacts(ctx context.Context, token string) *types.TokenFacts {
	ctx, cancel := context.WithTimeout(ctx, 2*e.cfg.ProviderTimeout)
	defer cancel()

	market := e.market.MarketFacts(ctx, token)
	safetyFacts := e.factsSrc.Facts(ctx, token)
	return feeds.MergeFacts(market, safetyFacts)
}

func (e *Engine) balanceLocked() decimal.Decimal {
	if e.mode == types.ModeReal {
		return e.realBalance
	}
	return e.paperBalance
}

func (e *Engine) setBalanceLocked(v decimal.Decimal) {
	if e.mode == types.ModeReal {
		e.realBalance = v
		return
	}
	e.paperBalance = v
}

// creditPoolLocked adds proceeds to the named pool regardless of current mode
func (e *Engine) creditPoolLocked(m types.Mode, v decimal.Decimal) {
	if m == types.ModeReal {
		e.realBalance = e.realBalance.Add(v)
		return
	}
	e.paperBalance = e.paperBalance.Add(v)
}

func (e *Engine) statsLocked() types.StatsSnapshot {
	winRate := decimal.Zero
	if e.tradeCount > 0 {
		winRate = decimal.NewFromInt(int64(e.winCount)).
			Div(decimal.NewFromInt(int64(e.tradeCount))).
			Mul(decimal.NewFromInt(100))
	}
	return types.StatsSnapshot{
		Balance:           e.paperBalance,
		RealBalance:       e.realBalance,
		Mode:              e.mode,
		TradeCount:        e.tradeCount,
		WinCount:          e.winCount,
		WinRate:           winRate,
		DailyLoss:         e.riskMgr.DailyLoss(),
		ConsecutiveLosses: e.riskMgr.ConsecutiveLosses(),
		OpenPositions:     len(e.positions),
	}
}

// restore reloads the session and open positions after a restart
func (e *Engine) restore() {
	if e.db == nil {
		return
	}

	if stats, found, err := e.db.LoadSession(); err != nil {
		log.Error().Err(err).Msg("Session restore failed")
	} else if found {
		e.mu.Lock()
		e.paperBalance = stats.Balance
		e.realBalance = stats.RealBalance
		e.mode = stats.Mode
		e.tradeCount = stats.TradeCount
		e.winCount = stats.WinCount
		e.mu.Unlock()
		log.Info().
			Str("balance", stats.Balance.StringFixed(6)).
			Str("mode", string(stats.Mode)).
			Int("trades", stats.TradeCount).
			Msg("♻️ Session restored")
	}

	if positions, err := e.db.LoadOpenPositions(); err != nil {
		log.Error().Err(err).Msg("Position restore failed")
	} else if len(positions) > 0 {
		e.mu.Lock()
		for _, pos := range positions {
			e.positions[pos.Token] = pos
			if e.stream != nil {
				e.stream.Subscribe(pos.Token)
			}
		}
		e.mu.Unlock()
		log.Info().Int("count", len(positions)).Msg("♻️ Open positions restored")
	}
}

// monitorLoop polls prices for open positions on a fixed short interval
func (e *Engine) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Tick(ctx)
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// scanLoop evaluates candidates and may open new positions
func (e *Engine) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.scanOnce(ctx)
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// scanOnce runs the full entry pipeline over the candidate list
func (e *Engine) scanOnce(ctx context.Context) {
	e.mu.Lock()
	candidates := make([]string, len(e.candidates))
	copy(candidates, e.candidates)
	e.mu.Unlock()

	for _, token := range candidates {
		facts := e.fetchFacts(ctx, token)
		if pos, rej := e.TryEnter(ctx, token, facts); rej != nil {
			log.Debug().Str("token", token).Str("rejection", rej.String()).Msg("Scan: entry rejected")
		} else {
			log.Info().Str("token", token).Str("position", pos.ID).Msg("Scan: entry opened")
		}
	}
}

// lessonFor produces the free-text lesson for a trade record
func lessonFor(tag string, win bool) string {
	switch tag {
	case monitor.TagStopLoss:
		return "Stop hit — entry timing or stop width was off"
	case monitor.TagDump90, monitor.TagDump70, monitor.TagDump50:
		return "Dumped from the high — ladder protected part of the gain"
	case monitor.TagTP30, monitor.TagTP50, monitor.TagTP100, monitor.TagTP200:
		return "Profit ladder exit — plan worked"
	default:
		if win {
			return "Manual close in profit"
		}
		return "Manual close at a loss"
	}
}
