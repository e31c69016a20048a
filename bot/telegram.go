package bot

import (
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tokenbot/journal"
	"github.com/web3guy0/tokenbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM BOT - Trade notifications & account queries
// ═══════════════════════════════════════════════════════════════════════════════
//
// Features:
//   💰 Trade notifications (open/partial/close)
//   🚨 Circuit-breaker and mode-change alerts
//   🎛️ Query commands (/status, /stats, /positions, /clearbreaker, /watch)
//
// ═══════════════════════════════════════════════════════════════════════════════

// EngineAPI is the slice of the engine the bot needs
type EngineAPI interface {
	AccountStats() types.StatsSnapshot
	OpenPositions() []types.Position
	Journal() *journal.Journal
	ClearBreaker()
	AddCandidate(token string)
}

// TelegramBot manages the Telegram interface
type TelegramBot struct {
	mu      sync.Mutex
	api     *tgbotapi.BotAPI
	chatID  int64
	running bool
	stopCh  chan struct{}

	engine EngineAPI
}

// NewTelegramBot creates a Telegram bot bound to one chat
func NewTelegramBot(token string, chatID int64, engine EngineAPI) (*TelegramBot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token not set")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat ID not set")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	bot := &TelegramBot{
		api:    api,
		chatID: chatID,
		stopCh: make(chan struct{}),
		engine: engine,
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot initialized")
	return bot, nil
}

// Start begins listening for commands
func (b *TelegramBot) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.commandLoop()
	log.Info().Msg("📱 Telegram bot started")
}

// Stop stops the bot
func (b *TelegramBot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}
	b.running = false
	close(b.stopCh)
	log.Info().Msg("Telegram bot stopped")
}

// ═══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// NotifyTrade sends a trade event alert
func (b *TelegramBot) NotifyTrade(action string, pos *types.Position, price decimal.Decimal) {
	emoji := "📌"
	switch {
	case action == "OPEN":
		emoji = "✅"
	case strings.HasPrefix(action, "PARTIAL"):
		emoji = "✂️"
	case strings.Contains(action, "stop_loss"):
		emoji = "🛑"
	case strings.Contains(action, "tp_"):
		emoji = "💰"
	case strings.Contains(action, "dump"):
		emoji = "⚠️"
	}

	name := pos.Symbol
	if name == "" {
		name = shorten(pos.Token)
	}

	msg := fmt.Sprintf(`%s *%s*

🪙 %s
💵 Price: *%s*
📦 Stake: *%s*
📈 PnL: *%s%%*`,
		emoji, action,
		name,
		price.String(),
		pos.InitialSize.StringFixed(4),
		pos.PnLPct(price).StringFixed(1),
	)

	b.sendMarkdown(msg)
}

// NotifyAlert sends a plain alert line (circuit breaker, mode change)
func (b *TelegramBot) NotifyAlert(msg string) {
	b.sendMarkdown("🚨 " + msg)
}

// ═══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func (b *TelegramBot) commandLoop() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Chat.ID != b.chatID {
				continue // single-chat bot
			}
			b.handleCommand(update.Message)
		case <-b.stopCh:
			b.api.StopReceivingUpdates()
			return
		}
	}
}

func (b *TelegramBot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "status":
		b.sendStatus()
	case "stats":
		b.sendStats()
	case "positions":
		b.sendPositions()
	case "clearbreaker":
		b.engine.ClearBreaker()
		b.sendMarkdown("✅ Circuit breaker cleared")
	case "watch":
		token := strings.TrimSpace(msg.CommandArguments())
		if token == "" {
			b.sendMarkdown("Usage: /watch <token address>")
			return
		}
		b.engine.AddCandidate(token)
		b.sendMarkdown(fmt.Sprintf("👀 Watching `%s`", token))
	default:
		b.sendMarkdown("Commands: /status /stats /positions /clearbreaker /watch")
	}
}

func (b *TelegramBot) sendStatus() {
	s := b.engine.AccountStats()
	msg := fmt.Sprintf(`📊 *ACCOUNT STATUS*

💼 Mode: *%s*
💰 Paper balance: *%s*
🏦 Real balance: *%s*
📓 Open positions: *%d*
📉 Daily loss: *%s*
🔁 Consecutive losses: *%d*`,
		s.Mode,
		s.Balance.StringFixed(4),
		s.RealBalance.StringFixed(4),
		s.OpenPositions,
		s.DailyLoss.StringFixed(4),
		s.ConsecutiveLosses,
	)
	b.sendMarkdown(msg)
}

func (b *TelegramBot) sendStats() {
	s := b.engine.AccountStats()

	var sb strings.Builder
	fmt.Fprintf(&sb, "📈 *TRADING STATS*\n\n")
	fmt.Fprintf(&sb, "Trades: *%d*  Wins: *%d*  Win rate: *%s%%*\n",
		s.TradeCount, s.WinCount, s.WinRate.StringFixed(1))

	patterns := b.engine.Journal().PatternsByReason()
	if len(patterns) > 0 {
		fmt.Fprintf(&sb, "\n*By exit reason:*\n")
		for reason, p := range patterns {
			fmt.Fprintf(&sb, "• %s: %d trades, %d wins\n", reason, p.Count, p.Wins)
		}
	}

	recent := b.engine.Journal().Recent(5)
	if len(recent) > 0 {
		fmt.Fprintf(&sb, "\n*Recent trades:*\n")
		for _, r := range recent {
			mark := "🔴"
			if r.Win {
				mark = "🟢"
			}
			name := r.Symbol
			if name == "" {
				name = shorten(r.Token)
			}
			fmt.Fprintf(&sb, "%s %s %s%%\n", mark, name, r.PnLPct.StringFixed(1))
		}
	}

	b.sendMarkdown(sb.String())
}

func (b *TelegramBot) sendPositions() {
	positions := b.engine.OpenPositions()
	if len(positions) == 0 {
		b.sendMarkdown("No open positions")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📓 *OPEN POSITIONS*\n\n")
	for _, p := range positions {
		name := p.Symbol
		if name == "" {
			name = shorten(p.Token)
		}
		fmt.Fprintf(&sb, "• %s — entry %s, stake %s, high %s\n",
			name, p.EntryPrice.String(), p.Size.StringFixed(4), p.HighWaterMark.String())
	}
	b.sendMarkdown(sb.String())
}

func (b *TelegramBot) sendMarkdown(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Telegram send failed")
	}
}

// shorten abbreviates a token address for display
func shorten(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
