// Tokenbot - Token safety evaluation & paper-trading engine
//
// Pipeline:
// 1. Score a candidate token's safety from contract/liquidity/holder facts
// 2. Gate entries on timing (age, dump recovery, buy pressure)
// 3. Size simulated positions with constant dollar risk
// 4. Monitor live prices and run the laddered exit state machine
// 5. Journal outcomes and decide paper→real graduation
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/tokenbot/bot"
	"github.com/web3guy0/tokenbot/core"
	"github.com/web3guy0/tokenbot/feeds"
	"github.com/web3guy0/tokenbot/internal/clock"
	"github.com/web3guy0/tokenbot/internal/config"
	"github.com/web3guy0/tokenbot/journal"
	"github.com/web3guy0/tokenbot/monitor"
	"github.com/web3guy0/tokenbot/risk"
	"github.com/web3guy0/tokenbot/safety"
	"github.com/web3guy0/tokenbot/storage"
)

const version = "1.0.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration; a missing threshold aborts startup
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("version", version).Msg("🤖 Tokenbot starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.Real{}

	// Persistence
	db, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}

	// Feeds
	market := feeds.NewDexClient(cfg.DexscreenerURL, cfg.ProviderTimeout)

	providers := []feeds.FactsProvider{
		feeds.NewHoneypotClient(cfg.HoneypotAPIURL, cfg.ProviderTimeout),
		feeds.NewGoPlusClient(cfg.GoPlusAPIURL, "1", cfg.ProviderTimeout),
	}
	if cfg.EthRPCURL != "" {
		onchain, err := feeds.NewOnChainClient(ctx, cfg.EthRPCURL)
		if err != nil {
			log.Warn().Err(err).Msg("On-chain provider unavailable")
		} else {
			defer onchain.Close()
			providers = append(providers, onchain)
		}
	}
	factsChain := feeds.NewChain(providers...)

	// Decision pipeline
	jour := journal.New(cfg.ListWindow, db)
	evaluator := safety.NewEvaluator(cfg.Safety, jour)
	entryFilter := safety.NewEntryFilter(cfg.Safety)
	riskMgr := risk.NewManager(cfg.Risk, clk)
	modeGate := risk.NewModeGate(cfg.ModeGate, clk)
	ladder := monitor.New(monitor.DefaultConfig())

	engine := core.NewEngine(cfg, market, factsChain, evaluator, entryFilter,
		riskMgr, modeGate, ladder, jour, clk)
	engine.SetPersister(db)

	// Live price stream (optional)
	if cfg.StreamURL != "" {
		stream := feeds.NewPriceStream(cfg.StreamURL)
		stream.Start()
		defer stream.Stop()
		engine.SetStream(stream)
	}

	// Telegram (optional)
	if cfg.TelegramToken != "" {
		tg, err := bot.NewTelegramBot(cfg.TelegramToken, cfg.TelegramChatID, engine)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram disabled")
		} else {
			engine.SetNotifier(tg)
			tg.Start()
			defer tg.Stop()
		}
	}

	engine.Start(ctx)
	defer engine.Stop()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down")
}
