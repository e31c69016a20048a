package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the bot. Every threshold the decision
// pipeline uses lives here by name, so the evaluator and monitor stay pure
// functions of (facts, config).
type Config struct {
	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Mode
	Debug bool

	// Account
	InitialBalance decimal.Decimal // paper balance in base currency
	RealBalance    decimal.Decimal

	// Providers
	DexscreenerURL  string
	HoneypotAPIURL  string
	GoPlusAPIURL    string
	EthRPCURL       string
	StreamURL       string
	ProviderTimeout time.Duration

	// Scheduling
	MonitorInterval time.Duration // price poll cadence for open positions
	ScanInterval    time.Duration // candidate scan cadence

	Safety   SafetyThresholds
	Risk     RiskLimits
	ModeGate ModeGateRules

	// Journal
	ListWindow int // bounded whitelist/blacklist size

	// Database
	DatabasePath string
}

// SafetyThresholds drives the checklist. All percentages are 0-100.
type SafetyThresholds struct {
	LiquidityPass decimal.Decimal // liquidity above this passes
	LiquidityWarn decimal.Decimal // between warn and pass is a warn
	LockPctPass   float64
	LockPctWarn   float64
	MaxTaxPct     float64 // per-side tax above this fails (and is critical)
	TopHolderPass float64
	TopHolderWarn float64
	Top10Pass     float64
	Top10Warn     float64
	CreatorPass   float64
	CreatorWarn   float64
	MinAgeMinutes float64 // entry filter: younger tokens are sniper noise
	DumpPct       float64 // entry filter: 1h drop beyond this is a live dump
	MinVolume24h  decimal.Decimal
	SafePctBand   float64 // pass ratio at or above this is SAFE
	RiskPctBand   float64 // pass ratio below this is RISK
	RiskFailCount int     // this many fails is RISK regardless of ratio
}

// RiskLimits drives position sizing and the circuit breakers
type RiskLimits struct {
	RiskFraction      decimal.Decimal // fraction of balance risked per trade
	MaxTradeFraction  decimal.Decimal // hard cap on a single stake
	MinStake          decimal.Decimal
	StopLossPct       float64
	DailyLossLimitPct decimal.Decimal // percent of balance, hard stop for the day
	MaxOpenPositions  int
	MaxConsecLosses   int
}

// ModeGateRules drives paper→real promotion
type ModeGateRules struct {
	MinTrades     int
	MinWinRatePct decimal.Decimal
	// Staged real-capital exposure by week since promotion (percent)
	ExposureSteps []decimal.Decimal
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		Debug: getEnvBool("DEBUG", false),

		InitialBalance: getEnvDecimal("INITIAL_BALANCE", decimal.NewFromFloat(1.0)),
		RealBalance:    getEnvDecimal("REAL_BALANCE", decimal.Zero),

		DexscreenerURL:  getEnv("DEXSCREENER_API_URL", "https://api.dexscreener.com"),
		HoneypotAPIURL:  getEnv("HONEYPOT_API_URL", "https://api.honeypot.is"),
		GoPlusAPIURL:    getEnv("GOPLUS_API_URL", "https://api.gopluslabs.io"),
		EthRPCURL:       getEnv("ETH_RPC_URL", ""),
		StreamURL:       getEnv("PRICE_STREAM_URL", ""),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 5*time.Second),

		MonitorInterval: getEnvDuration("MONITOR_INTERVAL", 10*time.Second),
		ScanInterval:    getEnvDuration("SCAN_INTERVAL", 60*time.Second),

		Safety: SafetyThresholds{
			LiquidityPass: getEnvDecimal("MIN_LIQUIDITY", decimal.NewFromInt(2)),
			LiquidityWarn: getEnvDecimal("WARN_LIQUIDITY", decimal.NewFromFloat(0.5)),
			LockPctPass:   getEnvFloat("LOCK_PCT_PASS", 80),
			LockPctWarn:   getEnvFloat("LOCK_PCT_WARN", 50),
			MaxTaxPct:     getEnvFloat("MAX_TAX_PCT", 10),
			TopHolderPass: getEnvFloat("TOP_HOLDER_PASS", 30),
			TopHolderWarn: getEnvFloat("TOP_HOLDER_WARN", 40),
			Top10Pass:     getEnvFloat("TOP10_PASS", 40),
			Top10Warn:     getEnvFloat("TOP10_WARN", 50),
			CreatorPass:   getEnvFloat("CREATOR_PASS", 10),
			CreatorWarn:   getEnvFloat("CREATOR_WARN", 20),
			MinAgeMinutes: getEnvFloat("MIN_TOKEN_AGE_MIN", 3),
			DumpPct:       getEnvFloat("ENTRY_DUMP_PCT", 60),
			MinVolume24h:  getEnvDecimal("MIN_VOLUME_24H", decimal.NewFromInt(10)),
			SafePctBand:   getEnvFloat("SAFE_PCT_BAND", 75),
			RiskPctBand:   getEnvFloat("RISK_PCT_BAND", 50),
			RiskFailCount: getEnvInt("RISK_FAIL_COUNT", 3),
		},

		Risk: RiskLimits{
			RiskFraction:      getEnvDecimal("RISK_PER_TRADE_PCT", decimal.NewFromFloat(0.02)),
			MaxTradeFraction:  getEnvDecimal("MAX_TRADE_FRACTION", decimal.NewFromFloat(0.10)),
			MinStake:          getEnvDecimal("MIN_STAKE", decimal.NewFromFloat(0.01)),
			StopLossPct:       getEnvFloat("STOP_LOSS_PCT", 15),
			DailyLossLimitPct: getEnvDecimal("MAX_DAILY_LOSS_PCT", decimal.NewFromInt(8)),
			MaxOpenPositions:  getEnvInt("MAX_POSITIONS", 3),
			MaxConsecLosses:   getEnvInt("MAX_CONSECUTIVE_LOSSES", 3),
		},

		ModeGate: ModeGateRules{
			MinTrades:     getEnvInt("MODE_GATE_MIN_TRADES", 30),
			MinWinRatePct: getEnvDecimal("MODE_GATE_MIN_WIN_RATE", decimal.NewFromInt(70)),
			ExposureSteps: []decimal.Decimal{
				decimal.NewFromInt(25),
				decimal.NewFromInt(50),
				decimal.NewFromInt(75),
				decimal.NewFromInt(100),
			},
		},

		ListWindow: getEnvInt("LIST_WINDOW", 100),

		DatabasePath: getEnv("DATABASE_PATH", "data/tokenbot.db"),
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects configurations the pipeline cannot run on. A missing
// threshold aborts startup rather than being swallowed per-call.
func (c *Config) validate() error {
	if c.InitialBalance.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("INITIAL_BALANCE must be positive, got %s", c.InitialBalance)
	}
	if c.Risk.StopLossPct <= 0 {
		return fmt.Errorf("STOP_LOSS_PCT must be positive, got %v", c.Risk.StopLossPct)
	}
	if c.Risk.RiskFraction.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("RISK_PER_TRADE_PCT must be positive, got %s", c.Risk.RiskFraction)
	}
	if c.Risk.MaxTradeFraction.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("MAX_TRADE_FRACTION must be positive, got %s", c.Risk.MaxTradeFraction)
	}
	if c.Risk.DailyLossLimitPct.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("MAX_DAILY_LOSS_PCT must be positive, got %s", c.Risk.DailyLossLimitPct)
	}
	if c.Risk.MaxOpenPositions <= 0 {
		return fmt.Errorf("MAX_POSITIONS must be positive, got %d", c.Risk.MaxOpenPositions)
	}
	if c.Risk.MaxConsecLosses <= 0 {
		return fmt.Errorf("MAX_CONSECUTIVE_LOSSES must be positive, got %d", c.Risk.MaxConsecLosses)
	}
	if c.Safety.MaxTaxPct <= 0 {
		return fmt.Errorf("MAX_TAX_PCT must be positive, got %v", c.Safety.MaxTaxPct)
	}
	if c.ListWindow <= 0 {
		return fmt.Errorf("LIST_WINDOW must be positive, got %d", c.ListWindow)
	}
	if c.MonitorInterval <= 0 || c.ScanInterval <= 0 {
		return fmt.Errorf("monitor/scan intervals must be positive")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
