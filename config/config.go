package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"spotbot/internal/adapters/logger"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Gateway
	HTTPTimeout      time.Duration
	RecvWindowMillis int64
	WeightLimit      int // voluntary throttle threshold, below the venue's hard limit

	// Scheduler intervals
	DecisionInterval  time.Duration
	ReconcileInterval time.Duration
	SnapshotInterval  time.Duration

	// Position lifecycle
	MinNotionalUSDT    float64 // venue's practical minimum order size
	StopLossPercent    float64 // adverse offset for the initial protective stop (0.02 = 2%)
	StopLimitOffset    float64 // limit price offset below/above the stop trigger
	StopRetryAttempts  int
	StopRetryMinDelay  time.Duration
	StopRetryMaxDelay  time.Duration
	CooldownMinutes    int
	DustThresholdPct   float64 // reconciliation dust threshold, percent of recorded quantity
	HardTakeProfitPct  float64 // net profit ceiling that force-closes a position
	RSIExitThreshold   float64 // RSI extreme in the position's favor
	RSIExitMinProfit   float64 // minimum net profit required for the RSI exit
	BreakevenTrigger   float64 // net profit that arms the breakeven-plus stop
	BreakevenOffset    float64 // stop offset from entry once armed (0.005 = +0.5%)
	ActiveTrailTrigger float64 // net profit that arms the active trail
	TrailDistance      float64 // stop distance from bestPrice once trailing (0.015 = 1.5%)
	MinStopDeltaPct    float64 // minimum stop move, percent of price, before replacing on-exchange

	// Strategy
	StrategyInterval   string
	StrategyKlineLimit int
	SMATrendPeriod     int
	RSIPeriod          int
	RSILongMax         float64
	RSIShortMin        float64
	BollingerPeriod    int
	BollingerStdDev    float64
	MACDFast           int
	MACDSlow           int
	MACDSignal         int
	ADXPeriod          int
	MinADX             float64
	MinQuoteVolume     float64

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel
}

// CooldownDuration is the re-entry cooldown window as a time.Duration.
func (c *Config) CooldownDuration() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string

	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}

	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.TelegramChatID = int64(getEnvAsInt("TELEGRAM_CHAT_ID", 0))

	cfg.HTTPTimeout = time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second
	cfg.RecvWindowMillis = int64(getEnvAsInt("RECV_WINDOW_MILLIS", 60000))
	cfg.WeightLimit = getEnvAsInt("WEIGHT_LIMIT", 5000)
	if cfg.WeightLimit <= 0 {
		errs = append(errs, "WEIGHT_LIMIT must be positive")
	}

	cfg.DecisionInterval = time.Duration(getEnvAsInt("DECISION_INTERVAL_SECONDS", 2)) * time.Second
	cfg.ReconcileInterval = time.Duration(getEnvAsInt("RECONCILE_INTERVAL_SECONDS", 10)) * time.Second
	cfg.SnapshotInterval = time.Duration(getEnvAsInt("SNAPSHOT_INTERVAL_HOURS", 24)) * time.Hour

	cfg.MinNotionalUSDT = getEnvAsFloat("MIN_NOTIONAL_USDT", 10.0)
	cfg.StopLossPercent = getEnvAsFloat("STOP_LOSS_PERCENT", 0.02)
	if cfg.StopLossPercent <= 0 || cfg.StopLossPercent >= 1.0 {
		errs = append(errs, "STOP_LOSS_PERCENT must be between 0.0 and 1.0 (exclusive)")
	}
	cfg.StopLimitOffset = getEnvAsFloat("STOP_LIMIT_OFFSET", 0.005)
	cfg.StopRetryAttempts = getEnvAsInt("STOP_RETRY_ATTEMPTS", 3)
	if cfg.StopRetryAttempts <= 0 {
		errs = append(errs, "STOP_RETRY_ATTEMPTS must be positive")
	}
	cfg.StopRetryMinDelay = time.Duration(getEnvAsInt("STOP_RETRY_MIN_DELAY_MS", 500)) * time.Millisecond
	cfg.StopRetryMaxDelay = time.Duration(getEnvAsInt("STOP_RETRY_MAX_DELAY_MS", 5000)) * time.Millisecond
	cfg.CooldownMinutes = getEnvAsInt("COOLDOWN_MINUTES", 5)
	cfg.DustThresholdPct = getEnvAsFloat("DUST_THRESHOLD_PERCENT", 5.0)
	cfg.HardTakeProfitPct = getEnvAsFloat("HARD_TAKE_PROFIT_PERCENT", 2.5)
	cfg.RSIExitThreshold = getEnvAsFloat("RSI_EXIT_THRESHOLD", 75.0)
	cfg.RSIExitMinProfit = getEnvAsFloat("RSI_EXIT_MIN_PROFIT", 0.5)
	cfg.BreakevenTrigger = getEnvAsFloat("BREAKEVEN_TRIGGER_PERCENT", 0.8)
	cfg.BreakevenOffset = getEnvAsFloat("BREAKEVEN_OFFSET", 0.005)
	cfg.ActiveTrailTrigger = getEnvAsFloat("ACTIVE_TRAIL_TRIGGER_PERCENT", 2.0)
	cfg.TrailDistance = getEnvAsFloat("TRAIL_DISTANCE", 0.015)
	cfg.MinStopDeltaPct = getEnvAsFloat("MIN_STOP_DELTA_PERCENT", 0.1)

	if cfg.BreakevenTrigger >= cfg.ActiveTrailTrigger {
		errs = append(errs, "BREAKEVEN_TRIGGER_PERCENT must be less than ACTIVE_TRAIL_TRIGGER_PERCENT")
	}
	if cfg.HardTakeProfitPct <= cfg.ActiveTrailTrigger {
		errs = append(errs, "HARD_TAKE_PROFIT_PERCENT must exceed ACTIVE_TRAIL_TRIGGER_PERCENT")
	}

	cfg.StrategyInterval = getEnv("STRATEGY_INTERVAL", "5m")
	cfg.StrategyKlineLimit = getEnvAsInt("STRATEGY_KLINE_LIMIT", 250)
	cfg.SMATrendPeriod = getEnvAsInt("STRATEGY_SMA_TREND_PERIOD", 200)
	cfg.RSIPeriod = getEnvAsInt("STRATEGY_RSI_PERIOD", 14)
	cfg.RSILongMax = getEnvAsFloat("STRATEGY_RSI_LONG_MAX", 50.0)
	cfg.RSIShortMin = getEnvAsFloat("STRATEGY_RSI_SHORT_MIN", 65.0)
	cfg.BollingerPeriod = getEnvAsInt("STRATEGY_BOLLINGER_PERIOD", 20)
	cfg.BollingerStdDev = getEnvAsFloat("STRATEGY_BOLLINGER_STDDEV", 2.0)
	cfg.MACDFast = getEnvAsInt("STRATEGY_MACD_FAST", 12)
	cfg.MACDSlow = getEnvAsInt("STRATEGY_MACD_SLOW", 26)
	cfg.MACDSignal = getEnvAsInt("STRATEGY_MACD_SIGNAL", 9)
	cfg.ADXPeriod = getEnvAsInt("STRATEGY_ADX_PERIOD", 14)
	cfg.MinADX = getEnvAsFloat("STRATEGY_MIN_ADX", 20.0)
	cfg.MinQuoteVolume = getEnvAsFloat("STRATEGY_MIN_QUOTE_VOLUME", 5000000.0)

	if cfg.SMATrendPeriod <= 0 || cfg.RSIPeriod <= 0 || cfg.BollingerPeriod <= 0 || cfg.ADXPeriod <= 0 {
		errs = append(errs, "strategy periods (SMA, RSI, Bollinger, ADX) must be positive")
	}
	if cfg.MACDFast >= cfg.MACDSlow {
		errs = append(errs, "STRATEGY_MACD_FAST must be less than STRATEGY_MACD_SLOW")
	}
	if cfg.StrategyKlineLimit < cfg.SMATrendPeriod {
		errs = append(errs, "STRATEGY_KLINE_LIMIT must cover STRATEGY_SMA_TREND_PERIOD")
	}
	if cfg.RSILongMax >= cfg.RSIShortMin {
		errs = append(errs, "STRATEGY_RSI_LONG_MAX must be below STRATEGY_RSI_SHORT_MIN")
	}

	cfg.DBPath = getEnv("DB_PATH", "./data/spotbot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
