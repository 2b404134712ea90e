package main

import (
	"context"
	"log" // Standard log only for fatal errors before the logger is up
	"os/signal"
	"syscall"

	"spotbot/config"
	"spotbot/internal/adapters/binance"
	"spotbot/internal/adapters/logger"
	"spotbot/internal/adapters/sqlite"
	"spotbot/internal/adapters/telegram"
	"spotbot/internal/app"
	"spotbot/internal/pnl"
	"spotbot/internal/position"
	"spotbot/internal/strategy"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 4. Initialize Telegram Notifier
	notifier, err := telegram.New(telegram.Config{
		Token:  cfg.TelegramToken,
		ChatID: cfg.TelegramChatID,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Telegram notifier: %v", err)
	}

	// 5. Initialize Exchange Gateway
	gateway, err := binance.New(binance.Config{
		APIKey:           cfg.APIKey,
		SecretKey:        cfg.SecretKey,
		UseTestnet:       cfg.IsTestnet,
		Logger:           appLogger,
		Settings:         repo.Settings(),
		Notifier:         notifier,
		HTTPTimeout:      cfg.HTTPTimeout,
		RecvWindowMillis: cfg.RecvWindowMillis,
		WeightLimit:      cfg.WeightLimit,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize exchange gateway: %v", err)
	}

	// 6. Initialize Profit Calculator
	calc, err := pnl.New(pnl.Config{
		Gateway: gateway,
		Trades:  repo.Trades(),
		Logger:  appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize profit calculator: %v", err)
	}

	// 7. Initialize Position Manager
	cooldown := position.NewCooldownTracker(cfg.CooldownDuration())
	manager, err := position.NewManager(position.Config{
		Gateway:   gateway,
		Trades:    repo.Trades(),
		Snapshots: repo.Snapshots(),
		Notifier:  notifier,
		Calc:      calc,
		Cooldown:  cooldown,
		Logger:    appLogger,

		MinNotionalUSDT:    cfg.MinNotionalUSDT,
		StopLossPercent:    cfg.StopLossPercent,
		StopLimitOffset:    cfg.StopLimitOffset,
		StopRetryAttempts:  cfg.StopRetryAttempts,
		StopRetryMinDelay:  cfg.StopRetryMinDelay,
		StopRetryMaxDelay:  cfg.StopRetryMaxDelay,
		DustThresholdPct:   cfg.DustThresholdPct,
		HardTakeProfitPct:  cfg.HardTakeProfitPct,
		RSIExitThreshold:   cfg.RSIExitThreshold,
		RSIExitMinProfit:   cfg.RSIExitMinProfit,
		RSIPeriod:          cfg.RSIPeriod,
		BreakevenTrigger:   cfg.BreakevenTrigger,
		BreakevenOffset:    cfg.BreakevenOffset,
		ActiveTrailTrigger: cfg.ActiveTrailTrigger,
		TrailDistance:      cfg.TrailDistance,
		MinStopDeltaPct:    cfg.MinStopDeltaPct,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize position manager: %v", err)
	}

	// 8. Initialize Strategy Evaluator
	evaluator, err := strategy.NewEvaluator(strategy.Config{
		Gateway:  gateway,
		Trades:   repo.Trades(),
		Cooldown: cooldown,
		Logger:   appLogger,

		Interval:       cfg.StrategyInterval,
		KlineLimit:     cfg.StrategyKlineLimit,
		SMATrendPeriod: cfg.SMATrendPeriod,
		RSIPeriod:      cfg.RSIPeriod,
		RSILongMax:     cfg.RSILongMax,
		RSIShortMin:    cfg.RSIShortMin,
		BollPeriod:     cfg.BollingerPeriod,
		BollStdDev:     cfg.BollingerStdDev,
		MACDFast:       cfg.MACDFast,
		MACDSlow:       cfg.MACDSlow,
		MACDSignal:     cfg.MACDSignal,
		ADXPeriod:      cfg.ADXPeriod,
		MinADX:         cfg.MinADX,
		MinQuoteVolume: cfg.MinQuoteVolume,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize strategy evaluator: %v", err)
	}

	// 9. Initialize Application Service
	service, err := app.New(app.Config{
		Gateway:           gateway,
		Trades:            repo.Trades(),
		Settings:          repo.Settings(),
		Snapshots:         repo.Snapshots(),
		Manager:           manager,
		Evaluator:         evaluator,
		Calc:              calc,
		Logger:            appLogger,
		DecisionInterval:  cfg.DecisionInterval,
		ReconcileInterval: cfg.ReconcileInterval,
		SnapshotInterval:  cfg.SnapshotInterval,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize app service: %v", err)
	}

	// 10. Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := service.Run(ctx); err != nil {
		appLogger.Error(context.Background(), err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}
	appLogger.Info(context.Background(), "Application finished gracefully.")
}
