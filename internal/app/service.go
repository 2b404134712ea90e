// Package app wires the trading loop together: the periodic decision tick,
// the venue reconciliation tick and the daily balance snapshot.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spotbot/internal/domain"
	"spotbot/internal/pnl"
	"spotbot/internal/ports"
	"spotbot/internal/position"
	"spotbot/internal/strategy"
)

// Service runs the scheduler loops. Each loop skips a tick rather than
// overlapping with a previous one that is still running.
type Service struct {
	gateway   ports.ExchangeGateway
	trades    ports.TradeRepository
	settings  ports.SettingsRepository
	snapshots ports.SnapshotRepository
	manager   *position.Manager
	evaluator *strategy.Evaluator
	calc      *pnl.Calculator
	logger    ports.Logger

	decisionInterval  time.Duration
	reconcileInterval time.Duration
	snapshotInterval  time.Duration

	wg          sync.WaitGroup
	decisionRun sync.Mutex
	reconcRun   sync.Mutex
}

// Config holds the service's collaborators and tick intervals.
type Config struct {
	Gateway   ports.ExchangeGateway
	Trades    ports.TradeRepository
	Settings  ports.SettingsRepository
	Snapshots ports.SnapshotRepository
	Manager   *position.Manager
	Evaluator *strategy.Evaluator
	Calc      *pnl.Calculator
	Logger    ports.Logger

	DecisionInterval  time.Duration
	ReconcileInterval time.Duration
	SnapshotInterval  time.Duration
}

// New creates the application service.
func New(cfg Config) (*Service, error) {
	if cfg.Gateway == nil || cfg.Trades == nil || cfg.Settings == nil || cfg.Snapshots == nil {
		return nil, fmt.Errorf("gateway and repositories are required for app service")
	}
	if cfg.Manager == nil || cfg.Evaluator == nil || cfg.Calc == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("manager, evaluator, calculator and logger are required for app service")
	}
	if cfg.DecisionInterval <= 0 {
		cfg.DecisionInterval = 2 * time.Second
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = 10 * time.Second
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 24 * time.Hour
	}
	return &Service{
		gateway:           cfg.Gateway,
		trades:            cfg.Trades,
		settings:          cfg.Settings,
		snapshots:         cfg.Snapshots,
		manager:           cfg.Manager,
		evaluator:         cfg.Evaluator,
		calc:              cfg.Calc,
		logger:            cfg.Logger,
		decisionInterval:  cfg.DecisionInterval,
		reconcileInterval: cfg.ReconcileInterval,
		snapshotInterval:  cfg.SnapshotInterval,
	}, nil
}

// Run starts the scheduler loops and blocks until the context is cancelled
// and every loop has drained.
func (s *Service) Run(ctx context.Context) error {
	if err := s.gateway.SyncServerTime(ctx); err != nil {
		return fmt.Errorf("initial server time sync failed: %w", err)
	}
	s.logger.Info(ctx, "Trading loops starting", map[string]interface{}{
		"decisionInterval":  s.decisionInterval.String(),
		"reconcileInterval": s.reconcileInterval.String(),
	})

	s.wg.Add(3)
	go s.loop(ctx, s.decisionInterval, s.decisionTick)
	go s.loop(ctx, s.reconcileInterval, s.reconcileTick)
	go s.loop(ctx, s.snapshotInterval, s.snapshotTick)

	<-ctx.Done()
	s.logger.Info(context.Background(), "Shutdown requested, draining trading loops")
	s.wg.Wait()
	s.logger.Info(context.Background(), "Trading loops stopped")
	return nil
}

func (s *Service) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// decisionTick runs one full decision pass: entry evaluation for every
// watched symbol, then exit handling for every open position, all against a
// single price snapshot.
func (s *Service) decisionTick(ctx context.Context) {
	if !s.decisionRun.TryLock() {
		s.logger.Debug(ctx, "Previous decision tick still running, skipping")
		return
	}
	defer s.decisionRun.Unlock()

	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Decision tick: settings unavailable")
		return
	}
	if !settings.IsOnline() {
		return
	}

	prices, err := s.gateway.GetAllPrices(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Decision tick: price snapshot unavailable")
		return
	}

	for _, symbol := range settings.WatchedAssets() {
		s.evaluateEntry(ctx, symbol, prices[symbol], settings)
	}

	open, err := s.trades.FindOpen(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Decision tick: open trades unavailable")
		return
	}
	for _, trade := range open {
		price, ok := prices[trade.Asset]
		if !ok || price <= 0 {
			s.logger.Warn(ctx, "No price for open position, skipping exit check", map[string]interface{}{"symbol": trade.Asset})
			continue
		}
		if err := s.manager.HandleExit(ctx, trade, price); err != nil {
			s.logger.Error(ctx, err, "Exit handling failed", map[string]interface{}{"symbol": trade.Asset, "tradeID": trade.ID})
		}
	}
}

func (s *Service) evaluateEntry(ctx context.Context, symbol string, price float64, settings *domain.BotSettings) {
	signal, err := s.evaluator.Evaluate(ctx, symbol, price, settings)
	if err != nil {
		s.logger.Error(ctx, err, "Entry evaluation failed", map[string]interface{}{"symbol": symbol})
		return
	}
	if signal == strategy.SignalNone {
		return
	}
	if _, err := s.manager.Open(ctx, symbol, signal.Direction(), settings); err != nil {
		s.logger.Error(ctx, err, "Entry failed", map[string]interface{}{"symbol": symbol, "signal": signal.String()})
	}
}

// reconcileTick compares recorded open positions against the venue's actual
// holdings.
func (s *Service) reconcileTick(ctx context.Context) {
	if !s.reconcRun.TryLock() {
		return
	}
	defer s.reconcRun.Unlock()

	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Reconcile tick: settings unavailable")
		return
	}
	if !settings.IsOnline() {
		return
	}
	if err := s.manager.Reconcile(ctx); err != nil {
		s.logger.Error(ctx, err, "Reconciliation failed")
	}
}

// snapshotTick records total equity for the performance baseline, and seeds
// the baseline itself on the first run.
func (s *Service) snapshotTick(ctx context.Context) {
	equity, err := s.calc.TotalEquity(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Equity snapshot failed")
		return
	}
	snap := &domain.BalanceSnapshot{Balance: equity, Timestamp: time.Now()}
	if err := s.snapshots.Save(ctx, snap); err != nil {
		s.logger.Error(ctx, err, "Failed to persist equity snapshot")
		return
	}

	daily, err := s.gateway.GetDailyPnL(ctx)
	if err != nil {
		s.logger.Warn(ctx, "Daily PnL unavailable", map[string]interface{}{"error": err.Error()})
		daily = 0
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return
	}
	if settings.BaselineEquity == 0 {
		settings.BaselineEquity = equity
		if err := s.settings.Save(ctx, settings); err != nil {
			s.logger.Error(ctx, err, "Failed to seed baseline equity")
			return
		}
		s.logger.Info(ctx, "Baseline equity seeded", map[string]interface{}{"equity": equity})
	} else {
		s.logger.Info(ctx, "Equity snapshot", map[string]interface{}{
			"equity":      equity,
			"dailyPnL":    daily,
			"performance": pnl.PerformancePercent(equity, settings.BaselineEquity),
		})
	}
}
