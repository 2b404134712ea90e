// Package position owns the full lifecycle of a spot position: sized entry,
// venue-side stop protection, trailing ratchet, exit and reconciliation
// against the venue's actual holdings.
package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"

	"spotbot/internal/domain"
	"spotbot/internal/indicators"
	"spotbot/internal/pnl"
	"spotbot/internal/ports"
)

const (
	rsiExitInterval = "1m"
	rsiExitBars     = 15
)

// Manager opens, protects, trails and closes positions. All per-symbol
// mutations are serialized through a symbol lock so the decision tick and
// the reconcile tick never race on the same position.
type Manager struct {
	gateway   ports.ExchangeGateway
	trades    ports.TradeRepository
	snapshots ports.SnapshotRepository
	notifier  ports.Notifier
	calc      *pnl.Calculator
	cooldown  *CooldownTracker
	logger    ports.Logger
	cfg       Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Config holds the manager's collaborators and risk policy.
type Config struct {
	Gateway   ports.ExchangeGateway
	Trades    ports.TradeRepository
	Snapshots ports.SnapshotRepository
	Notifier  ports.Notifier
	Calc      *pnl.Calculator
	Cooldown  *CooldownTracker
	Logger    ports.Logger

	MinNotionalUSDT    float64
	StopLossPercent    float64
	StopLimitOffset    float64
	StopRetryAttempts  int
	StopRetryMinDelay  time.Duration
	StopRetryMaxDelay  time.Duration
	DustThresholdPct   float64
	HardTakeProfitPct  float64
	RSIExitThreshold   float64
	RSIExitMinProfit   float64
	RSIPeriod          int
	BreakevenTrigger   float64
	BreakevenOffset    float64
	ActiveTrailTrigger float64
	TrailDistance      float64
	MinStopDeltaPct    float64
}

// NewManager creates a position lifecycle manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Gateway == nil || cfg.Trades == nil || cfg.Snapshots == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("gateway, repositories and logger are required for position manager")
	}
	if cfg.Calc == nil {
		return nil, fmt.Errorf("pnl calculator is required for position manager")
	}
	if cfg.Cooldown == nil {
		return nil, fmt.Errorf("cooldown tracker is required for position manager")
	}
	if cfg.StopRetryAttempts <= 0 {
		cfg.StopRetryAttempts = 3
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = 14
	}
	return &Manager{
		gateway:   cfg.Gateway,
		trades:    cfg.Trades,
		snapshots: cfg.Snapshots,
		notifier:  cfg.Notifier,
		calc:      cfg.Calc,
		cooldown:  cfg.Cooldown,
		logger:    cfg.Logger,
		cfg:       cfg,
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

// symbolLock returns the mutex guarding one symbol's position state.
func (m *Manager) symbolLock(symbol string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		m.locks[symbol] = l
	}
	return l
}

func (m *Manager) notify(ctx context.Context, text string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Send(ctx, text); err != nil {
		m.logger.Error(ctx, err, "Notification delivery failed")
	}
}

// roundToStep truncates a base quantity down to the symbol's LOT_SIZE step.
// Truncation, never rounding up: selling more than was bought rejects.
func roundToStep(quantity, step float64) float64 {
	if step <= 0 {
		return quantity
	}
	q := decimal.NewFromFloat(quantity)
	s := decimal.NewFromFloat(step)
	steps := q.Div(s).Floor()
	out, _ := steps.Mul(s).Float64()
	return out
}

// --- Opening ---

// Open sizes and opens a new position for the symbol. Returns (nil, nil)
// when the sized notional falls below the venue minimum. The trade is only
// persisted as OPEN once the entry fill is confirmed and a protective stop
// rests on the venue.
func (m *Manager) Open(ctx context.Context, symbol string, direction domain.Direction, settings *domain.BotSettings) (*domain.Trade, error) {
	const op = "Open"
	lock := m.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	balance, err := m.gateway.GetAccountBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	notional := balance * settings.RiskPercent / 100
	if notional > balance {
		notional = balance
	}
	if notional < m.cfg.MinNotionalUSDT {
		m.logger.Debug(ctx, "Sized notional below venue minimum, skipping entry",
			map[string]interface{}{"symbol": symbol, "notional": notional, "balance": balance})
		return nil, nil
	}

	// Stray orders from a previous crash would eat quantity from the new
	// protective stop.
	if err := m.gateway.CancelAllOrders(ctx, symbol); err != nil {
		m.logger.Warn(ctx, "Pre-entry order cleanup failed", map[string]interface{}{"symbol": symbol, "error": err.Error()})
	}

	fill, err := m.enter(ctx, symbol, direction, notional)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	if fill.Quantity <= 0 {
		m.logger.Error(ctx, ports.ErrZeroFill, "Entry order reported zero fill", map[string]interface{}{"symbol": symbol})
		return nil, fmt.Errorf("%s failed: %w", op, ports.ErrZeroFill)
	}
	entryPrice := fill.QuoteQty / fill.Quantity

	step, err := m.gateway.GetStepSize(ctx, symbol)
	if err != nil {
		step = 0
	}
	quantity := roundToStep(fill.Quantity, step)
	if quantity <= 0 {
		quantity = fill.Quantity
	}

	stopPrice, limitPrice := m.protectionPrices(direction, entryPrice)
	if err := m.placeStopWithRetry(ctx, symbol, quantity, stopPrice, limitPrice, direction.StopSide()); err != nil {
		return nil, m.rollback(ctx, symbol, direction, fill, entryPrice, err)
	}

	trade := &domain.Trade{
		Asset:        symbol,
		Direction:    direction,
		EntryPrice:   entryPrice,
		Quantity:     quantity,
		NotionalUSDT: fill.QuoteQty,
		BestPrice:    entryPrice,
		StopLoss:     stopPrice,
		EntryTime:    time.Now(),
		Status:       domain.StatusOpen,
	}
	if _, err := m.trades.Save(ctx, trade); err != nil {
		// Position and stop are live on the venue but the record failed:
		// this must be surfaced loudly, reconciliation cannot repair it.
		m.logger.Error(ctx, err, "Position opened but trade record could not be persisted",
			map[string]interface{}{"symbol": symbol, "quantity": quantity})
		m.notify(ctx, fmt.Sprintf("🆘 %s position on %s is live but was NOT persisted. Manual intervention required.", direction, symbol))
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}

	m.logger.Info(ctx, "Position opened", map[string]interface{}{
		"symbol": symbol, "direction": direction, "entryPrice": entryPrice,
		"quantity": quantity, "notional": fill.QuoteQty, "stopLoss": stopPrice,
	})
	m.notify(ctx, fmt.Sprintf("📈 Opened %s %s: qty %.8f @ %.4f, stop %.4f (%.2f USDT)",
		direction, symbol, quantity, entryPrice, stopPrice, fill.QuoteQty))
	return trade, nil
}

// enter executes the entry market order for either direction. A simulated
// short sells held base units sized from the current price.
func (m *Manager) enter(ctx context.Context, symbol string, direction domain.Direction, notional float64) (*ports.MarketFill, error) {
	if direction == domain.Long {
		return m.gateway.PlaceMarketBuy(ctx, symbol, notional)
	}
	price, err := m.gateway.GetPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("pricing short entry for %s: %w", symbol, err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("pricing short entry for %s: %w", symbol, ports.ErrNotFound)
	}
	step, err := m.gateway.GetStepSize(ctx, symbol)
	if err != nil {
		step = 0
	}
	quantity := roundToStep(notional/price, step)
	if quantity <= 0 {
		return nil, fmt.Errorf("short entry for %s sized to zero quantity: %w", symbol, ports.ErrInvalidRequest)
	}
	return m.gateway.PlaceMarketSell(ctx, symbol, quantity)
}

// protectionPrices computes the initial stop trigger and its limit price.
func (m *Manager) protectionPrices(direction domain.Direction, entryPrice float64) (stop, limit float64) {
	if direction == domain.Long {
		stop = entryPrice * (1 - m.cfg.StopLossPercent)
		limit = stop * (1 - m.cfg.StopLimitOffset)
		return stop, limit
	}
	stop = entryPrice * (1 + m.cfg.StopLossPercent)
	limit = stop * (1 + m.cfg.StopLimitOffset)
	return stop, limit
}

func (m *Manager) placeStopWithRetry(ctx context.Context, symbol string, quantity, stopPrice, limitPrice float64, side domain.OrderSide) error {
	b := &backoff.Backoff{
		Min:    m.cfg.StopRetryMinDelay,
		Max:    m.cfg.StopRetryMaxDelay,
		Factor: 2,
		Jitter: true,
	}
	var lastErr error
	for attempt := 1; attempt <= m.cfg.StopRetryAttempts; attempt++ {
		_, err := m.gateway.PlaceStopLossLimit(ctx, symbol, quantity, stopPrice, limitPrice, side)
		if err == nil {
			return nil
		}
		lastErr = err
		m.logger.Warn(ctx, "Stop placement failed, retrying", map[string]interface{}{
			"symbol": symbol, "attempt": attempt, "error": err.Error(),
		})
		if attempt < m.cfg.StopRetryAttempts {
			select {
			case <-time.After(b.Duration()):
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", ports.ErrContextCanceled, ctx.Err())
			}
		}
	}
	return fmt.Errorf("placing protective stop for %s: %w", symbol, lastErr)
}

// rollback flattens a just-opened fill whose protective stop could not be
// placed. An unprotected position is never left running.
func (m *Manager) rollback(ctx context.Context, symbol string, direction domain.Direction, fill *ports.MarketFill, entryPrice float64, cause error) error {
	m.logger.Error(ctx, cause, "Protective stop could not be placed, rolling back entry",
		map[string]interface{}{"symbol": symbol, "quantity": fill.Quantity})

	exitFill, err := m.exitMarket(ctx, symbol, direction, fill.Quantity)
	if err != nil {
		m.logger.Error(ctx, err, "ROLLBACK FAILED: unprotected position still open",
			map[string]interface{}{"symbol": symbol, "quantity": fill.Quantity})
		m.notify(ctx, fmt.Sprintf("🆘 SOS: %s %s is UNPROTECTED and rollback failed. Close manually NOW.", direction, symbol))
		trade := &domain.Trade{
			Asset: symbol, Direction: direction, EntryPrice: entryPrice,
			Quantity: fill.Quantity, NotionalUSDT: fill.QuoteQty, BestPrice: entryPrice,
			EntryTime: time.Now(), Status: domain.StatusError, CloseReason: domain.CloseReasonRollback,
		}
		if _, saveErr := m.trades.Save(ctx, trade); saveErr != nil {
			m.logger.Error(ctx, saveErr, "Failed to record unprotected position")
		}
		return fmt.Errorf("rollback failed for %s: %w (stop failure: %w)", symbol, err, cause)
	}

	exitPrice := entryPrice
	if exitFill.Quantity > 0 {
		exitPrice = exitFill.QuoteQty / exitFill.Quantity
	}
	gross := pnl.GrossResultPercent(direction, entryPrice, exitPrice)
	trade := &domain.Trade{
		Asset: symbol, Direction: direction, EntryPrice: entryPrice, ExitPrice: exitPrice,
		Quantity: fill.Quantity, NotionalUSDT: fill.QuoteQty, BestPrice: entryPrice,
		StopLoss: 0, EntryTime: time.Now(), ExitTime: time.Now(),
		ProfitUSDT: fill.QuoteQty * gross / 100,
		Status:     domain.StatusClosed, CloseReason: domain.CloseReasonRollback,
	}
	if _, err := m.trades.Save(ctx, trade); err != nil {
		m.logger.Error(ctx, err, "Failed to record rolled-back trade")
	}
	m.notify(ctx, fmt.Sprintf("⚠️ %s %s entry rolled back: protective stop could not be placed.", direction, symbol))
	return fmt.Errorf("stop placement failed for %s, entry rolled back: %w", symbol, cause)
}

// exitMarket flattens a position at market for either direction.
func (m *Manager) exitMarket(ctx context.Context, symbol string, direction domain.Direction, quantity float64) (*ports.MarketFill, error) {
	if direction == domain.Long {
		return m.gateway.PlaceMarketSell(ctx, symbol, quantity)
	}
	return m.gateway.PlaceMarketBuyBase(ctx, symbol, quantity)
}

// reloadOpen re-reads a trade under the symbol lock. The reconcile tick and
// the decision tick query the store independently, so the caller's copy may
// describe a position another tick has already closed; nil means the trade
// is no longer open and the stale copy must not be acted on.
func (m *Manager) reloadOpen(ctx context.Context, id int64) (*domain.Trade, error) {
	trade, err := m.trades.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reloading trade %d: %w", id, err)
	}
	if trade == nil || !trade.IsOpen() {
		return nil, nil
	}
	return trade, nil
}

// --- Exit handling ---

// HandleExit runs one exit evaluation for an open trade at the given price:
// stop breach, momentum exhaustion, hard take profit, then trailing ratchet.
func (m *Manager) HandleExit(ctx context.Context, trade *domain.Trade, currentPrice float64) error {
	const op = "HandleExit"
	if !trade.IsOpen() || currentPrice <= 0 {
		return nil
	}
	lock := m.symbolLock(trade.Asset)
	lock.Lock()
	defer lock.Unlock()

	fresh, err := m.reloadOpen(ctx, trade.ID)
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	if fresh == nil {
		return nil
	}
	trade = fresh

	// The venue stop should have fired already; closing at market here
	// covers a missed or partially filled trigger.
	if m.stopBreached(trade, currentPrice) {
		m.logger.Info(ctx, "Local stop breached, flattening", map[string]interface{}{
			"symbol": trade.Asset, "price": currentPrice, "stopLoss": trade.StopLoss,
		})
		return m.close(ctx, trade, domain.CloseReasonStopLoss)
	}

	netPct, err := m.calc.NetResultPercent(ctx, trade, currentPrice)
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}

	if exhausted, err := m.momentumExhausted(ctx, trade, netPct); err != nil {
		m.logger.Warn(ctx, "Momentum check failed, continuing with trailing only",
			map[string]interface{}{"symbol": trade.Asset, "error": err.Error()})
	} else if exhausted {
		return m.close(ctx, trade, domain.CloseReasonRSIExit)
	}

	if netPct >= m.cfg.HardTakeProfitPct {
		return m.close(ctx, trade, domain.CloseReasonHardTP)
	}

	return m.trail(ctx, trade, currentPrice, netPct)
}

func (m *Manager) stopBreached(trade *domain.Trade, price float64) bool {
	if trade.StopLoss <= 0 {
		return false
	}
	if trade.Direction == domain.Long {
		return price <= trade.StopLoss
	}
	return price >= trade.StopLoss
}

// momentumExhausted checks short-horizon RSI for an extreme in the
// position's favor, gated on a minimum locked-in profit so a spike straight
// after entry does not flip-flop the position.
func (m *Manager) momentumExhausted(ctx context.Context, trade *domain.Trade, netPct float64) (bool, error) {
	if netPct < m.cfg.RSIExitMinProfit {
		return false, nil
	}
	klines, err := m.gateway.GetKlines(ctx, trade.Asset, rsiExitInterval, rsiExitBars)
	if err != nil {
		return false, err
	}
	rsi := indicators.RSI(klines, m.cfg.RSIPeriod)
	if trade.Direction == domain.Long {
		return rsi > m.cfg.RSIExitThreshold, nil
	}
	return rsi < 100-m.cfg.RSIExitThreshold, nil
}

// trail updates the best-seen price and ratchets the protective stop toward
// it. The local stop only advances after the venue confirms the replacement.
func (m *Manager) trail(ctx context.Context, trade *domain.Trade, currentPrice, netPct float64) error {
	improved := false
	if trade.Direction == domain.Long && currentPrice > trade.BestPrice {
		trade.BestPrice = currentPrice
		improved = true
	}
	if trade.Direction == domain.Short && currentPrice < trade.BestPrice {
		trade.BestPrice = currentPrice
		improved = true
	}

	candidate := m.candidateStop(trade, netPct)
	if candidate <= 0 || !m.stopImproves(trade, candidate) || !m.stopWorthReplacing(trade, candidate, currentPrice) {
		if improved {
			if _, err := m.trades.Save(ctx, trade); err != nil {
				return fmt.Errorf("persisting best price for %s: %w", trade.Asset, err)
			}
		}
		return nil
	}

	if err := m.replaceStop(ctx, trade, candidate); err != nil {
		return err
	}
	if !trade.IsOpen() {
		// Replacement failed and the position was flattened instead.
		return nil
	}
	if _, err := m.trades.Save(ctx, trade); err != nil {
		return fmt.Errorf("persisting trailed stop for %s: %w", trade.Asset, err)
	}
	m.logger.Info(ctx, "Stop trailed", map[string]interface{}{
		"symbol": trade.Asset, "stopLoss": trade.StopLoss, "bestPrice": trade.BestPrice, "netPct": netPct,
	})
	return nil
}

// candidateStop derives the desired stop level from the profit tier: zero
// below the breakeven trigger, entry-plus-offset in the breakeven band,
// best-price-minus-distance once the active trail is armed.
func (m *Manager) candidateStop(trade *domain.Trade, netPct float64) float64 {
	long := trade.Direction == domain.Long
	switch {
	case netPct >= m.cfg.ActiveTrailTrigger:
		if long {
			return trade.BestPrice * (1 - m.cfg.TrailDistance)
		}
		return trade.BestPrice * (1 + m.cfg.TrailDistance)
	case netPct >= m.cfg.BreakevenTrigger:
		if long {
			return trade.EntryPrice * (1 + m.cfg.BreakevenOffset)
		}
		return trade.EntryPrice * (1 - m.cfg.BreakevenOffset)
	default:
		return 0
	}
}

// stopImproves enforces the ratchet: the stop only ever tightens.
func (m *Manager) stopImproves(trade *domain.Trade, candidate float64) bool {
	if trade.Direction == domain.Long {
		return candidate > trade.StopLoss
	}
	return trade.StopLoss <= 0 || candidate < trade.StopLoss
}

// stopWorthReplacing suppresses cancel-and-replace churn for moves smaller
// than the configured fraction of price.
func (m *Manager) stopWorthReplacing(trade *domain.Trade, candidate, currentPrice float64) bool {
	if currentPrice <= 0 {
		return false
	}
	delta := candidate - trade.StopLoss
	if delta < 0 {
		delta = -delta
	}
	return delta/currentPrice*100 >= m.cfg.MinStopDeltaPct
}

// replaceStop cancels the resting stop and places the tightened one. If the
// replacement fails after the cancel succeeded the position is unprotected,
// so it is flattened immediately.
func (m *Manager) replaceStop(ctx context.Context, trade *domain.Trade, stopPrice float64) error {
	if err := m.gateway.CancelAllOrders(ctx, trade.Asset); err != nil {
		return fmt.Errorf("cancelling stop for %s: %w", trade.Asset, err)
	}
	limit := stopPrice * (1 - m.cfg.StopLimitOffset)
	if trade.Direction == domain.Short {
		limit = stopPrice * (1 + m.cfg.StopLimitOffset)
	}
	if err := m.placeStopWithRetry(ctx, trade.Asset, trade.Quantity, stopPrice, limit, trade.Direction.StopSide()); err != nil {
		m.logger.Error(ctx, err, "Stop replacement failed, position unprotected, flattening",
			map[string]interface{}{"symbol": trade.Asset})
		m.notify(ctx, fmt.Sprintf("⚠️ Stop replacement on %s failed, closing position at market.", trade.Asset))
		if cerr := m.close(ctx, trade, domain.CloseReasonStopLoss); cerr != nil {
			return fmt.Errorf("emergency close after stop replacement failure on %s: %w", trade.Asset, cerr)
		}
		return nil
	}
	trade.StopLoss = stopPrice
	return nil
}

// --- Closing ---

// close flattens the position at market and finalizes the trade record.
// Callers must hold the symbol lock.
func (m *Manager) close(ctx context.Context, trade *domain.Trade, reason domain.CloseReason) error {
	if err := m.gateway.CancelAllOrders(ctx, trade.Asset); err != nil {
		m.logger.Warn(ctx, "Pre-close order cancel failed", map[string]interface{}{"symbol": trade.Asset, "error": err.Error()})
	}

	fill, err := m.exitMarket(ctx, trade.Asset, trade.Direction, trade.Quantity)
	if err != nil {
		return fmt.Errorf("closing %s position on %s: %w", trade.Direction, trade.Asset, err)
	}
	exitPrice := trade.BestPrice
	if fill.Quantity > 0 {
		exitPrice = fill.QuoteQty / fill.Quantity
	}

	netPct, err := m.calc.NetResultPercent(ctx, trade, exitPrice)
	if err != nil {
		m.logger.Warn(ctx, "Fee-adjusted result unavailable, recording gross", map[string]interface{}{"symbol": trade.Asset, "error": err.Error()})
		netPct = pnl.GrossResultPercent(trade.Direction, trade.EntryPrice, exitPrice)
	}

	trade.ExitPrice = exitPrice
	trade.ExitTime = time.Now()
	trade.ProfitUSDT = trade.NotionalUSDT * netPct / 100
	trade.Status = domain.StatusClosed
	trade.CloseReason = reason
	if _, err := m.trades.Save(ctx, trade); err != nil {
		return fmt.Errorf("persisting closed trade %d: %w", trade.ID, err)
	}

	m.snapshotBalance(ctx)
	m.cooldown.Set(trade.Asset)

	m.logger.Info(ctx, "Position closed", map[string]interface{}{
		"symbol": trade.Asset, "reason": reason, "exitPrice": exitPrice,
		"netPct": netPct, "profitUSDT": trade.ProfitUSDT,
	})
	m.notify(ctx, fmt.Sprintf("📉 Closed %s %s (%s): %.2f%% net, %.2f USDT",
		trade.Direction, trade.Asset, reason, netPct, trade.ProfitUSDT))
	return nil
}

func (m *Manager) snapshotBalance(ctx context.Context) {
	balance, err := m.gateway.GetAccountBalance(ctx)
	if err != nil {
		m.logger.Warn(ctx, "Balance snapshot skipped", map[string]interface{}{"error": err.Error()})
		return
	}
	snap := &domain.BalanceSnapshot{Balance: balance, Timestamp: time.Now()}
	if err := m.snapshots.Save(ctx, snap); err != nil {
		m.logger.Error(ctx, err, "Failed to persist balance snapshot")
	}
}

// CloseInStore finalizes a trade record without touching the venue, used
// when reconciliation finds the holding already gone. The exit is marked at
// the current ticker price, falling back to the recorded best price.
func (m *Manager) CloseInStore(ctx context.Context, trade *domain.Trade, reason domain.CloseReason) error {
	lock := m.symbolLock(trade.Asset)
	lock.Lock()
	defer lock.Unlock()

	fresh, err := m.reloadOpen(ctx, trade.ID)
	if err != nil {
		return fmt.Errorf("CloseInStore failed: %w", err)
	}
	if fresh == nil {
		return nil
	}
	trade = fresh

	exitPrice := trade.BestPrice
	if price, err := m.gateway.GetPrice(ctx, trade.Asset); err == nil && price > 0 {
		exitPrice = price
	}
	netPct, err := m.calc.NetResultPercent(ctx, trade, exitPrice)
	if err != nil {
		netPct = pnl.GrossResultPercent(trade.Direction, trade.EntryPrice, exitPrice)
	}

	trade.ExitPrice = exitPrice
	trade.ExitTime = time.Now()
	trade.ProfitUSDT = trade.NotionalUSDT * netPct / 100
	trade.Status = domain.StatusClosed
	trade.CloseReason = reason
	if _, err := m.trades.Save(ctx, trade); err != nil {
		return fmt.Errorf("persisting reconciled trade %d: %w", trade.ID, err)
	}
	m.cooldown.Set(trade.Asset)

	m.logger.Info(ctx, "Position closed in store only", map[string]interface{}{
		"symbol": trade.Asset, "reason": reason, "exitPrice": exitPrice,
	})
	m.notify(ctx, fmt.Sprintf("🔄 %s position on %s was already flat on the venue, record closed (%s).",
		trade.Direction, trade.Asset, reason))
	return nil
}

// --- Reconciliation ---

// Reconcile compares every open LONG trade against the venue's actual asset
// holding. A holding below the dust threshold means the position was closed
// on the venue side (stop fill, manual sale), so the local record is closed
// without placing any order.
func (m *Manager) Reconcile(ctx context.Context) error {
	open, err := m.trades.FindOpen(ctx)
	if err != nil {
		return fmt.Errorf("Reconcile failed: %w", err)
	}
	var errs []error
	for _, trade := range open {
		if trade.Direction != domain.Long {
			// A simulated short holds quote currency, so the base-asset
			// balance says nothing about it.
			continue
		}
		held, err := m.gateway.GetAssetBalance(ctx, trade.BaseAsset())
		if err != nil {
			errs = append(errs, fmt.Errorf("balance check for %s: %w", trade.Asset, err))
			continue
		}
		if held < trade.Quantity*m.cfg.DustThresholdPct/100 {
			m.logger.Info(ctx, "Venue holding below dust threshold, reconciling", map[string]interface{}{
				"symbol": trade.Asset, "held": held, "recorded": trade.Quantity,
			})
			if err := m.CloseInStore(ctx, trade, domain.CloseReasonExchangeClose); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// --- Manual operations ---

// CloseByID closes a single open trade at market on operator request.
func (m *Manager) CloseByID(ctx context.Context, id int64) error {
	trade, err := m.trades.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("CloseByID failed: %w", err)
	}
	if trade == nil {
		return fmt.Errorf("trade %d: %w", id, ports.ErrNotFound)
	}
	if !trade.IsOpen() {
		return fmt.Errorf("trade %d is not open: %w", id, ports.ErrInvalidRequest)
	}
	lock := m.symbolLock(trade.Asset)
	lock.Lock()
	defer lock.Unlock()
	fresh, err := m.reloadOpen(ctx, id)
	if err != nil {
		return fmt.Errorf("CloseByID failed: %w", err)
	}
	if fresh == nil {
		return fmt.Errorf("trade %d is not open: %w", id, ports.ErrInvalidRequest)
	}
	return m.close(ctx, fresh, domain.CloseReasonManual)
}

// CloseAll closes every open trade at market on operator request.
func (m *Manager) CloseAll(ctx context.Context) error {
	open, err := m.trades.FindOpen(ctx)
	if err != nil {
		return fmt.Errorf("CloseAll failed: %w", err)
	}
	var errs []error
	for _, trade := range open {
		lock := m.symbolLock(trade.Asset)
		lock.Lock()
		fresh, err := m.reloadOpen(ctx, trade.ID)
		switch {
		case err != nil:
			errs = append(errs, err)
		case fresh != nil:
			if err := m.close(ctx, fresh, domain.CloseReasonManual); err != nil {
				errs = append(errs, err)
			}
		}
		lock.Unlock()
	}
	return errors.Join(errs...)
}
