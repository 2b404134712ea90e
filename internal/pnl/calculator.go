// Package pnl computes fee-adjusted profit figures for open and closed
// positions. Every percentage here is expressed in percent units (2.5 means
// 2.5%), matching how thresholds are configured.
package pnl

import (
	"context"
	"fmt"
	"time"

	"spotbot/internal/domain"
	"spotbot/internal/ports"
)

// Calculator derives profit metrics from trade records, the live venue fee
// schedule and current prices.
type Calculator struct {
	gateway ports.ExchangeGateway
	trades  ports.TradeRepository
	logger  ports.Logger
}

// Config holds the calculator's collaborators.
type Config struct {
	Gateway ports.ExchangeGateway
	Trades  ports.TradeRepository
	Logger  ports.Logger
}

// New creates a profit calculator.
func New(cfg Config) (*Calculator, error) {
	if cfg.Gateway == nil || cfg.Trades == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("gateway, trade repository and logger are required for pnl calculator")
	}
	return &Calculator{gateway: cfg.Gateway, trades: cfg.Trades, logger: cfg.Logger}, nil
}

// GrossResultPercent is the raw price move of a position in percent, signed
// from the position's point of view: a falling price is a gain for a SHORT.
func GrossResultPercent(direction domain.Direction, entryPrice, exitPrice float64) float64 {
	if entryPrice == 0 {
		return 0
	}
	diff := (exitPrice - entryPrice) / entryPrice * 100
	if direction == domain.Short {
		diff = -diff
	}
	return diff
}

// NetResultPercent is the gross price move minus round-trip taker fees. Both
// the entry and the exit cross the spread at market, so the taker rate is
// charged twice.
func (c *Calculator) NetResultPercent(ctx context.Context, trade *domain.Trade, exitPrice float64) (float64, error) {
	feePct, err := c.TotalFeePercent(ctx, trade.Asset)
	if err != nil {
		return 0, err
	}
	gross := GrossResultPercent(trade.Direction, trade.EntryPrice, exitPrice)
	return gross - feePct, nil
}

// TotalFeePercent is the round-trip cost of a position in percent: the
// taker rate charged on entry and again on exit.
func (c *Calculator) TotalFeePercent(ctx context.Context, symbol string) (float64, error) {
	fee, err := c.gateway.GetTradeFee(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("fetching fee for %s: %w", symbol, err)
	}
	return fee.Taker * 2 * 100, nil
}

// NetProfitUSDT converts the net percent result into quote currency using
// the position's committed notional.
func (c *Calculator) NetProfitUSDT(ctx context.Context, trade *domain.Trade, exitPrice float64) (float64, error) {
	netPct, err := c.NetResultPercent(ctx, trade, exitPrice)
	if err != nil {
		return 0, err
	}
	return trade.NotionalUSDT * netPct / 100, nil
}

// OccupiedBalance is the quote volume currently locked in open positions.
func OccupiedBalance(open []*domain.Trade) float64 {
	total := 0.0
	for _, t := range open {
		total += t.NotionalUSDT
	}
	return total
}

// UnrealizedPnL marks every open position to the supplied price snapshot,
// gross of exit fees. Positions whose symbol is missing from the snapshot
// are skipped.
func UnrealizedPnL(open []*domain.Trade, prices map[string]float64) float64 {
	total := 0.0
	for _, t := range open {
		price, ok := prices[t.Asset]
		if !ok || price <= 0 {
			continue
		}
		total += t.NotionalUSDT * GrossResultPercent(t.Direction, t.EntryPrice, price) / 100
	}
	return total
}

// TotalEquity is the free quote balance plus the notional locked in open
// positions plus their unrealized result.
func (c *Calculator) TotalEquity(ctx context.Context) (float64, error) {
	balance, err := c.gateway.GetAccountBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching account balance: %w", err)
	}
	open, err := c.trades.FindOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading open trades: %w", err)
	}
	prices, err := c.gateway.GetAllPrices(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching prices: %w", err)
	}
	return balance + OccupiedBalance(open) + UnrealizedPnL(open, prices), nil
}

// RealizedProfitSince sums the recorded net profit of trades closed at or
// after the given time.
func (c *Calculator) RealizedProfitSince(ctx context.Context, since time.Time) (float64, error) {
	all, err := c.trades.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading trades: %w", err)
	}
	total := 0.0
	for _, t := range all {
		if t.Status == domain.StatusClosed && !t.ExitTime.Before(since) {
			total += t.ProfitUSDT
		}
	}
	return total, nil
}

// TodayRealizedProfit sums net profit of trades closed since local midnight.
func (c *Calculator) TodayRealizedProfit(ctx context.Context) (float64, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return c.RealizedProfitSince(ctx, midnight)
}

// PerformancePercent compares current equity against a baseline. A zero
// baseline yields zero rather than a division blowup.
func PerformancePercent(equity, baseline float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (equity - baseline) / baseline * 100
}
