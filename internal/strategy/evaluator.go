// Package strategy decides whether a fresh position should be opened on a
// symbol from a single market snapshot.
package strategy

import (
	"context"
	"fmt"

	"spotbot/internal/domain"
	"spotbot/internal/indicators"
	"spotbot/internal/ports"
	"spotbot/internal/position"
)

// Signal is the outcome of one evaluation.
type Signal int

const (
	SignalNone Signal = iota
	SignalLong
	SignalShort
)

func (s Signal) String() string {
	switch s {
	case SignalLong:
		return "LONG"
	case SignalShort:
		return "SHORT"
	default:
		return "NONE"
	}
}

// Direction maps an entry signal to a position direction. Only valid for
// SignalLong and SignalShort.
func (s Signal) Direction() domain.Direction {
	if s == SignalShort {
		return domain.Short
	}
	return domain.Long
}

// Evaluator runs the indicator gates over one candle window per symbol. All
// indicator math is pure; the evaluator never places orders.
type Evaluator struct {
	gateway  ports.ExchangeGateway
	trades   ports.TradeRepository
	cooldown *position.CooldownTracker
	logger   ports.Logger
	cfg      Config
}

// Config holds the evaluator's collaborators and gate thresholds.
type Config struct {
	Gateway  ports.ExchangeGateway
	Trades   ports.TradeRepository
	Cooldown *position.CooldownTracker
	Logger   ports.Logger

	Interval       string
	KlineLimit     int
	SMATrendPeriod int
	RSIPeriod      int
	RSILongMax     float64
	RSIShortMin    float64
	BollPeriod     int
	BollStdDev     float64
	MACDFast       int
	MACDSlow       int
	MACDSignal     int
	ADXPeriod      int
	MinADX         float64
	MinQuoteVolume float64
}

// NewEvaluator creates a strategy evaluator.
func NewEvaluator(cfg Config) (*Evaluator, error) {
	if cfg.Gateway == nil || cfg.Trades == nil || cfg.Cooldown == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("gateway, trade repository, cooldown tracker and logger are required for evaluator")
	}
	if cfg.Interval == "" {
		cfg.Interval = "5m"
	}
	if cfg.KlineLimit <= 0 {
		cfg.KlineLimit = 250
	}
	return &Evaluator{
		gateway:  cfg.Gateway,
		trades:   cfg.Trades,
		cooldown: cfg.Cooldown,
		logger:   cfg.Logger,
		cfg:      cfg,
	}, nil
}

// Evaluate runs the preconditions and indicator gates for one symbol and
// returns the entry signal, SignalNone when any gate fails.
func (e *Evaluator) Evaluate(ctx context.Context, symbol string, currentPrice float64, settings *domain.BotSettings) (Signal, error) {
	if currentPrice <= 0 {
		return SignalNone, nil
	}
	if e.cooldown.Active(symbol) {
		return SignalNone, nil
	}

	open, err := e.trades.FindOpen(ctx)
	if err != nil {
		return SignalNone, fmt.Errorf("loading open trades: %w", err)
	}
	if len(open) >= settings.MaxOpenPositions {
		return SignalNone, nil
	}
	for _, t := range open {
		if t.Asset == symbol {
			return SignalNone, nil
		}
	}

	volume, err := e.gateway.Get24hVolume(ctx, symbol)
	if err != nil {
		return SignalNone, fmt.Errorf("volume check for %s: %w", symbol, err)
	}
	if volume < e.cfg.MinQuoteVolume {
		return SignalNone, nil
	}

	klines, err := e.gateway.GetKlines(ctx, symbol, e.cfg.Interval, e.cfg.KlineLimit)
	if err != nil {
		return SignalNone, fmt.Errorf("loading candles for %s: %w", symbol, err)
	}

	signal := e.gates(symbol, currentPrice, klines)
	if signal != SignalNone {
		e.logger.Info(ctx, "Entry signal", map[string]interface{}{"symbol": symbol, "signal": signal.String(), "price": currentPrice})
	}
	return signal, nil
}

// gates evaluates every indicator condition from one candle window. A
// sentinel (insufficient history) fails its gate rather than passing it.
func (e *Evaluator) gates(symbol string, price float64, klines []*domain.Kline) Signal {
	smaTrend := indicators.SMA(klines, e.cfg.SMATrendPeriod)
	rsi := indicators.RSI(klines, e.cfg.RSIPeriod)
	bands := indicators.BollingerBands(klines, e.cfg.BollPeriod, e.cfg.BollStdDev)
	macd := indicators.MACD(klines, e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
	adx := indicators.ADX(klines, e.cfg.ADXPeriod)
	vwap := indicators.VWAP(klines, e.cfg.KlineLimit)

	if smaTrend <= 0 || bands.Middle <= 0 || adx <= 0 || vwap <= 0 {
		return SignalNone
	}
	if adx < e.cfg.MinADX {
		return SignalNone
	}

	if price > smaTrend &&
		rsi < e.cfg.RSILongMax &&
		price < bands.Middle &&
		macd.MACDLine > macd.SignalLine &&
		price <= vwap {
		return SignalLong
	}

	if price < smaTrend &&
		rsi > e.cfg.RSIShortMin &&
		price >= bands.Upper &&
		macd.MACDLine < macd.SignalLine &&
		price >= vwap {
		return SignalShort
	}

	return SignalNone
}
