package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotbot/internal/domain"
	"spotbot/internal/ports"
	"spotbot/internal/position"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type stubGateway struct {
	volume float64
	klines []*domain.Kline
}

func (s *stubGateway) SyncServerTime(ctx context.Context) error { return nil }
func (s *stubGateway) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return 0, nil
}
func (s *stubGateway) GetAllPrices(ctx context.Context) (map[string]float64, error) {
	return nil, nil
}
func (s *stubGateway) Get24hVolume(ctx context.Context, symbol string) (float64, error) {
	return s.volume, nil
}
func (s *stubGateway) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	return s.klines, nil
}
func (s *stubGateway) GetAccountBalance(ctx context.Context) (float64, error)            { return 0, nil }
func (s *stubGateway) GetAssetBalance(ctx context.Context, asset string) (float64, error) { return 0, nil }
func (s *stubGateway) GetTradeFee(ctx context.Context, symbol string) (ports.TradeFee, error) {
	return ports.TradeFee{Maker: 0.001, Taker: 0.001}, nil
}
func (s *stubGateway) GetStepSize(ctx context.Context, symbol string) (float64, error) {
	return 0.001, nil
}
func (s *stubGateway) GetDailyPnL(ctx context.Context) (float64, error)                   { return 0, nil }
func (s *stubGateway) GetAllTimePnL(ctx context.Context, symbol string) (float64, error) { return 0, nil }
func (s *stubGateway) PlaceMarketBuy(ctx context.Context, symbol string, quoteUSDT float64) (*ports.MarketFill, error) {
	return nil, nil
}
func (s *stubGateway) PlaceMarketBuyBase(ctx context.Context, symbol string, quantity float64) (*ports.MarketFill, error) {
	return nil, nil
}
func (s *stubGateway) PlaceMarketSell(ctx context.Context, symbol string, quantity float64) (*ports.MarketFill, error) {
	return nil, nil
}
func (s *stubGateway) PlaceStopLossLimit(ctx context.Context, symbol string, quantity, stopPrice, limitPrice float64, side domain.OrderSide) (string, error) {
	return "", nil
}
func (s *stubGateway) CancelAllOrders(ctx context.Context, symbol string) error { return nil }

type stubTrades struct {
	open []*domain.Trade
}

func (s *stubTrades) Save(ctx context.Context, trade *domain.Trade) (int64, error)  { return 1, nil }
func (s *stubTrades) FindByID(ctx context.Context, id int64) (*domain.Trade, error) { return nil, nil }
func (s *stubTrades) FindAll(ctx context.Context) ([]*domain.Trade, error)          { return s.open, nil }
func (s *stubTrades) FindOpen(ctx context.Context) ([]*domain.Trade, error)         { return s.open, nil }
func (s *stubTrades) DeleteClosed(ctx context.Context) (int64, error)               { return 0, nil }

// candles builds bars with High=close+2, Low=close-2 and unit volume, which
// keeps every indicator hand-computable in the tests below.
func candles(closes ...float64) []*domain.Kline {
	out := make([]*domain.Kline, len(closes))
	for i, c := range closes {
		out[i] = &domain.Kline{High: c + 2, Low: c - 2, Close: c, Volume: 1}
	}
	return out
}

func newEvaluator(t *testing.T, gw *stubGateway, trades *stubTrades, cooldown *position.CooldownTracker, shortBollK float64) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(Config{
		Gateway:  gw,
		Trades:   trades,
		Cooldown: cooldown,
		Logger:   nopLogger{},

		Interval:       "5m",
		KlineLimit:     6,
		SMATrendPeriod: 2,
		RSIPeriod:      2,
		RSILongMax:     50,
		RSIShortMin:    65,
		BollPeriod:     4,
		BollStdDev:     shortBollK,
		MACDFast:       1,
		MACDSlow:       3,
		MACDSignal:     2,
		ADXPeriod:      2,
		MinADX:         20,
		MinQuoteVolume: 5_000_000,
	})
	require.NoError(t, err)
	return e
}

func settings() *domain.BotSettings {
	s := domain.DefaultSettings()
	s.MaxOpenPositions = 3
	return s
}

// Pullback in an uptrend context: price above the short trend mean, weak
// RSI, price under the band middle, MACD above its signal.
var longWindow = candles(120, 118, 110, 112, 100, 102)

// Rally into an overextension: strong RSI, price at the upper band, MACD
// below its signal.
var shortWindow = candles(80, 82, 90, 88, 100, 98)

func TestEvaluate_LongSignal(t *testing.T) {
	gw := &stubGateway{volume: 10_000_000, klines: longWindow}
	e := newEvaluator(t, gw, &stubTrades{}, position.NewCooldownTracker(time.Minute), 2.0)

	signal, err := e.Evaluate(context.Background(), "BTCUSDT", 103, settings())
	require.NoError(t, err)
	assert.Equal(t, SignalLong, signal)
	assert.Equal(t, domain.Long, signal.Direction())
}

func TestEvaluate_ShortSignal(t *testing.T) {
	gw := &stubGateway{volume: 10_000_000, klines: shortWindow}
	e := newEvaluator(t, gw, &stubTrades{}, position.NewCooldownTracker(time.Minute), 0.5)

	signal, err := e.Evaluate(context.Background(), "BTCUSDT", 97, settings())
	require.NoError(t, err)
	assert.Equal(t, SignalShort, signal)
	assert.Equal(t, domain.Short, signal.Direction())
}

func TestEvaluate_Preconditions(t *testing.T) {
	gw := &stubGateway{volume: 10_000_000, klines: longWindow}

	t.Run("cooldown blocks entry", func(t *testing.T) {
		cooldown := position.NewCooldownTracker(time.Minute)
		cooldown.Set("BTCUSDT")
		e := newEvaluator(t, gw, &stubTrades{}, cooldown, 2.0)
		signal, err := e.Evaluate(context.Background(), "BTCUSDT", 103, settings())
		require.NoError(t, err)
		assert.Equal(t, SignalNone, signal)
	})

	t.Run("position cap blocks entry", func(t *testing.T) {
		trades := &stubTrades{open: []*domain.Trade{
			{Asset: "A", Status: domain.StatusOpen},
			{Asset: "B", Status: domain.StatusOpen},
			{Asset: "C", Status: domain.StatusOpen},
		}}
		e := newEvaluator(t, gw, trades, position.NewCooldownTracker(time.Minute), 2.0)
		signal, err := e.Evaluate(context.Background(), "BTCUSDT", 103, settings())
		require.NoError(t, err)
		assert.Equal(t, SignalNone, signal)
	})

	t.Run("existing position on symbol blocks entry", func(t *testing.T) {
		trades := &stubTrades{open: []*domain.Trade{{Asset: "BTCUSDT", Status: domain.StatusOpen}}}
		e := newEvaluator(t, gw, trades, position.NewCooldownTracker(time.Minute), 2.0)
		signal, err := e.Evaluate(context.Background(), "BTCUSDT", 103, settings())
		require.NoError(t, err)
		assert.Equal(t, SignalNone, signal)
	})

	t.Run("thin volume blocks entry", func(t *testing.T) {
		thin := &stubGateway{volume: 1_000_000, klines: longWindow}
		e := newEvaluator(t, thin, &stubTrades{}, position.NewCooldownTracker(time.Minute), 2.0)
		signal, err := e.Evaluate(context.Background(), "BTCUSDT", 103, settings())
		require.NoError(t, err)
		assert.Equal(t, SignalNone, signal)
	})

	t.Run("zero price blocks entry", func(t *testing.T) {
		e := newEvaluator(t, gw, &stubTrades{}, position.NewCooldownTracker(time.Minute), 2.0)
		signal, err := e.Evaluate(context.Background(), "BTCUSDT", 0, settings())
		require.NoError(t, err)
		assert.Equal(t, SignalNone, signal)
	})
}

func TestEvaluate_InsufficientHistoryFailsGates(t *testing.T) {
	gw := &stubGateway{volume: 10_000_000, klines: candles(100, 101, 102)}
	e := newEvaluator(t, gw, &stubTrades{}, position.NewCooldownTracker(time.Minute), 2.0)

	signal, err := e.Evaluate(context.Background(), "BTCUSDT", 103, settings())
	require.NoError(t, err)
	assert.Equal(t, SignalNone, signal, "indicator sentinels must never produce an entry")
}
