package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotbot/internal/domain"
	"spotbot/internal/pnl"
	"spotbot/internal/ports"
	"spotbot/internal/position"
	"spotbot/internal/strategy"
)

// Mock implementations

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockGateway struct {
	balance float64
	prices  map[string]float64
	volume  float64
	klines  []*domain.Kline

	sellFill *ports.MarketFill

	allPricesCalls int
	buyCalls       int
	sellCalls      int
	cancelCalls    int
}

func (m *mockGateway) SyncServerTime(ctx context.Context) error { return nil }

func (m *mockGateway) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return m.prices[symbol], nil
}

func (m *mockGateway) GetAllPrices(ctx context.Context) (map[string]float64, error) {
	m.allPricesCalls++
	return m.prices, nil
}

func (m *mockGateway) Get24hVolume(ctx context.Context, symbol string) (float64, error) {
	return m.volume, nil
}

func (m *mockGateway) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	return m.klines, nil
}

func (m *mockGateway) GetAccountBalance(ctx context.Context) (float64, error) {
	return m.balance, nil
}

func (m *mockGateway) GetAssetBalance(ctx context.Context, asset string) (float64, error) {
	return 0, nil
}

func (m *mockGateway) GetTradeFee(ctx context.Context, symbol string) (ports.TradeFee, error) {
	return ports.TradeFee{Maker: 0.001, Taker: 0.001}, nil
}

func (m *mockGateway) GetStepSize(ctx context.Context, symbol string) (float64, error) {
	return 0.000001, nil
}

func (m *mockGateway) GetDailyPnL(ctx context.Context) (float64, error)                  { return 0, nil }
func (m *mockGateway) GetAllTimePnL(ctx context.Context, symbol string) (float64, error) { return 0, nil }

func (m *mockGateway) PlaceMarketBuy(ctx context.Context, symbol string, quoteUSDT float64) (*ports.MarketFill, error) {
	m.buyCalls++
	return &ports.MarketFill{}, nil
}

func (m *mockGateway) PlaceMarketBuyBase(ctx context.Context, symbol string, quantity float64) (*ports.MarketFill, error) {
	return &ports.MarketFill{}, nil
}

func (m *mockGateway) PlaceMarketSell(ctx context.Context, symbol string, quantity float64) (*ports.MarketFill, error) {
	m.sellCalls++
	return m.sellFill, nil
}

func (m *mockGateway) PlaceStopLossLimit(ctx context.Context, symbol string, quantity, stopPrice, limitPrice float64, side domain.OrderSide) (string, error) {
	return "1", nil
}

func (m *mockGateway) CancelAllOrders(ctx context.Context, symbol string) error {
	m.cancelCalls++
	return nil
}

type mockTradeRepo struct {
	trades map[int64]*domain.Trade
	nextID int64
}

func newMockTradeRepo() *mockTradeRepo {
	return &mockTradeRepo{trades: make(map[int64]*domain.Trade)}
}

func (m *mockTradeRepo) Save(ctx context.Context, trade *domain.Trade) (int64, error) {
	if trade.ID == 0 {
		m.nextID++
		trade.ID = m.nextID
	}
	m.trades[trade.ID] = trade
	return trade.ID, nil
}

func (m *mockTradeRepo) FindByID(ctx context.Context, id int64) (*domain.Trade, error) {
	return m.trades[id], nil
}

func (m *mockTradeRepo) FindAll(ctx context.Context) ([]*domain.Trade, error) {
	out := make([]*domain.Trade, 0, len(m.trades))
	for _, t := range m.trades {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTradeRepo) FindOpen(ctx context.Context) ([]*domain.Trade, error) {
	var out []*domain.Trade
	for _, t := range m.trades {
		if t.IsOpen() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTradeRepo) DeleteClosed(ctx context.Context) (int64, error) { return 0, nil }

type mockSettingsRepo struct {
	settings  *domain.BotSettings
	saveCalls int
}

func (m *mockSettingsRepo) Get(ctx context.Context) (*domain.BotSettings, error) {
	if m.settings == nil {
		return domain.DefaultSettings(), nil
	}
	return m.settings, nil
}

func (m *mockSettingsRepo) Save(ctx context.Context, settings *domain.BotSettings) error {
	m.saveCalls++
	m.settings = settings
	return nil
}

type mockSnapshotRepo struct {
	saved []*domain.BalanceSnapshot
}

func (m *mockSnapshotRepo) Save(ctx context.Context, snap *domain.BalanceSnapshot) error {
	m.saved = append(m.saved, snap)
	return nil
}

func (m *mockSnapshotRepo) FindSince(ctx context.Context, since time.Time) ([]*domain.BalanceSnapshot, error) {
	return m.saved, nil
}

// Test fixture

type fixture struct {
	service   *Service
	gateway   *mockGateway
	trades    *mockTradeRepo
	settings  *mockSettingsRepo
	snapshots *mockSnapshotRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gateway := &mockGateway{
		balance: 1000,
		prices:  map[string]float64{"BTCUSDT": 100, "ETHUSDT": 50, "SOLUSDT": 20},
		volume:  10_000_000,
	}
	trades := newMockTradeRepo()
	settings := &mockSettingsRepo{}
	snapshots := &mockSnapshotRepo{}
	logger := &mockLogger{}
	cooldown := position.NewCooldownTracker(5 * time.Minute)

	calc, err := pnl.New(pnl.Config{Gateway: gateway, Trades: trades, Logger: logger})
	require.NoError(t, err)

	manager, err := position.NewManager(position.Config{
		Gateway:            gateway,
		Trades:             trades,
		Snapshots:          snapshots,
		Calc:               calc,
		Cooldown:           cooldown,
		Logger:             logger,
		MinNotionalUSDT:    10,
		StopLossPercent:    2.0,
		StopLimitOffset:    0.5,
		StopRetryAttempts:  2,
		DustThresholdPct:   5.0,
		HardTakeProfitPct:  2.5,
		RSIExitThreshold:   70,
		RSIExitMinProfit:   0.5,
		RSIPeriod:          14,
		BreakevenTrigger:   0.8,
		BreakevenOffset:    0.5,
		ActiveTrailTrigger: 2.0,
		TrailDistance:      1.5,
		MinStopDeltaPct:    0.1,
	})
	require.NoError(t, err)

	evaluator, err := strategy.NewEvaluator(strategy.Config{
		Gateway:        gateway,
		Trades:         trades,
		Cooldown:       cooldown,
		Logger:         logger,
		Interval:       "5m",
		KlineLimit:     250,
		SMATrendPeriod: 200,
		RSIPeriod:      14,
		RSILongMax:     50,
		RSIShortMin:    65,
		BollPeriod:     20,
		BollStdDev:     2.0,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		ADXPeriod:      14,
		MinADX:         20,
		MinQuoteVolume: 5_000_000,
	})
	require.NoError(t, err)

	service, err := New(Config{
		Gateway:   gateway,
		Trades:    trades,
		Settings:  settings,
		Snapshots: snapshots,
		Manager:   manager,
		Evaluator: evaluator,
		Calc:      calc,
		Logger:    logger,
	})
	require.NoError(t, err)

	return &fixture{
		service:   service,
		gateway:   gateway,
		trades:    trades,
		settings:  settings,
		snapshots: snapshots,
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestDecisionTickSkipsWhenOffline(t *testing.T) {
	f := newFixture(t)
	f.settings.settings = &domain.BotSettings{
		ID:     domain.SettingsID,
		State:  domain.StateOffline,
		Assets: "BTCUSDT",
	}

	f.service.decisionTick(context.Background())

	assert.Equal(t, 0, f.gateway.allPricesCalls)
	assert.Equal(t, 0, f.gateway.buyCalls)
	assert.Equal(t, 0, f.gateway.sellCalls)
}

func TestDecisionTickNoSignalNoOrders(t *testing.T) {
	f := newFixture(t)
	// No candle history: every indicator reports its no-data value and
	// every gate fails.
	f.service.decisionTick(context.Background())

	assert.Equal(t, 1, f.gateway.allPricesCalls)
	assert.Equal(t, 0, f.gateway.buyCalls)
	assert.Equal(t, 0, f.gateway.sellCalls)
}

func TestDecisionTickFlattensBreachedStop(t *testing.T) {
	f := newFixture(t)
	f.gateway.prices["BTCUSDT"] = 97
	f.gateway.sellFill = &ports.MarketFill{Quantity: 0.5, QuoteQty: 48.5, OrderID: 7}

	trade := &domain.Trade{
		Asset:        "BTCUSDT",
		Direction:    domain.Long,
		EntryPrice:   100,
		Quantity:     0.5,
		NotionalUSDT: 50,
		BestPrice:    100,
		StopLoss:     98,
		EntryTime:    time.Now().Add(-time.Hour),
		Status:       domain.StatusOpen,
	}
	_, err := f.trades.Save(context.Background(), trade)
	require.NoError(t, err)

	f.service.decisionTick(context.Background())

	assert.Equal(t, 1, f.gateway.sellCalls)
	assert.Equal(t, 1, f.gateway.cancelCalls)
	assert.Equal(t, domain.StatusClosed, trade.Status)
	assert.Equal(t, domain.CloseReasonStopLoss, trade.CloseReason)
	assert.InDelta(t, 97.0, trade.ExitPrice, 1e-9)
}

func TestSnapshotTickSeedsBaseline(t *testing.T) {
	f := newFixture(t)

	f.service.snapshotTick(context.Background())

	require.Len(t, f.snapshots.saved, 1)
	assert.InDelta(t, 1000.0, f.snapshots.saved[0].Balance, 1e-9)
	require.NotNil(t, f.settings.settings)
	assert.InDelta(t, 1000.0, f.settings.settings.BaselineEquity, 1e-9)
	assert.Equal(t, 1, f.settings.saveCalls)
}

func TestSnapshotTickKeepsExistingBaseline(t *testing.T) {
	f := newFixture(t)
	f.settings.settings = &domain.BotSettings{
		ID:             domain.SettingsID,
		State:          domain.StateOnline,
		Assets:         "BTCUSDT",
		BaselineEquity: 800,
	}

	f.service.snapshotTick(context.Background())

	require.Len(t, f.snapshots.saved, 1)
	assert.Equal(t, 0, f.settings.saveCalls)
	assert.InDelta(t, 800.0, f.settings.settings.BaselineEquity, 1e-9)
}