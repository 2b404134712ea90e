package ports

import (
	"context"

	"spotbot/internal/domain"
)

// MarketFill is the confirmed result of a market order: what actually
// executed, which may differ from what was requested.
type MarketFill struct {
	Quantity float64 // Base-asset units filled
	QuoteQty float64 // Quote-asset (USDT) amount moved
	OrderID  int64   // Venue order id
}

// TradeFee holds the current maker/taker commission for a symbol, as decimal
// fractions (0.001 = 0.1%).
type TradeFee struct {
	Maker float64
	Taker float64
}

// ExchangeGateway turns logical venue operations into authenticated HTTP
// calls while enforcing the venue's rate contract and classifying failures.
//
// Trading and account calls short-circuit with ErrBotOffline while the
// operational state is OFFLINE; market-data calls may still be served from
// cache.
type ExchangeGateway interface {
	// SyncServerTime refreshes the local-to-server clock offset used to
	// stamp signed requests.
	SyncServerTime(ctx context.Context) error

	// GetPrice returns the last ticker price for a symbol, or a negative
	// value when unknown. Served from a TTL cache.
	GetPrice(ctx context.Context, symbol string) (float64, error)
	// GetAllPrices returns the last ticker price for every symbol.
	GetAllPrices(ctx context.Context) (map[string]float64, error)
	// Get24hVolume returns the rolling 24h quote volume for a symbol.
	Get24hVolume(ctx context.Context, symbol string) (float64, error)
	// GetKlines returns up to limit candles, most recent last. Served from
	// a TTL cache keyed by symbol, interval and limit.
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error)

	// GetAccountBalance returns the free USDT balance.
	GetAccountBalance(ctx context.Context) (float64, error)
	// GetAssetBalance returns free+locked units of the base asset.
	GetAssetBalance(ctx context.Context, asset string) (float64, error)
	// GetTradeFee returns the current commission schedule for a symbol,
	// falling back to 0.1%/0.1% when the venue cannot be queried.
	GetTradeFee(ctx context.Context, symbol string) (TradeFee, error)
	// GetStepSize returns the LOT_SIZE quantity step for a symbol.
	GetStepSize(ctx context.Context, symbol string) (float64, error)
	// GetDailyPnL estimates the last-24h balance change from account
	// snapshots, in USDT.
	GetDailyPnL(ctx context.Context) (float64, error)
	// GetAllTimePnL aggregates realized profit for a symbol from the
	// venue's trade history, in USDT.
	GetAllTimePnL(ctx context.Context, symbol string) (float64, error)

	// PlaceMarketBuy spends quoteUSDT on a market buy and returns the fill.
	PlaceMarketBuy(ctx context.Context, symbol string, quoteUSDT float64) (*MarketFill, error)
	// PlaceMarketBuyBase buys an exact base-asset quantity at market, used to
	// flatten simulated short positions.
	PlaceMarketBuyBase(ctx context.Context, symbol string, quantity float64) (*MarketFill, error)
	// PlaceMarketSell sells quantity base units at market and returns the fill.
	PlaceMarketSell(ctx context.Context, symbol string, quantity float64) (*MarketFill, error)
	// PlaceStopLossLimit places a protective STOP_LOSS_LIMIT order and
	// returns the venue order id.
	PlaceStopLossLimit(ctx context.Context, symbol string, quantity, stopPrice, limitPrice float64, side domain.OrderSide) (string, error)
	// CancelAllOrders cancels every open order for a symbol. Absence of
	// orders is success, not failure.
	CancelAllOrders(ctx context.Context, symbol string) error
}
