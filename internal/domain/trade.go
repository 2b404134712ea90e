package domain

import "time"

// Trade represents one attempted or realized position.
//
// A Trade is only persisted with StatusOpen after the entry market order fill
// is confirmed AND a protective stop exists on the venue; Quantity and
// NotionalUSDT always reflect the actual fill, never the requested amount.
type Trade struct {
	ID           int64       // Assigned by the repository on first save
	Asset        string      // Venue symbol, e.g. "BTCUSDT"
	Direction    Direction   // LONG or SHORT
	EntryPrice   float64     // Price at entry
	ExitPrice    float64     // Price at exit (0 while open)
	Quantity     float64     // Base-asset units actually filled
	NotionalUSDT float64     // Quote-asset volume committed at entry
	BestPrice    float64     // Most favorable price seen since entry (trailing)
	StopLoss     float64     // Current protective stop trigger price
	EntryTime    time.Time   // Timestamp of entry fill
	ExitTime     time.Time   // Timestamp of exit (zero while open)
	ProfitUSDT   float64     // Realized net profit (set on close)
	Status       TradeStatus // OPEN, CLOSED or ERROR
	CloseReason  CloseReason // Why the position was closed (empty while open)
}

// IsOpen reports whether the trade is still an open position.
func (t *Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// BaseAsset strips the quote suffix from the symbol ("BTCUSDT" -> "BTC").
func (t *Trade) BaseAsset() string {
	const quote = "USDT"
	if len(t.Asset) > len(quote) && t.Asset[len(t.Asset)-len(quote):] == quote {
		return t.Asset[:len(t.Asset)-len(quote)]
	}
	return t.Asset
}
