package domain

// Direction is the side of a position. SHORT is simulated on a spot account
// by selling first and buying back later.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// TradeStatus represents the lifecycle state of a trade record.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "OPEN"
	StatusClosed TradeStatus = "CLOSED"
	StatusError  TradeStatus = "ERROR"
)

// OperationalState is the global on/off switch for the bot. The exchange
// gateway flips it to Offline when the venue bans the client IP.
type OperationalState string

const (
	StateOnline  OperationalState = "ONLINE"
	StateOffline OperationalState = "OFFLINE"
)

// OrderSide is the venue-level side of an order.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// EntrySide maps a position direction to the order side that opens it.
func (d Direction) EntrySide() OrderSide {
	if d == Long {
		return Buy
	}
	return Sell
}

// ExitSide maps a position direction to the order side that flattens it.
func (d Direction) ExitSide() OrderSide {
	if d == Long {
		return Sell
	}
	return Buy
}

// StopSide is the side of the protective stop order for a direction.
// Identical to ExitSide but named for intent at call sites.
func (d Direction) StopSide() OrderSide {
	return d.ExitSide()
}

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss      CloseReason = "STOP_LOSS"
	CloseReasonRSIExit       CloseReason = "RSI_EXHAUSTION"
	CloseReasonHardTP        CloseReason = "HARD_TAKE_PROFIT"
	CloseReasonManual        CloseReason = "MANUAL"
	CloseReasonExchangeClose CloseReason = "EXCHANGE_AUTO_CLOSE"
	CloseReasonRollback      CloseReason = "PROTECTION_ROLLBACK"
)
