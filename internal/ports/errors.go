package ports

import "errors"

// Standard application-level errors. Adapters wrap underlying infrastructure
// errors with these so callers can branch on the recovery strategy instead of
// on venue-specific codes.
var (
	// General
	ErrUnknown         = errors.New("unknown error occurred")
	ErrInvalidRequest  = errors.New("invalid request parameters or format")
	ErrNotFound        = errors.New("resource not found")
	ErrTimeout         = errors.New("operation timed out")
	ErrContextCanceled = errors.New("operation canceled via context")

	// Exchange
	ErrBotOffline           = errors.New("bot is OFFLINE, trading calls rejected")
	ErrRateLimited          = errors.New("venue rate limit exceeded")
	ErrClockSkew            = errors.New("request timestamp outside venue receive window")
	ErrBanned               = errors.New("venue banned the client IP")
	ErrAuthenticationFailed = errors.New("venue authentication failed (check API keys)")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrOrderNotFound        = errors.New("order not found on the venue")
	ErrOrderPlacementFailed = errors.New("failed to place order")
	ErrZeroFill             = errors.New("market order confirmed with zero filled quantity")

	// Database
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrUpdateFailed = errors.New("database update failed")
)
