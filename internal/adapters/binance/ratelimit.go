package binance

import (
	"context"
	"sync/atomic"
	"time"
)

// usedWeightHeader is the response header through which the venue reports the
// request weight consumed in the current rolling minute.
const usedWeightHeader = "x-mbx-used-weight-1m"

// rateBudget tracks the venue-reported used weight for the rolling 1-minute
// window plus the signed-request clock offset. Both are shared across every
// gateway call and mutated atomically.
type rateBudget struct {
	usedWeight atomic.Int64
	// serverTimeOffset is serverTime - localTime in milliseconds.
	serverTimeOffset atomic.Int64
}

// Timestamp returns the millisecond timestamp to stamp on a signed request.
func (r *rateBudget) Timestamp() int64 {
	return time.Now().UnixMilli() + r.serverTimeOffset.Load()
}

// SetOffset records a fresh local-to-server clock offset.
func (r *rateBudget) SetOffset(serverTimeMillis int64) {
	r.serverTimeOffset.Store(serverTimeMillis - time.Now().UnixMilli())
}

// Observe overwrites the local counter with the venue-reported value. Venue
// truth wins over the local estimate.
func (r *rateBudget) Observe(weight int64) {
	r.usedWeight.Store(weight)
}

// Throttle blocks until the next rolling minute when the used weight is above
// limit, then resets the local counter. This is a voluntary throttle kept
// below the venue's hard ban threshold.
func (r *rateBudget) Throttle(ctx context.Context, limit int64) error {
	if r.usedWeight.Load() <= limit {
		return nil
	}
	wait := time.Until(time.Now().Truncate(time.Minute).Add(time.Minute)) + time.Second
	select {
	case <-time.After(wait):
		r.usedWeight.Store(0)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
