package position

import (
	"sync"
	"time"
)

// CooldownTracker blocks re-entry into a symbol for a fixed window after a
// position there was closed. Expired entries are evicted lazily on read.
type CooldownTracker struct {
	mu       sync.Mutex
	duration time.Duration
	until    map[string]time.Time
}

// NewCooldownTracker creates a tracker with the given cooldown window.
func NewCooldownTracker(duration time.Duration) *CooldownTracker {
	return &CooldownTracker{
		duration: duration,
		until:    make(map[string]time.Time),
	}
}

// Set starts (or restarts) the cooldown window for a symbol.
func (c *CooldownTracker) Set(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until[symbol] = time.Now().Add(c.duration)
}

// Active reports whether the symbol is still inside its cooldown window.
func (c *CooldownTracker) Active(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline, ok := c.until[symbol]
	if !ok {
		return false
	}
	if time.Now().After(deadline) {
		delete(c.until, symbol)
		return false
	}
	return true
}
