package position

import (
	"testing"
	"time"
)

func TestCooldownTracker(t *testing.T) {
	c := NewCooldownTracker(20 * time.Millisecond)

	if c.Active("BTCUSDT") {
		t.Error("fresh tracker must not report an active cooldown")
	}

	c.Set("BTCUSDT")
	if !c.Active("BTCUSDT") {
		t.Error("cooldown must be active immediately after Set")
	}
	if c.Active("ETHUSDT") {
		t.Error("cooldown must be per-symbol")
	}

	time.Sleep(30 * time.Millisecond)
	if c.Active("BTCUSDT") {
		t.Error("cooldown must expire after its window")
	}
}
