package binance

import (
	"sync"
	"time"

	"spotbot/internal/domain"
)

const (
	marketCacheTTL  = 10 * time.Second
	accountCacheTTL = 30 * time.Second
)

// priceCache holds a full ticker snapshot (every symbol at once, matching the
// venue's bulk ticker endpoint) with a TTL. Staleness triggers a refetch, not
// an error.
type priceCache struct {
	mu      sync.RWMutex
	prices  map[string]float64
	fetched time.Time
	ttl     time.Duration
}

func newPriceCache(ttl time.Duration) *priceCache {
	return &priceCache{prices: map[string]float64{}, ttl: ttl}
}

func (c *priceCache) Fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.fetched) < c.ttl && len(c.prices) > 0
}

func (c *priceCache) Get(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[symbol]
	return p, ok
}

func (c *priceCache) All() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.prices))
	for k, v := range c.prices {
		out[k] = v
	}
	return out
}

func (c *priceCache) Replace(prices map[string]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices = prices
	c.fetched = time.Now()
}

// klineCache holds candle series keyed by symbol, interval and length, each
// entry with its own fetch time.
type klineCache struct {
	mu      sync.RWMutex
	entries map[string]klineEntry
	ttl     time.Duration
}

type klineEntry struct {
	klines  []*domain.Kline
	fetched time.Time
}

func newKlineCache(ttl time.Duration) *klineCache {
	return &klineCache{entries: map[string]klineEntry{}, ttl: ttl}
}

func (c *klineCache) Get(key string) ([]*domain.Kline, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Since(e.fetched) >= c.ttl {
		return nil, false
	}
	return e.klines, true
}

func (c *klineCache) Put(key string, klines []*domain.Kline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = klineEntry{klines: klines, fetched: time.Now()}
}

// accountCache holds the parsed balance sheet from the account endpoint.
// Account data gates money-moving decisions, so its TTL is short and it is
// invalidated after every order.
type accountCache struct {
	mu       sync.RWMutex
	balances map[string]assetBalance
	fetched  time.Time
	ttl      time.Duration
}

type assetBalance struct {
	Free   float64
	Locked float64
}

func newAccountCache(ttl time.Duration) *accountCache {
	return &accountCache{ttl: ttl}
}

func (c *accountCache) Get() (map[string]assetBalance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.balances == nil || time.Since(c.fetched) >= c.ttl {
		return nil, false
	}
	return c.balances, true
}

func (c *accountCache) Replace(balances map[string]assetBalance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances = balances
	c.fetched = time.Now()
}

func (c *accountCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances = nil
}

// stepCache holds LOT_SIZE step sizes per symbol. Filters effectively never
// change intraday, so entries are kept for the process lifetime.
type stepCache struct {
	mu    sync.RWMutex
	steps map[string]float64
}

func newStepCache() *stepCache {
	return &stepCache{steps: map[string]float64{}}
}

func (c *stepCache) Get(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.steps[symbol]
	return s, ok
}

func (c *stepCache) Put(symbol string, step float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps[symbol] = step
}
