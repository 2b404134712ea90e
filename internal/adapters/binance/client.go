// Package binance implements the ports.ExchangeGateway against the Binance
// spot REST API: signed request execution, rate-limit governance, market-data
// caching and fault classification.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"

	"spotbot/internal/domain"
	"spotbot/internal/ports"
)

const (
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"

	defaultRetryAfter = time.Minute
	maxAttempts       = 2 // one retry cycle per call
)

// Client implements ports.ExchangeGateway.
type Client struct {
	baseURL    string
	apiKey     string
	secretKey  string
	recvWindow int64
	testnet    bool

	httpClient *http.Client
	logger     ports.Logger
	settings   ports.SettingsRepository
	notifier   ports.Notifier

	budget      *rateBudget
	weightLimit int64

	prices  *priceCache
	klines  *klineCache
	account *accountCache
	steps   *stepCache
}

// Config holds configuration specific to the Binance gateway adapter.
type Config struct {
	APIKey           string
	SecretKey        string
	UseTestnet       bool
	BaseURL          string // overrides the testnet/production URL, used by tests
	Logger           ports.Logger
	Settings         ports.SettingsRepository
	Notifier         ports.Notifier // optional, used for the circuit-breaker alert
	HTTPTimeout      time.Duration
	RecvWindowMillis int64
	WeightLimit      int
}

// New creates a new Binance gateway adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance gateway")
	}
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings repository is required for Binance gateway")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty, signed endpoints will fail")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.UseTestnet {
			baseURL = baseURLTestnet
		} else {
			baseURL = baseURLProduction
		}
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	recvWindow := cfg.RecvWindowMillis
	if recvWindow <= 0 {
		recvWindow = 60000
	}
	weightLimit := int64(cfg.WeightLimit)
	if weightLimit <= 0 {
		weightLimit = 5000
	}

	c := &Client{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		secretKey:   cfg.SecretKey,
		recvWindow:  recvWindow,
		testnet:     cfg.UseTestnet,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      cfg.Logger,
		settings:    cfg.Settings,
		notifier:    cfg.Notifier,
		budget:      &rateBudget{},
		weightLimit: weightLimit,
		prices:      newPriceCache(marketCacheTTL),
		klines:      newKlineCache(marketCacheTTL),
		account:     newAccountCache(accountCacheTTL),
		steps:       newStepCache(),
	}
	c.logger.Info(context.Background(), "Binance gateway configured", map[string]interface{}{"baseURL": baseURL, "testnet": cfg.UseTestnet})
	return c, nil
}

// --- Signing and request plumbing ---

// params preserves insertion order: the venue signature is computed over the
// query string exactly as sent, pairs in insertion order.
type params struct {
	pairs [][2]string
}

func (p *params) Add(key, value string) *params {
	p.pairs = append(p.pairs, [2]string{key, value})
	return p
}

func (p *params) Encode() string {
	var sb strings.Builder
	for i, kv := range p.pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(kv[0])
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(kv[1]))
	}
	return sb.String()
}

func (p *params) clone() *params {
	out := &params{pairs: make([][2]string, len(p.pairs))}
	copy(out.pairs, p.pairs)
	return out
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// apiError is the venue's error body.
type apiError struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
}

// ensureOnline rejects trading/account calls while the bot is OFFLINE, before
// any network activity.
func (c *Client) ensureOnline(ctx context.Context) error {
	settings, err := c.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("reading operational state: %w", err)
	}
	if !settings.IsOnline() {
		return ports.ErrBotOffline
	}
	return nil
}

// tripOffline flips the operational state to OFFLINE. This is the circuit
// breaker for venue bans and the only gateway fault with a durable side
// effect outside the call itself.
func (c *Client) tripOffline(ctx context.Context, cause error) {
	settings, err := c.settings.Get(ctx)
	if err != nil {
		c.logger.Error(ctx, err, "Ban detected but settings could not be read")
		settings = domain.DefaultSettings()
	}
	settings.State = domain.StateOffline
	if err := c.settings.Save(ctx, settings); err != nil {
		c.logger.Error(ctx, err, "Failed to persist OFFLINE state after ban")
	}
	c.logger.Warn(ctx, "Bot switched to OFFLINE: venue banned the client IP", map[string]interface{}{"cause": cause.Error()})
	if c.notifier != nil {
		if err := c.notifier.Send(ctx, "🛑 Venue ban detected. Bot switched to OFFLINE, manual review required."); err != nil {
			c.logger.Error(ctx, err, "Failed to send circuit-breaker notification")
		}
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// signedRequest executes an authenticated call with rate governance and fault
// classification: clock skew and rate limits get one retry cycle, bans trip
// the circuit breaker, everything else surfaces to the caller.
func (c *Client) signedRequest(ctx context.Context, method, endpoint string, base *params) ([]byte, error) {
	if err := c.ensureOnline(ctx); err != nil {
		return nil, err
	}
	if err := c.budget.Throttle(ctx, c.weightLimit); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		q := base.clone()
		q.Add("timestamp", strconv.FormatInt(c.budget.Timestamp(), 10))
		q.Add("recvWindow", strconv.FormatInt(c.recvWindow, 10))
		q.Add("signature", c.sign(q.Encode()))

		var req *http.Request
		var err error
		if method == http.MethodPost {
			req, err = http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, strings.NewReader(q.Encode()))
			if req != nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
		} else {
			req, err = http.NewRequestWithContext(ctx, method, c.baseURL+endpoint+"?"+q.Encode(), nil)
		}
		if err != nil {
			return nil, fmt.Errorf("building request for %s: %w", endpoint, err)
		}
		req.Header.Set("X-MBX-APIKEY", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, c.classifyTransportError(ctx, err, endpoint)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.observeWeight(resp)
		if readErr != nil {
			return nil, fmt.Errorf("%w: reading response from %s: %w", ports.ErrUnknown, endpoint, readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		retry, err := c.classifyVenueError(ctx, resp, body, endpoint)
		if !retry {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("retry budget exhausted for %s: %w", endpoint, lastErr)
}

// classifyVenueError maps a non-2xx venue response to a sentinel error and
// reports whether the call should be retried (after any required recovery).
func (c *Client) classifyVenueError(ctx context.Context, resp *http.Response, body []byte, endpoint string) (retry bool, err error) {
	var ae apiError
	_ = json.Unmarshal(body, &ae)
	fields := map[string]interface{}{"endpoint": endpoint, "status": resp.StatusCode, "code": ae.Code, "msg": ae.Msg}

	switch {
	// A plain 429 carries code -1003 too, so the rate-limit path must be
	// checked first. -1003 outside a 429 means the venue escalated to a
	// lockout.
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := defaultRetryAfter
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, perr := strconv.Atoi(s); perr == nil {
				wait = time.Duration(secs) * time.Second
			}
		}
		c.logger.Warn(ctx, "Rate limit exceeded, backing off before retry", map[string]interface{}{"endpoint": endpoint, "wait": wait.String()})
		if serr := c.sleep(ctx, wait); serr != nil {
			return false, fmt.Errorf("%w: %w", ports.ErrContextCanceled, serr)
		}
		return true, fmt.Errorf("%s: %w", endpoint, ports.ErrRateLimited)

	case resp.StatusCode == http.StatusTeapot || ae.Code == -1003:
		// Ban / lockout. No retry; durable circuit breaker.
		err = fmt.Errorf("%s: %w: %s", endpoint, ports.ErrBanned, ae.Msg)
		c.logger.Error(ctx, err, "Venue ban detected", fields)
		c.tripOffline(ctx, err)
		return false, err

	case ae.Code == -1021:
		c.logger.Warn(ctx, "Timestamp outside recvWindow, resyncing server time", map[string]interface{}{"endpoint": endpoint})
		if serr := c.SyncServerTime(ctx); serr != nil {
			c.logger.Error(ctx, serr, "Server time resync failed")
		}
		return true, fmt.Errorf("%s: %w", endpoint, ports.ErrClockSkew)

	case ae.Code == -2011 || ae.Code == -2013:
		return false, fmt.Errorf("%s: %w: %s", endpoint, ports.ErrOrderNotFound, ae.Msg)

	case ae.Code == -2010:
		return false, fmt.Errorf("%s: %w: %s", endpoint, ports.ErrOrderPlacementFailed, ae.Msg)

	case ae.Code == -1022 || ae.Code == -2014 || ae.Code == -2015:
		return false, fmt.Errorf("%s: %w: %s", endpoint, ports.ErrAuthenticationFailed, ae.Msg)

	case ae.Code == -2019 || ae.Code == -3005:
		return false, fmt.Errorf("%s: %w: %s", endpoint, ports.ErrInsufficientFunds, ae.Msg)

	default:
		err = fmt.Errorf("%s: %w: status=%d code=%d %s", endpoint, ports.ErrUnknown, resp.StatusCode, ae.Code, ae.Msg)
		c.logger.Error(ctx, err, "Venue call failed", fields)
		return false, err
	}
}

func (c *Client) classifyTransportError(ctx context.Context, err error, endpoint string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", endpoint, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w: %w", endpoint, ports.ErrContextCanceled, err)
	default:
		c.logger.Error(ctx, err, "Venue transport failure", map[string]interface{}{"endpoint": endpoint})
		return fmt.Errorf("%s: %w: %w", endpoint, ports.ErrUnknown, err)
	}
}

func (c *Client) observeWeight(resp *http.Response) {
	if s := resp.Header.Get(usedWeightHeader); s != "" {
		if w, err := strconv.ParseInt(s, 10, 64); err == nil {
			c.budget.Observe(w)
		}
	}
}

// publicGet executes an unauthenticated market-data call. Public endpoints
// also report used weight, so the budget is updated here too.
func (c *Client) publicGet(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", endpoint, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(ctx, err, endpoint)
	}
	defer resp.Body.Close()
	c.observeWeight(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response from %s: %w", ports.ErrUnknown, endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, cerr := c.classifyVenueError(ctx, resp, body, endpoint)
		return nil, cerr
	}
	return body, nil
}

// --- Time ---

// SyncServerTime refreshes the local-to-server clock offset used to stamp
// signed requests.
func (c *Client) SyncServerTime(ctx context.Context) error {
	body, err := c.publicGet(ctx, "/api/v3/time", nil)
	if err != nil {
		return fmt.Errorf("syncing server time: %w", err)
	}
	var out struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("parsing server time: %w", err)
	}
	c.budget.SetOffset(out.ServerTime)
	c.logger.Debug(ctx, "Server time synchronized", map[string]interface{}{"serverTime": out.ServerTime})
	return nil
}

// --- Market data ---

func (c *Client) refreshPrices(ctx context.Context) error {
	b := &backoff.Backoff{Min: 2 * time.Second, Max: 8 * time.Second, Factor: 2}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		body, err := c.publicGet(ctx, "/api/v3/ticker/price", nil)
		if err == nil {
			var tickers []struct {
				Symbol string `json:"symbol"`
				Price  string `json:"price"`
			}
			if err = json.Unmarshal(body, &tickers); err == nil {
				prices := make(map[string]float64, len(tickers))
				for _, t := range tickers {
					if p, perr := strconv.ParseFloat(t.Price, 64); perr == nil {
						prices[t.Symbol] = p
					}
				}
				c.prices.Replace(prices)
				return nil
			}
		}
		lastErr = err
		c.logger.Warn(ctx, "Ticker refresh failed, retrying", map[string]interface{}{"attempt": attempt + 1, "error": err.Error()})
		if serr := c.sleep(ctx, b.Duration()); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("refreshing ticker prices: %w", lastErr)
}

// GetPrice returns the last ticker price for a symbol from the TTL cache,
// refetching the whole ticker snapshot when stale.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if !c.prices.Fresh() {
		if err := c.refreshPrices(ctx); err != nil {
			// A stale price is still better than none for display paths;
			// sizing paths check the error.
			if p, ok := c.prices.Get(symbol); ok {
				c.logger.Warn(ctx, "Serving stale price after refresh failure", map[string]interface{}{"symbol": symbol})
				return p, nil
			}
			return 0, err
		}
	}
	p, ok := c.prices.Get(symbol)
	if !ok {
		return 0, fmt.Errorf("price for %s: %w", symbol, ports.ErrNotFound)
	}
	return p, nil
}

// GetAllPrices returns the full ticker snapshot.
func (c *Client) GetAllPrices(ctx context.Context) (map[string]float64, error) {
	if !c.prices.Fresh() {
		if err := c.refreshPrices(ctx); err != nil {
			return nil, err
		}
	}
	return c.prices.All(), nil
}

// Get24hVolume returns the rolling 24h quote volume for a symbol.
func (c *Client) Get24hVolume(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	body, err := c.publicGet(ctx, "/api/v3/ticker/24hr", q)
	if err != nil {
		return 0, err
	}
	var out struct {
		QuoteVolume string `json:"quoteVolume"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("parsing 24h ticker for %s: %w", symbol, err)
	}
	vol, err := strconv.ParseFloat(out.QuoteVolume, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing quote volume '%s': %w", out.QuoteVolume, err)
	}
	return vol, nil
}

// GetKlines returns up to limit candles for symbol/interval, most recent
// last, served from the TTL cache within the window.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	key := symbol + "_" + interval + "_" + strconv.Itoa(limit)
	if cached, ok := c.klines.Get(key); ok {
		return cached, nil
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	body, err := c.publicGet(ctx, "/api/v3/klines", q)
	if err != nil {
		return nil, err
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing klines for %s: %w", symbol, err)
	}
	klines := make([]*domain.Kline, 0, len(raw))
	for _, candle := range raw {
		k, err := parseKline(candle, symbol, interval)
		if err != nil {
			return nil, fmt.Errorf("parsing kline for %s: %w", symbol, err)
		}
		klines = append(klines, k)
	}
	c.klines.Put(key, klines)
	return klines, nil
}

// parseKline decodes one venue candle array:
// [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(candle []interface{}, symbol, interval string) (*domain.Kline, error) {
	if len(candle) < 7 {
		return nil, fmt.Errorf("candle has %d fields, want at least 7", len(candle))
	}
	openTime, ok := candle[0].(float64)
	if !ok {
		return nil, fmt.Errorf("open time is not numeric")
	}
	closeTime, ok := candle[6].(float64)
	if !ok {
		return nil, fmt.Errorf("close time is not numeric")
	}
	nums := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := candle[i].(string)
		if !ok {
			return nil, fmt.Errorf("field %d is not a string", i)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing field %d '%s': %w", i, s, err)
		}
		nums[i-1] = v
	}
	return &domain.Kline{
		OpenTime:  time.UnixMilli(int64(openTime)),
		CloseTime: time.UnixMilli(int64(closeTime)),
		Symbol:    symbol,
		Interval:  interval,
		Open:      nums[0],
		High:      nums[1],
		Low:       nums[2],
		Close:     nums[3],
		Volume:    nums[4],
	}, nil
}

// --- Account ---

func (c *Client) getBalances(ctx context.Context) (map[string]assetBalance, error) {
	if cached, ok := c.account.Get(); ok {
		return cached, nil
	}
	body, err := c.signedRequest(ctx, http.MethodGet, "/api/v3/account", &params{})
	if err != nil {
		return nil, err
	}
	var out struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing account info: %w", err)
	}
	balances := make(map[string]assetBalance, len(out.Balances))
	for _, b := range out.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		balances[b.Asset] = assetBalance{Free: free, Locked: locked}
	}
	c.account.Replace(balances)
	return balances, nil
}

// GetAccountBalance returns the free USDT balance.
func (c *Client) GetAccountBalance(ctx context.Context) (float64, error) {
	balances, err := c.getBalances(ctx)
	if err != nil {
		return 0, err
	}
	return balances["USDT"].Free, nil
}

// GetAssetBalance returns free+locked units of a base asset.
func (c *Client) GetAssetBalance(ctx context.Context, asset string) (float64, error) {
	balances, err := c.getBalances(ctx)
	if err != nil {
		return 0, err
	}
	b := balances[strings.TrimSuffix(asset, "USDT")]
	return b.Free + b.Locked, nil
}

// GetTradeFee returns the current maker/taker commission for a symbol. The
// testnet has no fee endpoint and venue failures fall back to the standard
// 0.1%/0.1% schedule so profit math never blocks on it.
func (c *Client) GetTradeFee(ctx context.Context, symbol string) (ports.TradeFee, error) {
	fallback := ports.TradeFee{Maker: 0.001, Taker: 0.001}
	if c.testnet {
		return fallback, nil
	}
	p := (&params{}).Add("symbol", symbol)
	body, err := c.signedRequest(ctx, http.MethodGet, "/sapi/v1/asset/tradeFee", p)
	if err != nil {
		c.logger.Warn(ctx, "Trade fee lookup failed, using fallback schedule", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		return fallback, nil
	}
	var out []struct {
		MakerCommission string `json:"makerCommission"`
		TakerCommission string `json:"takerCommission"`
	}
	if err := json.Unmarshal(body, &out); err != nil || len(out) == 0 {
		return fallback, nil
	}
	maker, _ := strconv.ParseFloat(out[0].MakerCommission, 64)
	taker, _ := strconv.ParseFloat(out[0].TakerCommission, 64)
	if maker <= 0 || taker <= 0 {
		return fallback, nil
	}
	return ports.TradeFee{Maker: maker, Taker: taker}, nil
}

// GetStepSize returns the LOT_SIZE quantity step for a symbol so order
// quantities can be rounded the way the venue accepts them.
func (c *Client) GetStepSize(ctx context.Context, symbol string) (float64, error) {
	const defaultStep = 0.000001
	if step, ok := c.steps.Get(symbol); ok {
		return step, nil
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	body, err := c.publicGet(ctx, "/api/v3/exchangeInfo", q)
	if err != nil {
		c.logger.Warn(ctx, "Exchange info lookup failed, using default step size", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		return defaultStep, nil
	}
	var out struct {
		Symbols []struct {
			Filters []struct {
				FilterType string `json:"filterType"`
				StepSize   string `json:"stepSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &out); err != nil || len(out.Symbols) == 0 {
		return defaultStep, nil
	}
	for _, f := range out.Symbols[0].Filters {
		if f.FilterType == "LOT_SIZE" {
			if step, perr := strconv.ParseFloat(f.StepSize, 64); perr == nil && step > 0 {
				c.steps.Put(symbol, step)
				return step, nil
			}
		}
	}
	return defaultStep, nil
}

// GetDailyPnL estimates the last-24h balance change from account snapshots,
// valued at the current BTC price.
func (c *Client) GetDailyPnL(ctx context.Context) (float64, error) {
	p := (&params{}).Add("type", "SPOT").Add("limit", "5")
	body, err := c.signedRequest(ctx, http.MethodGet, "/sapi/v1/accountSnapshot", p)
	if err != nil {
		return 0, err
	}
	var out struct {
		SnapshotVos []struct {
			Data struct {
				TotalAssetOfBtc string `json:"totalAssetOfBtc"`
			} `json:"data"`
		} `json:"snapshotVos"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("parsing account snapshots: %w", err)
	}
	if len(out.SnapshotVos) < 2 {
		return 0, nil
	}
	last := len(out.SnapshotVos) - 1
	cur, _ := strconv.ParseFloat(out.SnapshotVos[last].Data.TotalAssetOfBtc, 64)
	prev, _ := strconv.ParseFloat(out.SnapshotVos[last-1].Data.TotalAssetOfBtc, 64)
	btcPrice, err := c.GetPrice(ctx, "BTCUSDT")
	if err != nil {
		return 0, err
	}
	return (cur - prev) * btcPrice, nil
}

// GetAllTimePnL aggregates realized profit for a symbol from the venue's own
// trade history: sells add, buys subtract, USDT commissions subtract.
func (c *Client) GetAllTimePnL(ctx context.Context, symbol string) (float64, error) {
	p := (&params{}).Add("symbol", symbol)
	body, err := c.signedRequest(ctx, http.MethodGet, "/api/v3/myTrades", p)
	if err != nil {
		return 0, err
	}
	var trades []struct {
		Price           string `json:"price"`
		Qty             string `json:"qty"`
		Commission      string `json:"commission"`
		CommissionAsset string `json:"commissionAsset"`
		IsBuyer         bool   `json:"isBuyer"`
	}
	if err := json.Unmarshal(body, &trades); err != nil {
		return 0, fmt.Errorf("parsing trade history for %s: %w", symbol, err)
	}
	total := 0.0
	for _, t := range trades {
		price, _ := strconv.ParseFloat(t.Price, 64)
		qty, _ := strconv.ParseFloat(t.Qty, 64)
		commission, _ := strconv.ParseFloat(t.Commission, 64)
		if t.IsBuyer {
			total -= price * qty
		} else {
			total += price * qty
		}
		if t.CommissionAsset == "USDT" {
			total -= commission
		}
	}
	return total, nil
}

// --- Orders ---

type orderResponse struct {
	OrderID             int64  `json:"orderId"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
}

func parseFill(body []byte) (*ports.MarketFill, error) {
	var out orderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing order response: %w", err)
	}
	qty, _ := strconv.ParseFloat(out.ExecutedQty, 64)
	quote, _ := strconv.ParseFloat(out.CummulativeQuoteQty, 64)
	return &ports.MarketFill{Quantity: qty, QuoteQty: quote, OrderID: out.OrderID}, nil
}

// PlaceMarketBuy spends quoteUSDT on a market buy and returns the actual
// fill. The account cache is invalidated so sizing sees the new balance.
func (c *Client) PlaceMarketBuy(ctx context.Context, symbol string, quoteUSDT float64) (*ports.MarketFill, error) {
	p := (&params{}).
		Add("symbol", symbol).
		Add("side", string(domain.Buy)).
		Add("type", "MARKET").
		Add("quoteOrderQty", strconv.FormatFloat(quoteUSDT, 'f', 2, 64)).
		Add("newClientOrderId", uuid.NewString())
	body, err := c.signedRequest(ctx, http.MethodPost, "/api/v3/order", p)
	if err != nil {
		return nil, err
	}
	c.account.Invalidate()
	fill, err := parseFill(body)
	if err != nil {
		return nil, err
	}
	c.logger.Info(ctx, "Market buy executed", map[string]interface{}{"symbol": symbol, "quoteUSDT": quoteUSDT, "filledQty": fill.Quantity, "filledQuote": fill.QuoteQty})
	return fill, nil
}

// PlaceMarketBuyBase buys an exact base-asset quantity at market.
func (c *Client) PlaceMarketBuyBase(ctx context.Context, symbol string, quantity float64) (*ports.MarketFill, error) {
	p := (&params{}).
		Add("symbol", symbol).
		Add("side", string(domain.Buy)).
		Add("type", "MARKET").
		Add("quantity", strconv.FormatFloat(quantity, 'f', 8, 64)).
		Add("newClientOrderId", uuid.NewString())
	body, err := c.signedRequest(ctx, http.MethodPost, "/api/v3/order", p)
	if err != nil {
		return nil, err
	}
	c.account.Invalidate()
	fill, err := parseFill(body)
	if err != nil {
		return nil, err
	}
	c.logger.Info(ctx, "Market buy executed", map[string]interface{}{"symbol": symbol, "quantity": quantity, "filledQty": fill.Quantity, "filledQuote": fill.QuoteQty})
	return fill, nil
}

// PlaceMarketSell sells quantity base units at market and returns the actual
// fill.
func (c *Client) PlaceMarketSell(ctx context.Context, symbol string, quantity float64) (*ports.MarketFill, error) {
	p := (&params{}).
		Add("symbol", symbol).
		Add("side", string(domain.Sell)).
		Add("type", "MARKET").
		Add("quantity", strconv.FormatFloat(quantity, 'f', 8, 64)).
		Add("newClientOrderId", uuid.NewString())
	body, err := c.signedRequest(ctx, http.MethodPost, "/api/v3/order", p)
	if err != nil {
		return nil, err
	}
	c.account.Invalidate()
	fill, err := parseFill(body)
	if err != nil {
		return nil, err
	}
	c.logger.Info(ctx, "Market sell executed", map[string]interface{}{"symbol": symbol, "quantity": quantity, "filledQty": fill.Quantity, "filledQuote": fill.QuoteQty})
	return fill, nil
}

// PlaceStopLossLimit places a protective STOP_LOSS_LIMIT order and returns
// the venue order id.
func (c *Client) PlaceStopLossLimit(ctx context.Context, symbol string, quantity, stopPrice, limitPrice float64, side domain.OrderSide) (string, error) {
	p := (&params{}).
		Add("symbol", symbol).
		Add("side", string(side)).
		Add("type", "STOP_LOSS_LIMIT").
		Add("timeInForce", "GTC").
		Add("quantity", strconv.FormatFloat(quantity, 'f', 8, 64)).
		Add("stopPrice", strconv.FormatFloat(stopPrice, 'f', 8, 64)).
		Add("price", strconv.FormatFloat(limitPrice, 'f', 8, 64)).
		Add("newClientOrderId", uuid.NewString())
	body, err := c.signedRequest(ctx, http.MethodPost, "/api/v3/order", p)
	if err != nil {
		return "", err
	}
	var out struct {
		OrderID int64 `json:"orderId"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parsing stop order response: %w", err)
	}
	c.logger.Info(ctx, "Protective stop placed", map[string]interface{}{"symbol": symbol, "side": side, "quantity": quantity, "stopPrice": stopPrice, "orderID": out.OrderID})
	return strconv.FormatInt(out.OrderID, 10), nil
}

// CancelAllOrders cancels every open order for a symbol. The venue's
// "nothing to cancel" fault is swallowed: absence of orders is success.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	p := (&params{}).Add("symbol", symbol)
	_, err := c.signedRequest(ctx, http.MethodDelete, "/api/v3/openOrders", p)
	if err != nil {
		if errors.Is(err, ports.ErrOrderNotFound) {
			c.logger.Debug(ctx, "No open orders to cancel", map[string]interface{}{"symbol": symbol})
			return nil
		}
		return err
	}
	return nil
}
