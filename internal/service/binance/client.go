package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"MarketPull/internal/domain/models"
	drepo "MarketPull/internal/domain/repository"
	"MarketPull/internal/service/ratelimit"
	pkghttp "MarketPull/pkg/http"
	applogger "MarketPull/pkg/logger"
)

const (
	tickerPath = "/api/v3/ticker/24hr"
	depthPath  = "/api/v3/depth"
	klinesPath = "/api/v3/klines"

	klineInterval = "1m"
	klineLimit    = 120

	// Slow EMA plus signal window. Snapshots with fewer closes than this
	// cannot warm up the full indicator set.
	minWarmupCloses = 35

	// Requests to the same host are staggered per symbol to stay friendly
	// to the exchange rate limits.
	symbolStagger = 100 * time.Millisecond

	rateLimitKey    = "binance_rest"
	rateLimitBurst  = 20
	rateLimitPerSec = 15
)

// Client implements TickSource over the Binance spot REST API.
type Client struct {
	baseURL    string
	httpClient *pkghttp.Client
	limiter    *ratelimit.Limiter
	depthLimit int
	l          *applogger.Logger
}

func NewClient(baseURL string, timeout time.Duration, depthLimit int, l *applogger.Logger) *Client {
	if depthLimit <= 0 {
		depthLimit = 5
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		limiter:    ratelimit.New(),
		depthLimit: depthLimit,
		l:          l,
	}
}

type ticker24h struct {
	Symbol         string `json:"symbol"`
	LastPrice      string `json:"lastPrice"`
	PriceChangePct string `json:"priceChangePercent"`
	QuoteVolume    string `json:"quoteVolume"`
	HighPrice      string `json:"highPrice"`
	LowPrice       string `json:"lowPrice"`
}

type orderBook struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

// FetchTicks pulls one snapshot per symbol, staggered by 100ms each. Symbols
// that fail are dropped from the result; the error is non-nil only when every
// fetch failed.
func (c *Client) FetchTicks(ctx context.Context, symbols []string) ([]*models.Tick, error) {
	type result struct {
		idx  int
		tick *models.Tick
		err  error
	}

	results := make(chan result, len(symbols))
	var wg sync.WaitGroup
	for i, sym := range symbols {
		wg.Add(1)
		go func(idx int, symbol string) {
			defer wg.Done()
			if idx > 0 {
				t := time.NewTimer(time.Duration(idx) * symbolStagger)
				defer t.Stop()
				select {
				case <-ctx.Done():
					results <- result{idx: idx, err: ctx.Err()}
					return
				case <-t.C:
				}
			}
			tick, err := c.fetchSnapshot(ctx, symbol)
			results <- result{idx: idx, tick: tick, err: err}
		}(i, sym)
	}
	wg.Wait()
	close(results)

	ticks := make([]*models.Tick, 0, len(symbols))
	var lastErr error
	for r := range results {
		if r.err != nil {
			lastErr = r.err
			if c.l != nil {
				c.l.Error("binance snapshot fetch failed",
					applogger.String("symbol", symbols[r.idx]),
					applogger.Error(r.err),
				)
			}
			continue
		}
		ticks = append(ticks, r.tick)
	}
	if len(ticks) == 0 && lastErr != nil {
		return nil, fmt.Errorf("all symbol fetches failed: %w", lastErr)
	}
	return ticks, nil
}

// fetchSnapshot pulls ticker, order book and recent klines for one symbol in
// parallel and assembles a Tick.
func (c *Client) fetchSnapshot(ctx context.Context, symbol string) (*models.Tick, error) {
	symbol = strings.ToUpper(symbol)

	var (
		tk      ticker24h
		book    orderBook
		klines  [][]json.RawMessage
		wg      sync.WaitGroup
		mu      sync.Mutex
		lastErr error
	)
	record := func(err error) {
		if err != nil {
			mu.Lock()
			lastErr = err
			mu.Unlock()
		}
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		record(c.getJSON(ctx, tickerPath, map[string][]string{"symbol": {symbol}}, &tk))
	}()
	go func() {
		defer wg.Done()
		record(c.getJSON(ctx, depthPath, map[string][]string{
			"symbol": {symbol},
			"limit":  {strconv.Itoa(c.depthLimit)},
		}, &book))
	}()
	go func() {
		defer wg.Done()
		record(c.getJSON(ctx, klinesPath, map[string][]string{
			"symbol":   {symbol},
			"interval": {klineInterval},
			"limit":    {strconv.Itoa(klineLimit)},
		}, &klines))
	}()
	wg.Wait()

	if lastErr != nil {
		return nil, lastErr
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("no klines for %s", symbol)
	}

	tick, err := buildTick(symbol, &tk, &book, klines)
	if err != nil {
		return nil, err
	}

	// Newly listed symbols can return a short kline window; top up the close
	// series so the indicator warm-up has enough history.
	if len(tick.Closes) < minWarmupCloses {
		if closes, serr := c.FetchRecentSeries(ctx, symbol, klineLimit); serr == nil && len(closes) > len(tick.Closes) {
			tick.Closes = closes
		}
	}
	return tick, nil
}

// buildTick maps raw exchange responses onto a Tick. Kline layout:
// [openTime, open, high, low, close, volume, closeTime, ...] with prices as
// strings.
func buildTick(symbol string, tk *ticker24h, book *orderBook, klines [][]json.RawMessage) (*models.Tick, error) {
	latest := klines[len(klines)-1]
	if len(latest) < 7 {
		return nil, fmt.Errorf("malformed kline for %s", symbol)
	}

	closeMs, err := rawInt(latest[6])
	if err != nil {
		return nil, fmt.Errorf("kline close time: %w", err)
	}

	tick := &models.Tick{
		Symbol:     symbol,
		ExchangeTS: time.UnixMilli(closeMs).UTC(),
	}

	if v, ok := rawFloat(latest[1]); ok {
		tick.Open = v
	}
	if v, ok := rawFloat(latest[4]); ok {
		tick.Close = v
	}

	// High/low over the trailing hour of klines.
	window := klines
	if len(window) > 60 {
		window = window[len(window)-60:]
	}
	for i, k := range window {
		if len(k) < 5 {
			continue
		}
		if h, ok := rawFloat(k[2]); ok && (i == 0 || h > tick.High) {
			tick.High = h
		}
		if lo, ok := rawFloat(k[3]); ok && (i == 0 || lo < tick.Low) {
			tick.Low = lo
		}
	}

	tick.Closes = make([]float64, 0, len(klines))
	for _, k := range klines {
		if len(k) < 5 {
			continue
		}
		if v, ok := rawFloat(k[4]); ok {
			tick.Closes = append(tick.Closes, v)
		}
	}

	if v, ok := parseFloat(tk.LastPrice); ok {
		tick.LastPrice = v
	}
	if v, ok := parseFloat(tk.PriceChangePct); ok {
		tick.PriceChangePct24h = &v
	}
	if v, ok := parseFloat(tk.QuoteVolume); ok {
		tick.QuoteVolume24h = &v
	}
	if v, ok := parseFloat(tk.HighPrice); ok {
		tick.High24h = &v
	}
	if v, ok := parseFloat(tk.LowPrice); ok {
		tick.Low24h = &v
	}

	tick.Bids = parseLevels(book.Bids)
	tick.Asks = parseLevels(book.Asks)

	return tick, nil
}

// FetchRecentSeries returns the last n closing prices for symbol, oldest
// first.
func (c *Client) FetchRecentSeries(ctx context.Context, symbol string, n int) ([]float64, error) {
	if n <= 0 {
		n = klineLimit
	}
	var klines [][]json.RawMessage
	err := c.getJSON(ctx, klinesPath, map[string][]string{
		"symbol":   {strings.ToUpper(symbol)},
		"interval": {klineInterval},
		"limit":    {strconv.Itoa(n)},
	}, &klines)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		if len(k) < 5 {
			continue
		}
		if v, ok := rawFloat(k[4]); ok {
			closes = append(closes, v)
		}
	}
	return closes, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params map[string][]string, dest interface{}) error {
	if !c.limiter.Allow(rateLimitKey, rateLimitBurst, rateLimitPerSec) {
		return fmt.Errorf("rate limited: %s", path)
	}
	return c.httpClient.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:      pkghttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: params,
	}, dest)
}

func parseLevels(raw [][]string) []models.PriceLevel {
	out := make([]models.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		p, pok := parseFloat(lvl[0])
		q, qok := parseFloat(lvl[1])
		if !pok || !qok {
			continue
		}
		out = append(out, models.PriceLevel{Price: p, Qty: q})
	}
	return out
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// rawFloat decodes a kline cell that Binance encodes as a quoted number.
func rawFloat(raw json.RawMessage) (float64, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseFloat(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	return 0, false
}

func rawInt(raw json.RawMessage) (int64, error) {
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}

var _ drepo.TickSource = (*Client)(nil)
