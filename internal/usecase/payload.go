package usecase

import (
	"time"

	"MarketPull/internal/domain/models"
	"MarketPull/internal/services/features"
)

const (
	rsiPeriod      = 14
	macdFast       = 12
	macdSlow       = 26
	macdSignal     = 9
	minutesPerDay  = 1440
	minutesPerHour = 60
)

// BuildMarketPayload derives the stored per-tick record from a raw tick:
// indicator snapshot over the closing-price window, depth summaries over
// the top-N book levels, spread and rolling returns. Pure; no side effects.
func BuildMarketPayload(t *models.Tick, depthTopN int) *models.MarketPayload {
	closes := t.Closes

	ind := models.IndicatorSnapshot{
		Symbol:    t.Symbol,
		Timestamp: t.ExchangeTS,
	}
	if v, ok := features.SMA(closes, 7); ok {
		ind.SMA7 = fptr(v)
	}
	if v, ok := features.SMA(closes, 30); ok {
		ind.SMA30 = fptr(v)
	}
	if v, ok := features.RSI(closes, rsiPeriod); ok {
		ind.RSI14 = fptr(v)
	}
	if macd, sig, ok := features.MACD(closes, macdFast, macdSlow, macdSignal); ok {
		ind.MACD = fptr(macd)
		ind.MACDSignal = fptr(sig)
	}

	window := closes
	if len(window) > minutesPerDay {
		window = window[len(window)-minutesPerDay:]
	}
	if v, ok := features.AnnualizedVolatility(features.LogReturns(window), minutesPerDay); ok {
		ind.Volatility24h = fptr(v)
	}

	var price1h *float64
	if len(closes) >= minutesPerHour {
		price1h = fptr(closes[len(closes)-minutesPerHour])
	}
	var changePct1h *float64
	last := t.Close
	if price1h != nil && *price1h != 0 && last != 0 {
		changePct1h = fptr((last - *price1h) / *price1h * 100)
		ind.RollingReturn1h = fptr(last / *price1h - 1)
	}
	if t.PriceChangePct24h != nil {
		ind.RollingReturn24h = fptr(*t.PriceChangePct24h / 100)
	}
	if t.High24h != nil && t.Low24h != nil {
		ind.HighLowRange24h = fptr(*t.High24h - *t.Low24h)
	}

	var spread *float64
	if len(t.Bids) > 0 && len(t.Asks) > 0 && t.Bids[0].Price > 0 && t.Asks[0].Price > 0 {
		spread = fptr(t.Asks[0].Price - t.Bids[0].Price)
	}

	return &models.MarketPayload{
		Symbol:            t.Symbol,
		Exchange:          "BINANCE",
		Interval:          "1m",
		ExchangeTS:        t.ExchangeTS,
		Open:              fptr(t.Open),
		High:              fptr(t.High),
		Low:               fptr(t.Low),
		Close:             fptr(t.Close),
		LastPrice:         t.LastPrice,
		PriceChangePct1h:  changePct1h,
		PriceChangePct24h: t.PriceChangePct24h,
		QuoteVolume24h:    t.QuoteVolume24h,
		BidAskSpread:      spread,
		BidDepth:          features.SummarizeDepth("bid", t.Bids, depthTopN),
		AskDepth:          features.SummarizeDepth("ask", t.Asks, depthTopN),
		Indicators:        ind,
		IngestedAt:        time.Now().UTC(),
	}
}

func fptr(v float64) *float64 { return &v }
