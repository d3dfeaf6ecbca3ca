package usecase

import (
	"math"
	"testing"
	"time"

	"MarketPull/internal/domain/models"
)

func testTick(closes []float64) *models.Tick {
	last := closes[len(closes)-1]
	pct24 := 2.5
	qv := 1440000.0
	hi, lo := 125.0, 95.0
	return &models.Tick{
		Symbol:            "BTCUSDT",
		ExchangeTS:        time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		LastPrice:         last,
		Open:              closes[0],
		High:              last + 1,
		Low:               closes[0] - 1,
		Close:             last,
		PriceChangePct24h: &pct24,
		QuoteVolume24h:    &qv,
		High24h:           &hi,
		Low24h:            &lo,
		Bids:              []models.PriceLevel{{Price: last - 0.5, Qty: 2}},
		Asks:              []models.PriceLevel{{Price: last + 0.5, Qty: 3}},
		Closes:            closes,
	}
}

func TestBuildMarketPayloadFullWindow(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.1
	}
	tick := testTick(closes)

	p := BuildMarketPayload(tick, 5)

	if p.Symbol != "BTCUSDT" || p.Exchange != "BINANCE" || p.Interval != "1m" {
		t.Fatalf("identity fields = %s/%s/%s", p.Symbol, p.Exchange, p.Interval)
	}
	if p.Indicators.SMA7 == nil || p.Indicators.SMA30 == nil {
		t.Fatalf("expected SMAs with 120 closes")
	}
	if p.Indicators.RSI14 == nil {
		t.Fatal("expected RSI with 120 closes")
	}
	// monotonically rising closes: every change is a gain
	if *p.Indicators.RSI14 != 100 {
		t.Fatalf("RSI = %v, want 100 for all-gain series", *p.Indicators.RSI14)
	}
	if p.Indicators.MACD == nil || p.Indicators.MACDSignal == nil {
		t.Fatal("expected MACD with 120 closes")
	}
	if p.Indicators.Volatility24h == nil {
		t.Fatal("expected volatility with 120 closes")
	}

	// price one hour back is closes[len-60]
	want1h := closes[len(closes)-60]
	last := closes[len(closes)-1]
	if p.PriceChangePct1h == nil {
		t.Fatal("expected 1h change with 120 closes")
	}
	wantPct := (last - want1h) / want1h * 100
	if math.Abs(*p.PriceChangePct1h-wantPct) > 1e-9 {
		t.Fatalf("1h change = %v, want %v", *p.PriceChangePct1h, wantPct)
	}
	if p.Indicators.RollingReturn1h == nil || math.Abs(*p.Indicators.RollingReturn1h-(last/want1h-1)) > 1e-9 {
		t.Fatalf("rolling return 1h = %v", p.Indicators.RollingReturn1h)
	}
	if p.Indicators.RollingReturn24h == nil || math.Abs(*p.Indicators.RollingReturn24h-0.025) > 1e-9 {
		t.Fatalf("rolling return 24h = %v", p.Indicators.RollingReturn24h)
	}
	if p.Indicators.HighLowRange24h == nil || *p.Indicators.HighLowRange24h != 30 {
		t.Fatalf("high-low range = %v", p.Indicators.HighLowRange24h)
	}

	if p.BidAskSpread == nil || math.Abs(*p.BidAskSpread-1.0) > 1e-9 {
		t.Fatalf("spread = %v, want 1.0", p.BidAskSpread)
	}
	if p.BidDepth.Side != "bid" || p.AskDepth.Side != "ask" {
		t.Fatalf("depth sides = %s/%s", p.BidDepth.Side, p.AskDepth.Side)
	}
}

func TestBuildMarketPayloadShortWindow(t *testing.T) {
	// only 10 closes: every longer-window indicator stays nil, nothing crashes
	closes := []float64{100, 101, 102, 101, 103, 104, 103, 105, 104, 106}
	tick := testTick(closes)

	p := BuildMarketPayload(tick, 5)

	if p.Indicators.SMA7 == nil {
		t.Fatal("SMA7 should exist with 10 closes")
	}
	if p.Indicators.SMA30 != nil {
		t.Fatal("SMA30 must be nil with 10 closes")
	}
	if p.Indicators.RSI14 != nil {
		t.Fatal("RSI must be nil with 10 closes")
	}
	if p.Indicators.MACD != nil || p.Indicators.MACDSignal != nil {
		t.Fatal("MACD must be nil with 10 closes")
	}
	if p.PriceChangePct1h != nil || p.Indicators.RollingReturn1h != nil {
		t.Fatal("1h figures must be nil without 60 closes")
	}
	// volatility only needs two closes
	if p.Indicators.Volatility24h == nil {
		t.Fatal("volatility should exist with 10 closes")
	}
}

func TestBuildMarketPayloadEmptyBook(t *testing.T) {
	closes := []float64{100, 101}
	tick := testTick(closes)
	tick.Bids = nil
	tick.Asks = nil

	p := BuildMarketPayload(tick, 5)
	if p.BidAskSpread != nil {
		t.Fatalf("spread = %v, want nil for empty book", p.BidAskSpread)
	}
	if len(p.BidDepth.Levels) != 0 || p.BidDepth.BaseTotal != 0 {
		t.Fatalf("bid depth = %+v, want empty", p.BidDepth)
	}
}
