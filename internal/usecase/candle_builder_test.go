package usecase

import (
	"math"
	"testing"
	"time"

	"MarketPull/internal/domain/models"
)

func tp(symbol string, ts time.Time, price, qv float64) models.TickPoint {
	return models.TickPoint{Symbol: symbol, TS: ts, Price: price, QuoteVolume24h: qv}
}

func TestBuildMinuteCandlesBucketing(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	points := []models.TickPoint{
		tp("BTCUSDT", base.Add(10*time.Second), 100, 1440),
		tp("BTCUSDT", base.Add(40*time.Second), 102, 1440),
		tp("BTCUSDT", base.Add(65*time.Second), 101, 1440),
	}

	candles, discarded := BuildMinuteCandles(points)
	if discarded != 0 {
		t.Fatalf("expected no discards, got %d", discarded)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}

	first := candles[0]
	if !first.CandleTime.Equal(base) {
		t.Fatalf("first bucket = %v, want %v", first.CandleTime, base)
	}
	if first.Open != 100 || first.Close != 102 || first.High != 102 || first.Low != 100 {
		t.Fatalf("first candle OHLC = %v/%v/%v/%v", first.Open, first.High, first.Low, first.Close)
	}
	if first.TradeCount != 2 {
		t.Fatalf("first trade count = %d, want 2", first.TradeCount)
	}
	// per-minute volume approximation: avg(1440/1440) = 1
	if math.Abs(first.Volume-1.0) > 1e-9 {
		t.Fatalf("first volume = %v, want 1", first.Volume)
	}

	second := candles[1]
	if !second.CandleTime.Equal(base.Add(time.Minute)) {
		t.Fatalf("second bucket = %v", second.CandleTime)
	}
	if second.Open != 101 || second.Close != 101 || second.TradeCount != 1 {
		t.Fatalf("second candle = %+v", second)
	}
}

func TestBuildMinuteCandlesOpenCloseByTimestamp(t *testing.T) {
	base := time.Date(2025, 3, 2, 12, 30, 0, 0, time.UTC)
	// out-of-order input: open/close must follow timestamps, not slice order
	points := []models.TickPoint{
		tp("ETHUSDT", base.Add(50*time.Second), 210, 0),
		tp("ETHUSDT", base.Add(5*time.Second), 200, 0),
		tp("ETHUSDT", base.Add(25*time.Second), 220, 0),
	}

	candles, _ := BuildMinuteCandles(points)
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}
	c := candles[0]
	if c.Open != 200 {
		t.Fatalf("open = %v, want 200 (earliest tick)", c.Open)
	}
	if c.Close != 210 {
		t.Fatalf("close = %v, want 210 (latest tick)", c.Close)
	}
	if c.High != 220 || c.Low != 200 {
		t.Fatalf("high/low = %v/%v", c.High, c.Low)
	}
}

func TestBuildMinuteCandlesDiscardsMalformed(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	points := []models.TickPoint{
		tp("BTCUSDT", base, 100, 0),
		tp("BTCUSDT", base.Add(time.Second), 0, 0),              // zero price
		tp("BTCUSDT", base.Add(2*time.Second), -5, 0),           // negative price
		tp("BTCUSDT", base.Add(3*time.Second), math.NaN(), 0),   // NaN
		tp("BTCUSDT", base.Add(4*time.Second), math.Inf(1), 0),  // Inf
		tp("", base.Add(5*time.Second), 100, 0),                 // empty symbol
		tp("BTCUSDT", time.Time{}, 100, 0),                      // zero timestamp
	}

	candles, discarded := BuildMinuteCandles(points)
	if discarded != 6 {
		t.Fatalf("discarded = %d, want 6", discarded)
	}
	if len(candles) != 1 || candles[0].TradeCount != 1 {
		t.Fatalf("expected single one-tick candle, got %+v", candles)
	}
}

func TestBuildMinuteCandlesMultiSymbolSorted(t *testing.T) {
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	points := []models.TickPoint{
		tp("SOLUSDT", base.Add(time.Minute), 30, 0),
		tp("BTCUSDT", base, 100, 0),
		tp("SOLUSDT", base, 29, 0),
	}

	candles, _ := BuildMinuteCandles(points)
	if len(candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(candles))
	}
	if candles[0].Symbol != "BTCUSDT" {
		t.Fatalf("expected BTCUSDT first, got %s", candles[0].Symbol)
	}
	if candles[1].Symbol != "SOLUSDT" || !candles[1].CandleTime.Equal(base) {
		t.Fatalf("expected SOLUSDT %v second, got %s %v", base, candles[1].Symbol, candles[1].CandleTime)
	}
}

func TestBuildMinuteCandlesDeterministic(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	points := []models.TickPoint{
		tp("BTCUSDT", base.Add(10*time.Second), 100, 2880),
		tp("BTCUSDT", base.Add(40*time.Second), 102, 2880),
	}

	a, _ := BuildMinuteCandles(points)
	b, _ := BuildMinuteCandles(points)
	if len(a) != len(b) {
		t.Fatalf("runs differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("run outputs differ at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
