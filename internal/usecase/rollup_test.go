package usecase

import (
	"math"
	"testing"
	"time"

	"MarketPull/internal/domain/models"
	domrepo "MarketPull/internal/domain/repository"
)

func minuteCandle(symbol string, ts time.Time, open, high, low, closeP, vol float64, trades uint64) models.Candle {
	return models.Candle{
		Symbol:      symbol,
		CandleTime:  ts,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       closeP,
		Volume:      vol,
		VolumeQuote: vol,
		TradeCount:  trades,
	}
}

func TestRollupCandlesFiveMinute(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var src []models.Candle
	// closes 10..15 over minutes 0..5; minute 5 falls into the next bucket
	for i := 0; i < 6; i++ {
		p := float64(10 + i)
		src = append(src, minuteCandle("BTCUSDT", base.Add(time.Duration(i)*time.Minute), p, p, p, p, 1, 2))
	}

	out := RollupCandles(src, domrepo.TF5m)
	if len(out) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(out))
	}

	first := out[0]
	if !first.CandleTime.Equal(base) {
		t.Fatalf("first bucket = %v", first.CandleTime)
	}
	if first.Open != 10 || first.Close != 14 || first.High != 14 || first.Low != 10 {
		t.Fatalf("first OHLC = %v/%v/%v/%v", first.Open, first.High, first.Low, first.Close)
	}
	if math.Abs(first.Volume-5) > 1e-9 || first.TradeCount != 10 {
		t.Fatalf("first volume/trades = %v/%d", first.Volume, first.TradeCount)
	}

	second := out[1]
	if !second.CandleTime.Equal(base.Add(5*time.Minute)) || second.Open != 15 || second.Close != 15 {
		t.Fatalf("second bucket = %+v", second)
	}
}

func TestRollupCandlesOpenCloseBySourceTime(t *testing.T) {
	base := time.Date(2025, 1, 1, 4, 0, 0, 0, time.UTC)
	// shuffled source order must not change open/close selection
	src := []models.Candle{
		minuteCandle("ETHUSDT", base.Add(4*time.Minute), 108, 110, 107, 109, 1, 1),
		minuteCandle("ETHUSDT", base, 100, 104, 99, 103, 1, 1),
		minuteCandle("ETHUSDT", base.Add(2*time.Minute), 103, 106, 98, 105, 1, 1),
	}

	out := RollupCandles(src, domrepo.TF5m)
	if len(out) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(out))
	}
	c := out[0]
	if c.Open != 100 {
		t.Fatalf("open = %v, want open of earliest source candle", c.Open)
	}
	if c.Close != 109 {
		t.Fatalf("close = %v, want close of latest source candle", c.Close)
	}
	if c.High != 110 || c.Low != 98 {
		t.Fatalf("high/low = %v/%v", c.High, c.Low)
	}
}

func TestRollupCandlesIdempotent(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var src []models.Candle
	for i := 0; i < 10; i++ {
		p := 100 + float64(i)
		src = append(src, minuteCandle("BTCUSDT", base.Add(time.Duration(i)*time.Minute), p, p+1, p-1, p, 2, 3))
	}

	a := RollupCandles(src, domrepo.TF5m)
	b := RollupCandles(src, domrepo.TF5m)
	if len(a) != len(b) {
		t.Fatalf("reprocessing changed bucket count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("reprocessing changed bucket %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestRollupCandlesDailyBucket(t *testing.T) {
	// 4h candles spanning a midnight boundary roll into two daily buckets
	d1 := time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	src := []models.Candle{
		minuteCandle("BTCUSDT", d1, 100, 105, 99, 104, 10, 50),
		minuteCandle("BTCUSDT", d2, 104, 108, 103, 107, 12, 60),
	}

	out := RollupCandles(src, domrepo.TF1d)
	if len(out) != 2 {
		t.Fatalf("expected 2 daily buckets, got %d", len(out))
	}
	if !out[0].CandleTime.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("first daily bucket = %v", out[0].CandleTime)
	}
	if !out[1].CandleTime.Equal(d2) {
		t.Fatalf("second daily bucket = %v", out[1].CandleTime)
	}
}

func TestDefaultRollupStagesChain(t *testing.T) {
	stages := DefaultRollupStages()
	if len(stages) != 5 {
		t.Fatalf("expected 5 stages, got %d", len(stages))
	}
	// each stage's source must be the previous stage's target
	if stages[0].Source != domrepo.TF1m {
		t.Fatalf("chain must start from 1m, got %s", stages[0].Source)
	}
	for i := 1; i < len(stages); i++ {
		if stages[i].Source != stages[i-1].Target {
			t.Fatalf("stage %d source %s != previous target %s", i, stages[i].Source, stages[i-1].Target)
		}
	}
	if stages[len(stages)-1].Target != domrepo.TF1d {
		t.Fatalf("chain must end at 1d, got %s", stages[len(stages)-1].Target)
	}
}
