package features

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestSMA(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	got, ok := SMA(vals, 5)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got != 8.0 {
		t.Fatalf("SMA([1..10],5) = %v, want 8.0", got)
	}
}

func TestSMAInsufficient(t *testing.T) {
	if _, ok := SMA([]float64{1, 2, 3}, 5); ok {
		t.Fatalf("expected not ok for short series")
	}
	if _, ok := SMA(nil, 1); ok {
		t.Fatalf("expected not ok for empty series")
	}
}

func TestEMAConstantSeries(t *testing.T) {
	vals := make([]float64, 30)
	for i := range vals {
		vals[i] = 42
	}
	got, ok := EMA(vals, 10)
	if !ok {
		t.Fatalf("expected ok")
	}
	if !almostEqual(got, 42, 1e-9) {
		t.Fatalf("EMA of constant series = %v, want 42", got)
	}
}

func TestEMAInsufficient(t *testing.T) {
	if _, ok := EMA([]float64{1, 2}, 3); ok {
		t.Fatalf("expected not ok")
	}
}

func TestRSIBounds(t *testing.T) {
	// strictly rising: no losses, RSI must be exactly 100
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(i + 1)
	}
	got, ok := RSI(rising, 14)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got != 100 {
		t.Fatalf("RSI of rising series = %v, want 100", got)
	}

	// strictly falling: all losses, RSI must be 0
	falling := make([]float64, 20)
	for i := range falling {
		falling[i] = float64(100 - i)
	}
	got, ok = RSI(falling, 14)
	if !ok {
		t.Fatalf("expected ok")
	}
	if !almostEqual(got, 0, 1e-9) {
		t.Fatalf("RSI of falling series = %v, want 0", got)
	}
}

func TestRSIRange(t *testing.T) {
	vals := []float64{10, 11, 10.5, 12, 11.2, 11.9, 13, 12.1, 12.8, 13.5, 12.9, 14, 13.2, 13.9, 14.5, 13.8}
	got, ok := RSI(vals, 14)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got < 0 || got > 100 {
		t.Fatalf("RSI out of [0,100]: %v", got)
	}
}

func TestRSIInsufficient(t *testing.T) {
	vals := make([]float64, 14) // needs period+1
	if _, ok := RSI(vals, 14); ok {
		t.Fatalf("expected not ok with exactly period values")
	}
}

func TestMACDConstantSeries(t *testing.T) {
	vals := make([]float64, 50)
	for i := range vals {
		vals[i] = 100
	}
	macd, sig, ok := MACD(vals, 12, 26, 9)
	if !ok {
		t.Fatalf("expected ok")
	}
	if !almostEqual(macd, 0, 1e-9) || !almostEqual(sig, 0, 1e-9) {
		t.Fatalf("MACD of constant series = (%v, %v), want (0, 0)", macd, sig)
	}
}

func TestMACDInsufficient(t *testing.T) {
	vals := make([]float64, 34) // needs slow+signal = 35
	if _, _, ok := MACD(vals, 12, 26, 9); ok {
		t.Fatalf("expected not ok")
	}
}

func TestLogReturnsSkipsNonPositive(t *testing.T) {
	rets := LogReturns([]float64{100, 0, 110, 121})
	// 100->0 and 0->110 both skipped, only 110->121 remains
	if len(rets) != 1 {
		t.Fatalf("expected 1 return, got %d", len(rets))
	}
	if !almostEqual(rets[0], math.Log(1.1), 1e-12) {
		t.Fatalf("unexpected return %v", rets[0])
	}
}

func TestAnnualizedVolatility(t *testing.T) {
	// equal returns: zero variance, zero volatility
	rets := []float64{0.01, 0.01, 0.01, 0.01}
	got, ok := AnnualizedVolatility(rets, 1440)
	if !ok {
		t.Fatalf("expected ok")
	}
	if !almostEqual(got, 0, 1e-12) {
		t.Fatalf("volatility of equal returns = %v, want 0", got)
	}

	if _, ok := AnnualizedVolatility(nil, 1440); ok {
		t.Fatalf("expected not ok for empty returns")
	}

	rets = []float64{0.01, -0.02, 0.005, 0.03, -0.01}
	got, ok = AnnualizedVolatility(rets, 1440)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got < 0 {
		t.Fatalf("volatility must be non-negative, got %v", got)
	}
}
