package features

import (
	"math"
	"testing"

	"MarketPull/internal/domain/models"
)

func TestSummarizeDepthTotals(t *testing.T) {
	levels := []models.PriceLevel{
		{Price: 100.5, Qty: 2},
		{Price: 100.4, Qty: 1.5},
		{Price: 100.3, Qty: 0.25},
		{Price: 100.2, Qty: 10},
	}
	got := SummarizeDepth("bid", levels, 3)
	if got.Side != "bid" {
		t.Fatalf("unexpected side %q", got.Side)
	}
	if len(got.Levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(got.Levels))
	}
	wantBase := 2 + 1.5 + 0.25
	wantQuote := 100.5*2 + 100.4*1.5 + 100.3*0.25
	if got.BaseTotal != wantBase {
		t.Fatalf("base total = %v, want %v", got.BaseTotal, wantBase)
	}
	if math.Abs(got.QuoteTotal-wantQuote) > 1e-12 {
		t.Fatalf("quote total = %v, want %v", got.QuoteTotal, wantQuote)
	}
}

func TestSummarizeDepthEmpty(t *testing.T) {
	got := SummarizeDepth("ask", nil, 5)
	if len(got.Levels) != 0 || got.BaseTotal != 0 || got.QuoteTotal != 0 {
		t.Fatalf("expected empty snapshot, got %+v", got)
	}
}

func TestSummarizeDepthFewerThanN(t *testing.T) {
	levels := []models.PriceLevel{{Price: 10, Qty: 1}}
	got := SummarizeDepth("ask", levels, 5)
	if len(got.Levels) != 1 {
		t.Fatalf("expected 1 level, got %d", len(got.Levels))
	}
	if got.QuoteTotal != 10 {
		t.Fatalf("quote total = %v, want 10", got.QuoteTotal)
	}
}
