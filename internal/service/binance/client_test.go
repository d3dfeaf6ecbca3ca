package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

func klineRows(n int) [][]interface{} {
	rows := make([][]interface{}, n)
	for i := 0; i < n; i++ {
		open := int64(1700000000000) + int64(i)*60000
		rows[i] = []interface{}{
			open, "100", "101", "99", strconv.Itoa(100 + i), "10", open + 59999,
		}
	}
	return rows
}

// fakeExchange serves the three snapshot endpoints. The klines endpoint
// returns firstRows rows on the first call and laterRows afterwards.
func fakeExchange(firstRows, laterRows int) (*httptest.Server, func() int) {
	var mu sync.Mutex
	klineCalls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/24hr", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"symbol":             "BTCUSDT",
			"lastPrice":          "100.5",
			"priceChangePercent": "1.2",
			"quoteVolume":        "14400",
			"highPrice":          "102",
			"lowPrice":           "98",
		})
	})
	mux.HandleFunc("/api/v3/depth", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string][][]string{
			"bids": {{"100", "1"}},
			"asks": {{"101", "2"}},
		})
	})
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		klineCalls++
		n := firstRows
		if klineCalls > 1 {
			n = laterRows
		}
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(klineRows(n))
	})

	calls := func() int {
		mu.Lock()
		defer mu.Unlock()
		return klineCalls
	}
	return httptest.NewServer(mux), calls
}

func TestFetchTicksTopsUpShortCloseSeries(t *testing.T) {
	srv, klineCalls := fakeExchange(2, 40)
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second, 5, nil)
	ticks, err := c.FetchTicks(context.Background(), []string{"BTCUSDT"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("ticks = %d, want 1", len(ticks))
	}
	if got := len(ticks[0].Closes); got != 40 {
		t.Fatalf("closes = %d, want 40 (topped up from the series endpoint)", got)
	}
	if klineCalls() != 2 {
		t.Fatalf("kline calls = %d, want 2", klineCalls())
	}
}

func TestFetchTicksKeepsFullCloseSeries(t *testing.T) {
	srv, klineCalls := fakeExchange(klineLimit, klineLimit)
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second, 5, nil)
	ticks, err := c.FetchTicks(context.Background(), []string{"BTCUSDT"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := len(ticks[0].Closes); got != klineLimit {
		t.Fatalf("closes = %d, want %d", got, klineLimit)
	}
	if klineCalls() != 1 {
		t.Fatalf("kline calls = %d, want 1 (no top-up for a full window)", klineCalls())
	}
}

func TestFetchRecentSeriesOrdersOldestFirst(t *testing.T) {
	srv, _ := fakeExchange(10, 10)
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second, 5, nil)
	closes, err := c.FetchRecentSeries(context.Background(), "btcusdt", 10)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(closes) != 10 {
		t.Fatalf("len = %d, want 10", len(closes))
	}
	if closes[0] != 100 || closes[9] != 109 {
		t.Fatalf("series = %v, want 100..109 oldest first", closes)
	}
}
