package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketPull/internal/domain/models"
)

type fakeSource struct {
	ticks []*models.Tick
	err   error
}

func (f *fakeSource) FetchTicks(ctx context.Context, symbols []string) ([]*models.Tick, error) {
	return f.ticks, f.err
}

func (f *fakeSource) FetchRecentSeries(ctx context.Context, symbol string, n int) ([]float64, error) {
	return nil, nil
}

type fakeSink struct {
	name string
	err  error

	mu       sync.Mutex
	payloads []*models.MarketPayload
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Write(ctx context.Context, p *models.MarketPayload) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.payloads = append(f.payloads, p)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

type nopMetrics struct{}

func (nopMetrics) RecordMessageSent(string, string) {}
func (nopMetrics) RecordError(string)               {}
func (nopMetrics) RecordLastPrice(string, float64)  {}
func (nopMetrics) RecordLatency(string, float64)    {}

func ingestTick(symbol string, price float64) *models.Tick {
	return &models.Tick{
		Symbol:     symbol,
		ExchangeTS: time.Now().UTC(),
		LastPrice:  price,
		Close:      price,
		Closes:     []float64{price - 1, price},
	}
}

func newTestIngestion(src *fakeSource, sinks ...PayloadSink) *IngestionService {
	return NewIngestionService(
		src,
		sinks,
		[]string{"BTCUSDT", "ETHUSDT"},
		time.Minute,
		5,
		nil,
		time.Minute,
		nopMetrics{},
		nil,
	)
}

func TestRunCycleWritesAllSinks(t *testing.T) {
	src := &fakeSource{ticks: []*models.Tick{ingestTick("BTCUSDT", 100), ingestTick("ETHUSDT", 200)}}
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	s := newTestIngestion(src, a, b)

	s.runCycle(context.Background())

	if a.count() != 2 || b.count() != 2 {
		t.Fatalf("sink writes = %d/%d, want 2/2", a.count(), b.count())
	}
}

func TestRunCycleSinkFailureIsIsolated(t *testing.T) {
	src := &fakeSource{ticks: []*models.Tick{ingestTick("BTCUSDT", 100)}}
	broken := &fakeSink{name: "broken", err: errors.New("down")}
	healthy := &fakeSink{name: "healthy"}
	s := newTestIngestion(src, broken, healthy)

	s.runCycle(context.Background())

	if healthy.count() != 1 {
		t.Fatalf("healthy sink writes = %d, want 1 despite broken sibling", healthy.count())
	}
}

func TestLatestPayloadAfterCycle(t *testing.T) {
	src := &fakeSource{ticks: []*models.Tick{ingestTick("BTCUSDT", 123.45)}}
	s := newTestIngestion(src, &fakeSink{name: "a"})

	if got := s.LatestPayload("BTCUSDT"); got != nil {
		t.Fatal("expected nil payload before first cycle")
	}

	s.runCycle(context.Background())

	p := s.LatestPayload("BTCUSDT")
	if p == nil {
		t.Fatal("expected payload after cycle")
	}
	if p.Symbol != "BTCUSDT" || p.LastPrice != 123.45 {
		t.Fatalf("payload = %s/%v", p.Symbol, p.LastPrice)
	}
	if s.LatestPayload("ETHUSDT") != nil {
		t.Fatal("no cycle produced ETHUSDT yet")
	}
}

func TestIntervalFloor(t *testing.T) {
	s := NewIngestionService(&fakeSource{}, nil, []string{"BTCUSDT"}, time.Second, 5, nil, 0, nopMetrics{}, nil)
	if s.interval != 10*time.Second {
		t.Fatalf("interval = %v, want floor of 10s", s.interval)
	}
}

func TestStatsTracksLatencyRing(t *testing.T) {
	src := &fakeSource{ticks: []*models.Tick{ingestTick("BTCUSDT", 100)}}
	s := newTestIngestion(src, &fakeSink{name: "a"})

	for i := 0; i < latencyRingSize+20; i++ {
		s.recordCycle(50 * time.Millisecond)
	}
	s.runCycle(context.Background())

	stats := s.Stats()
	if stats.IntervalSeconds != 60 {
		t.Fatalf("interval seconds = %d", stats.IntervalSeconds)
	}
	if stats.LastFetchTime.IsZero() {
		t.Fatal("last fetch time not recorded")
	}
	if len(stats.RecentLatenciesMs) != 10 {
		t.Fatalf("recent latencies = %d, want last 10", len(stats.RecentLatenciesMs))
	}
	if stats.AvgFetchLatencyMs < 49 || stats.AvgFetchLatencyMs > 51 {
		t.Fatalf("avg latency = %v, want ~50ms", stats.AvgFetchLatencyMs)
	}
	if stats.TrackedSymbols != 1 {
		t.Fatalf("tracked symbols = %d, want 1", stats.TrackedSymbols)
	}
}

func TestFetchFailureSkipsCycle(t *testing.T) {
	src := &fakeSource{err: errors.New("exchange down")}
	sink := &fakeSink{name: "a"}
	s := newTestIngestion(src, sink)

	s.runCycle(context.Background())

	if sink.count() != 0 {
		t.Fatalf("sink writes = %d, want 0 on fetch failure", sink.count())
	}
}
