package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketPull/internal/domain/models"
)

type nopMetrics struct{}

func (nopMetrics) RecordMessageSent(string, string) {}
func (nopMetrics) RecordError(string)               {}
func (nopMetrics) RecordLastPrice(string, float64)  {}
func (nopMetrics) RecordLatency(string, float64)    {}

type countingProc struct {
	mu    sync.Mutex
	n     int
	fail  bool
	limit int // succeed after this many failures; 0 means never fail again
}

func (p *countingProc) Process(_ context.Context, t *models.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		if p.limit > 0 {
			p.limit--
			if p.limit == 0 {
				p.fail = false
			}
		}
		return errors.New("downstream down")
	}
	p.n++
	return nil
}

func (p *countingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

func tr(symbol string, price float64) *models.Trade {
	return &models.Trade{Symbol: symbol, Timestamp: time.Now().Unix(), Price: price, Volume: 1}
}

func TestPipelineRejectsInvalidTrades(t *testing.T) {
	proc := &countingProc{}
	p := NewRealtimePipeline(proc, nopMetrics{})
	ctx := context.Background()

	bad := []*models.Trade{
		nil,
		{Symbol: "", Timestamp: 1, Price: 1, Volume: 1},
		{Symbol: "BTCUSDT", Timestamp: 0, Price: 1, Volume: 1},
		{Symbol: "BTCUSDT", Timestamp: 1, Price: -1, Volume: 1},
		{Symbol: "BTCUSDT", Timestamp: 1, Price: 1, Volume: -1},
	}
	for i, b := range bad {
		if err := p.Process(ctx, b); err == nil {
			t.Fatalf("case %d: invalid trade accepted", i)
		}
	}
	if proc.count() != 0 {
		t.Fatalf("invalid trades reached downstream: %d", proc.count())
	}
}

func TestPipelineThrottlesPerSymbolPerSecond(t *testing.T) {
	proc := &countingProc{}
	p := NewRealtimePipeline(proc, nopMetrics{}, WithMaxRPS(2))
	ctx := context.Background()

	now := time.Now()
	if !p.allow("BTCUSDT", now) || !p.allow("BTCUSDT", now) {
		t.Fatal("burst within budget was throttled")
	}
	if p.allow("BTCUSDT", now) {
		t.Fatal("third trade in the same second passed")
	}
	// another symbol has its own budget
	if !p.allow("ETHUSDT", now) {
		t.Fatal("other symbol throttled by BTCUSDT window")
	}
	// next second resets the counter
	if !p.allow("BTCUSDT", now.Add(time.Second)) {
		t.Fatal("window did not reset on second rollover")
	}
	_ = p.Process(ctx, tr("BTCUSDT", 100)) // sanity: full path still works
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &countingProc{fail: true, limit: 1}
	p := NewRealtimePipeline(proc, nopMetrics{}, WithBufferSize(8))
	ctx := context.Background()

	if err := p.Process(ctx, tr("BTCUSDT", 100)); err == nil {
		t.Fatal("expected downstream error")
	}
	if len(p.bufCh) != 1 {
		t.Fatalf("buffer depth = %d, want 1", len(p.bufCh))
	}

	// The flusher retries the buffered trade once downstream recovers.
	p.Start(ctx)
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for proc.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("buffered trade never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPipelineTransformApplied(t *testing.T) {
	proc := &countingProc{}
	p := NewRealtimePipeline(proc, nopMetrics{}, WithTransform(func(t *models.Trade) *models.Trade {
		t.Symbol = "BTCUSDT"
		return t
	}))
	if err := p.Process(context.Background(), tr("btcusdt", 100)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("processed = %d, want 1", proc.count())
	}
}
