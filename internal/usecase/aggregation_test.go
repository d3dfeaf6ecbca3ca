package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"MarketPull/internal/domain/models"
	domrepo "MarketPull/internal/domain/repository"
)

type fakeSnapshotStore struct {
	mu    sync.Mutex
	reads int
}

func (f *fakeSnapshotStore) StoreSnapshot(context.Context, *models.MarketPayload) error { return nil }

func (f *fakeSnapshotStore) ReadTicks(context.Context, time.Time) ([]models.TickPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return nil, nil
}

func (f *fakeSnapshotStore) Health(context.Context) error { return nil }

func (f *fakeSnapshotStore) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type fakeCandleStore struct{}

func (fakeCandleStore) Upsert(context.Context, domrepo.Timeframe, []models.Candle) error { return nil }

func (fakeCandleStore) GetCandles(context.Context, string, time.Time, time.Time, domrepo.Timeframe) ([]models.Candle, error) {
	return nil, nil
}

func (fakeCandleStore) GetLatestNCandles(context.Context, string, int, domrepo.Timeframe) ([]models.Candle, error) {
	return nil, nil
}

func (fakeCandleStore) ReadRange(context.Context, domrepo.Timeframe, time.Time) ([]models.Candle, error) {
	return nil, nil
}

func newTestPipeline(ticks *fakeSnapshotStore) *AggregationPipeline {
	builder := NewCandleBuilder(ticks, fakeCandleStore{}, time.Minute, nopMetrics{}, nil)
	return NewAggregationPipeline(builder, nil, time.Minute, 0, nopMetrics{}, nil)
}

func TestAggregationJobRunsTriggerWithoutLogger(t *testing.T) {
	ticks := &fakeSnapshotStore{}
	job := NewAggregationJob(newTestPipeline(ticks))

	payload := map[string]interface{}{"requested_at": "2026-08-23T00:00:00Z", "source": "api"}
	if err := job.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := ticks.readCount(); got != 1 {
		t.Fatalf("pipeline passes = %d, want 1", got)
	}
}

func TestAggregationJobRunsWithoutPayload(t *testing.T) {
	ticks := &fakeSnapshotStore{}
	job := NewAggregationJob(newTestPipeline(ticks))

	if err := job.Handle(context.Background(), nil); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := ticks.readCount(); got != 1 {
		t.Fatalf("pipeline passes = %d, want 1", got)
	}
}
