package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"MarketPull/internal/domain/models"
	domrepo "MarketPull/internal/domain/repository"
	applogger "MarketPull/pkg/logger"
)

// RollupStage describes one link of the roll-up chain: aggregate Source
// candles into the strictly coarser Target timeframe, reprocessing the last
// LookbackBuckets target buckets each run to absorb late source rows.
type RollupStage struct {
	Source          domrepo.Timeframe
	Target          domrepo.Timeframe
	LookbackBuckets int
}

// DefaultRollupStages returns the fixed 1m→5m→15m→1h→4h→1d chain with its
// per-stage lookbacks.
func DefaultRollupStages() []RollupStage {
	return []RollupStage{
		{Source: domrepo.TF1m, Target: domrepo.TF5m, LookbackBuckets: 12},
		{Source: domrepo.TF5m, Target: domrepo.TF15m, LookbackBuckets: 8},
		{Source: domrepo.TF15m, Target: domrepo.TF1h, LookbackBuckets: 8},
		{Source: domrepo.TF1h, Target: domrepo.TF4h, LookbackBuckets: 6},
		{Source: domrepo.TF4h, Target: domrepo.TF1d, LookbackBuckets: 7},
	}
}

// RollupReducer executes one stage: read the source window, recompute the
// target buckets in full, and replace the stored target rows.
type RollupReducer struct {
	store   domrepo.CandleStore
	stage   RollupStage
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewRollupReducer(store domrepo.CandleStore, stage RollupStage, metrics domrepo.Metrics, l *applogger.Logger) *RollupReducer {
	if stage.LookbackBuckets <= 0 {
		stage.LookbackBuckets = 10
	}
	return &RollupReducer{store: store, stage: stage, metrics: metrics, l: l}
}

func (r *RollupReducer) Stage() RollupStage { return r.stage }

func (r *RollupReducer) Run(ctx context.Context, now time.Time) error {
	since := r.stage.Target.Bucket(now).Add(-time.Duration(r.stage.LookbackBuckets) * r.stage.Target.Duration())
	src, err := r.store.ReadRange(ctx, r.stage.Source, since)
	if err != nil {
		return fmt.Errorf("read %s candles: %w", r.stage.Source, err)
	}
	out := RollupCandles(src, r.stage.Target)
	if len(out) == 0 {
		return nil
	}
	if err := r.store.Upsert(ctx, r.stage.Target, out); err != nil {
		return fmt.Errorf("upsert %s candles: %w", r.stage.Target, err)
	}
	if r.l != nil {
		r.l.Info("rolled up candles",
			applogger.String("source", string(r.stage.Source)),
			applogger.String("target", string(r.stage.Target)),
			applogger.Int("rows", len(out)),
		)
	}
	return nil
}

// RollupCandles aggregates source candles into target buckets: open from
// the earliest source bucket, close from the latest, high/low from the
// extremes, volume/volume_quote/trade_count summed. Fully recomputed from
// the input, so feeding the same rows twice yields identical output (no
// double counting). Output sorted by symbol then bucket time.
func RollupCandles(src []models.Candle, target domrepo.Timeframe) []models.Candle {
	type bucketKey struct {
		symbol string
		bucket time.Time
	}

	buckets := make(map[bucketKey]*models.Candle)
	earliest := make(map[bucketKey]time.Time)
	latest := make(map[bucketKey]time.Time)

	for _, c := range src {
		key := bucketKey{symbol: c.Symbol, bucket: target.Bucket(c.CandleTime)}
		agg, ok := buckets[key]
		if !ok {
			cc := c
			cc.CandleTime = key.bucket
			buckets[key] = &cc
			earliest[key] = c.CandleTime
			latest[key] = c.CandleTime
			continue
		}
		if c.CandleTime.Before(earliest[key]) {
			earliest[key] = c.CandleTime
			agg.Open = c.Open
		}
		if c.CandleTime.After(latest[key]) {
			latest[key] = c.CandleTime
			agg.Close = c.Close
		}
		if c.High > agg.High {
			agg.High = c.High
		}
		if c.Low < agg.Low {
			agg.Low = c.Low
		}
		agg.Volume += c.Volume
		agg.VolumeQuote += c.VolumeQuote
		agg.TradeCount += c.TradeCount
	}

	out := make([]models.Candle, 0, len(buckets))
	for _, c := range buckets {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].CandleTime.Before(out[j].CandleTime)
	})
	return out
}
