package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"MarketPull/internal/domain/models"
	domrepo "MarketPull/internal/domain/repository"
	applogger "MarketPull/pkg/logger"
)

// CandleBuilder buckets raw tick rows into base 1-minute OHLCV candles.
// Each run recomputes every bucket inside the lookback window and replaces
// the stored rows wholesale, so overlapping runs are idempotent.
type CandleBuilder struct {
	ticks    domrepo.SnapshotStore
	store    domrepo.CandleStore
	lookback time.Duration
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

func NewCandleBuilder(ticks domrepo.SnapshotStore, store domrepo.CandleStore, lookback time.Duration, metrics domrepo.Metrics, l *applogger.Logger) *CandleBuilder {
	if lookback <= 0 {
		lookback = 5 * time.Minute
	}
	return &CandleBuilder{ticks: ticks, store: store, lookback: lookback, metrics: metrics, l: l}
}

// Run reads the tick lookback window and upserts the resulting 1m candles.
func (b *CandleBuilder) Run(ctx context.Context, now time.Time) error {
	since := now.UTC().Add(-b.lookback)
	points, err := b.ticks.ReadTicks(ctx, since)
	if err != nil {
		return fmt.Errorf("read ticks: %w", err)
	}
	candles, discarded := BuildMinuteCandles(points)
	if discarded > 0 {
		b.metrics.RecordError("candle_builder_discarded_tick")
		if b.l != nil {
			b.l.Warn("discarded malformed ticks", applogger.Int("count", discarded))
		}
	}
	if len(candles) == 0 {
		return nil
	}
	if err := b.store.Upsert(ctx, domrepo.TF1m, candles); err != nil {
		return fmt.Errorf("upsert 1m candles: %w", err)
	}
	if b.l != nil {
		b.l.Info("built 1m candles",
			applogger.Int("ticks", len(points)),
			applogger.Int("candles", len(candles)),
		)
	}
	return nil
}

// BuildMinuteCandles groups tick points by (symbol, minute bucket) and
// produces one candle per bucket: open/close from the earliest/latest tick,
// high/low from the extremes, trade_count from the tick count. Volume is
// the bucket average of rolling_24h_quote_volume/1440 — a smoothing
// approximation of per-minute traded volume, not actual trade volume (the
// trades_raw stream carries the exact figures). Ticks without a finite
// positive price are discarded and counted. Output is sorted by symbol then
// bucket time so repeated runs over the same input are identical.
func BuildMinuteCandles(points []models.TickPoint) ([]models.Candle, int) {
	type bucketKey struct {
		symbol string
		minute time.Time
	}
	type bucketAgg struct {
		firstTS, lastTS        time.Time
		open, high, low, close float64
		volumeSum              float64
		count                  uint64
	}

	buckets := make(map[bucketKey]*bucketAgg)
	discarded := 0
	for _, p := range points {
		if p.Symbol == "" || p.TS.IsZero() || !validPrice(p.Price) {
			discarded++
			continue
		}
		key := bucketKey{symbol: p.Symbol, minute: domrepo.TF1m.Bucket(p.TS)}
		agg, ok := buckets[key]
		if !ok {
			agg = &bucketAgg{
				firstTS: p.TS, lastTS: p.TS,
				open: p.Price, high: p.Price, low: p.Price, close: p.Price,
			}
			buckets[key] = agg
		}
		if p.TS.Before(agg.firstTS) {
			agg.firstTS = p.TS
			agg.open = p.Price
		}
		if !p.TS.Before(agg.lastTS) {
			agg.lastTS = p.TS
			agg.close = p.Price
		}
		if p.Price > agg.high {
			agg.high = p.Price
		}
		if p.Price < agg.low {
			agg.low = p.Price
		}
		agg.volumeSum += p.QuoteVolume24h / minutesPerDay
		agg.count++
	}

	out := make([]models.Candle, 0, len(buckets))
	for key, agg := range buckets {
		vol := agg.volumeSum / float64(agg.count)
		out = append(out, models.Candle{
			Symbol:      key.symbol,
			CandleTime:  key.minute,
			Open:        agg.open,
			High:        agg.high,
			Low:         agg.low,
			Close:       agg.close,
			Volume:      vol,
			VolumeQuote: vol,
			TradeCount:  agg.count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].CandleTime.Before(out[j].CandleTime)
	})
	return out, discarded
}

func validPrice(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
