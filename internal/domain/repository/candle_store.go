package repository

import (
	"context"
	"time"

	"MarketPull/internal/domain/models"
)

// CandleStore provides upsert-by-key and range-read access to the candle
// tables, one table per timeframe.
type CandleStore interface {
	// Upsert replaces rows wholesale by (symbol, candle_time). Re-running
	// with the same input must yield identical stored rows.
	Upsert(ctx context.Context, tf Timeframe, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
	// ReadRange returns candles for all symbols with CandleTime >= since,
	// ordered by (symbol, candle_time) ascending. Used by the roll-up chain.
	ReadRange(ctx context.Context, tf Timeframe, since time.Time) ([]models.Candle, error)
}
