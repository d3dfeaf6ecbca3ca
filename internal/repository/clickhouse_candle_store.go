package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MarketPull/internal/domain/models"
	domrepo "MarketPull/internal/domain/repository"
	pkgch "MarketPull/pkg/clickhouse"
	applogger "MarketPull/pkg/logger"
)

var candleTables = map[domrepo.Timeframe]string{
	domrepo.TF1m:  "candles_1m",
	domrepo.TF5m:  "candles_5m",
	domrepo.TF15m: "candles_15m",
	domrepo.TF1h:  "candles_1h",
	domrepo.TF4h:  "candles_4h",
	domrepo.TF1d:  "candles_1d",
}

// CHCandleStore implements CandleStore backed by ClickHouse. One
// ReplacingMergeTree table per timeframe; upserts are plain inserts that
// supersede prior rows by key, reads use FINAL so callers always see the
// latest version of each row.
type CHCandleStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHCandleStore(ch *pkgch.Client, database string) *CHCandleStore {
	return &CHCandleStore{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHCandleStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHCandleStore) table(tf domrepo.Timeframe) (string, error) {
	t, ok := candleTables[tf]
	if !ok {
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return s.database + "." + t, nil
}

func (s *CHCandleStore) Upsert(ctx context.Context, tf domrepo.Timeframe, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	table, err := s.table(tf)
	if err != nil {
		return err
	}

	values := make([]string, 0, len(candles))
	args := make([]interface{}, 0, len(candles)*9)
	for _, c := range candles {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			c.Symbol,
			c.CandleTime,
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.Volume,
			c.VolumeQuote,
			c.TradeCount,
		)
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (symbol, candle_time, open, high, low, close, volume, volume_quote, trade_count) VALUES %s",
		table, strings.Join(values, ","),
	)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse candle upsert error",
				applogger.String("table", table),
				applogger.Int("rows", len(candles)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("upsert candles: %w", err)
	}
	return nil
}

func (s *CHCandleStore) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	table, err := s.table(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT symbol, candle_time, open, high, low, close, volume, volume_quote, trade_count
        FROM %s FINAL
        WHERE symbol = ? AND candle_time >= ? AND candle_time <= ?
        ORDER BY candle_time ASC
    `
	q := fmt.Sprintf(qtpl, table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	defer rows.Close()
	return s.scanCandles(rows, table)
}

func (s *CHCandleStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	table, err := s.table(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT symbol, candle_time, open, high, low, close, volume, volume_quote, trade_count
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY candle_time DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, table)
	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	defer rows.Close()
	out, err := s.scanCandles(rows, table)
	if err != nil {
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *CHCandleStore) ReadRange(ctx context.Context, tf domrepo.Timeframe, since time.Time) ([]models.Candle, error) {
	table, err := s.table(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT symbol, candle_time, open, high, low, close, volume, volume_quote, trade_count
        FROM %s FINAL
        WHERE candle_time >= ?
        ORDER BY symbol ASC, candle_time ASC
    `
	q := fmt.Sprintf(qtpl, table)
	rows, err := s.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("read candle range: %w", err)
	}
	defer rows.Close()
	return s.scanCandles(rows, table)
}

func (s *CHCandleStore) scanCandles(rows *sql.Rows, table string) ([]models.Candle, error) {
	out := make([]models.Candle, 0, 256)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Symbol, &c.CandleTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.VolumeQuote, &c.TradeCount); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse candle scan error",
					applogger.String("table", table),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

var _ domrepo.CandleStore = (*CHCandleStore)(nil)
