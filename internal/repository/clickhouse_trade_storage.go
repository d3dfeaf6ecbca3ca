package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MarketPull/internal/domain/models"
	domrepo "MarketPull/internal/domain/repository"
)

// ClickHouseTradeStorage implements TradeStorage over the trades_raw table.
type ClickHouseTradeStorage struct {
	db     *sql.DB
	table  string
	source string
}

func NewClickHouseTradeStorage(db *sql.DB, table, source string) domrepo.TradeStorage {
	return &ClickHouseTradeStorage{db: db, table: table, source: source}
}

func (s *ClickHouseTradeStorage) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *ClickHouseTradeStorage) Store(ctx context.Context, t *models.Trade) error {
	q := fmt.Sprintf("INSERT INTO %s (symbol, ts, price, qty, source) VALUES (?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		t.Symbol,
		time.Unix(t.Timestamp, 0).UTC(),
		t.Price,
		t.Volume,
		s.source,
	)
	return err
}

func (s *ClickHouseTradeStorage) StoreBatch(ctx context.Context, trades []*models.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	// Chunk size tuned to 2000 rows per batch.
	const chunkSize = 2000
	for start := 0; start < len(trades); start += chunkSize {
		end := start + chunkSize
		if end > len(trades) {
			end = len(trades)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*5)
		for _, t := range trades[start:end] {
			if t == nil || t.Symbol == "" || t.Timestamp == 0 {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args,
				t.Symbol,
				time.Unix(t.Timestamp, 0).UTC(),
				t.Price,
				t.Volume,
				s.source,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, ts, price, qty, source) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseTradeStorage) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Trade, error) {
	q := fmt.Sprintf("SELECT symbol, ts, price, qty FROM %s WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		var t models.Trade
		var ts time.Time
		if err := rows.Scan(&t.Symbol, &ts, &t.Price, &t.Volume); err != nil {
			return nil, err
		}
		t.Timestamp = ts.Unix()
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

func (s *ClickHouseTradeStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseTradeStorage) Close() error {
	return nil // Managed by pkg
}
