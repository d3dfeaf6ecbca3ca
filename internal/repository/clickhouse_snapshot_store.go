package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"MarketPull/internal/domain/models"
	domrepo "MarketPull/internal/domain/repository"
	pkgch "MarketPull/pkg/clickhouse"
	applogger "MarketPull/pkg/logger"
)

// CHSnapshotStore persists per-tick market payloads. Each StoreSnapshot call
// writes one row to market_ticks and one to technicals; the candle builder
// reads the tick rows back through ReadTicks.
type CHSnapshotStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHSnapshotStore(ch *pkgch.Client, database string) *CHSnapshotStore {
	return &CHSnapshotStore{db: ch.DB(), database: database}
}

func (s *CHSnapshotStore) SetLogger(l *applogger.Logger) { s.l = l }

// Name identifies the store when used as an ingestion sink.
func (s *CHSnapshotStore) Name() string { return "clickhouse" }

// Write satisfies the ingestion sink contract.
func (s *CHSnapshotStore) Write(ctx context.Context, p *models.MarketPayload) error {
	return s.StoreSnapshot(ctx, p)
}

func (s *CHSnapshotStore) StoreSnapshot(ctx context.Context, p *models.MarketPayload) error {
	if p == nil {
		return fmt.Errorf("payload is nil")
	}

	bidDepth, err := json.Marshal(p.BidDepth)
	if err != nil {
		return fmt.Errorf("marshal bid depth: %w", err)
	}
	askDepth, err := json.Marshal(p.AskDepth)
	if err != nil {
		return fmt.Errorf("marshal ask depth: %w", err)
	}

	tickQ := fmt.Sprintf(`INSERT INTO %s.market_ticks
        (symbol, exchange, window_interval, exchange_ts,
         open, high, low, close, last_price,
         price_change_pct_1h, price_change_pct_24h, volume_24h_quote,
         bid_ask_spread, bid_depth, ask_depth, ingested_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database)
	if _, err := s.db.ExecContext(ctx, tickQ,
		p.Symbol,
		p.Exchange,
		p.Interval,
		p.ExchangeTS,
		p.Open,
		p.High,
		p.Low,
		p.Close,
		p.LastPrice,
		p.PriceChangePct1h,
		p.PriceChangePct24h,
		p.QuoteVolume24h,
		p.BidAskSpread,
		string(bidDepth),
		string(askDepth),
		p.IngestedAt,
	); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse tick insert error",
				applogger.String("symbol", p.Symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("insert market tick: %w", err)
	}

	ind := p.Indicators
	techQ := fmt.Sprintf(`INSERT INTO %s.technicals
        (symbol, exchange_ts, sma_7, sma_30, rsi_14, macd, macd_signal,
         volatility_24h, rolling_return_1h, rolling_return_24h,
         high_low_range_24h, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database)
	if _, err := s.db.ExecContext(ctx, techQ,
		p.Symbol,
		p.ExchangeTS,
		ind.SMA7,
		ind.SMA30,
		ind.RSI14,
		ind.MACD,
		ind.MACDSignal,
		ind.Volatility24h,
		ind.RollingReturn1h,
		ind.RollingReturn24h,
		ind.HighLowRange24h,
		p.IngestedAt,
	); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse technicals insert error",
				applogger.String("symbol", p.Symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("insert technicals: %w", err)
	}

	return nil
}

func (s *CHSnapshotStore) ReadTicks(ctx context.Context, since time.Time) ([]models.TickPoint, error) {
	q := fmt.Sprintf(`
        SELECT symbol, exchange_ts, last_price, coalesce(volume_24h_quote, 0)
        FROM %s.market_ticks
        WHERE exchange_ts >= ?
        ORDER BY symbol ASC, exchange_ts ASC
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("read ticks: %w", err)
	}
	defer rows.Close()

	out := make([]models.TickPoint, 0, 512)
	for rows.Next() {
		var tp models.TickPoint
		if err := rows.Scan(&tp.Symbol, &tp.TS, &tp.Price, &tp.QuoteVolume24h); err != nil {
			return nil, fmt.Errorf("scan tick point: %w", err)
		}
		out = append(out, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHSnapshotStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ domrepo.SnapshotStore = (*CHSnapshotStore)(nil)
