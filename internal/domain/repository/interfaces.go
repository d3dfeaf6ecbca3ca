package repository

import (
	"context"
	"time"

	"MarketPull/internal/domain/models"
)

// TickSource pulls structured market snapshots from an exchange API.
type TickSource interface {
	// FetchTicks returns one tick per symbol. Symbols that fail are dropped
	// from the result; the error is non-nil only when every fetch failed.
	FetchTicks(ctx context.Context, symbols []string) ([]*models.Tick, error)
	// FetchRecentSeries returns the last n closing prices, oldest first.
	FetchRecentSeries(ctx context.Context, symbol string, n int) ([]float64, error)
}

// MarketStream is a live trade feed (WebSocket).
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Trade, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher pushes trades and payloads to a message broker.
type Publisher interface {
	PublishTrade(ctx context.Context, t *models.Trade) error
	PublishTradeBatch(ctx context.Context, trades []*models.Trade) error
	PublishPayload(ctx context.Context, p *models.MarketPayload) error
	Close() error
}

// TradeStorage persists raw trades from the live stream.
type TradeStorage interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, t *models.Trade) error
	StoreBatch(ctx context.Context, trades []*models.Trade) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Trade, error)
	Health(ctx context.Context) error
	Close() error
}

// SnapshotStore persists per-tick payloads and serves the tick rows the
// candle builder aggregates over.
type SnapshotStore interface {
	StoreSnapshot(ctx context.Context, p *models.MarketPayload) error
	// ReadTicks returns tick points for all symbols with TS >= since,
	// ordered by (symbol, ts) ascending.
	ReadTicks(ctx context.Context, since time.Time) ([]models.TickPoint, error)
	Health(ctx context.Context) error
}

type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
