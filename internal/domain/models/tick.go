package models

import "time"

// PriceLevel is a single order-book level (price, quantity).
type PriceLevel struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"quantity"`
}

// Tick is one observed market snapshot for a symbol: last price, the recent
// 1m kline window, rolling 24h ticker stats, and the top of the order book.
// Produced once per ingestion cycle per symbol; immutable once built.
type Tick struct {
	Symbol     string
	ExchangeTS time.Time

	LastPrice float64
	Open      float64 // open of the latest 1m kline
	High      float64 // max high over the recent kline window
	Low       float64 // min low over the recent kline window
	Close     float64 // close of the latest 1m kline

	PriceChangePct24h *float64
	QuoteVolume24h    *float64
	High24h           *float64
	Low24h            *float64

	// Bids sorted descending, asks ascending (as delivered by the source).
	Bids []PriceLevel
	Asks []PriceLevel

	// Closes holds the recent 1m closing prices, oldest first. This is the
	// warm-up window for indicator computation.
	Closes []float64
}

// TickPoint is the trimmed tick row the candle builder aggregates over.
type TickPoint struct {
	Symbol         string
	TS             time.Time
	Price          float64
	QuoteVolume24h float64
}

// Trade is a single executed trade from the live stream.
type Trade struct {
	Symbol    string
	Timestamp int64 // unix seconds
	Price     float64
	Volume    float64
}
