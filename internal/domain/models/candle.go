package models

import "time"

// Candle is one OHLCV bucket, uniquely keyed by (symbol, timeframe,
// candle_time). CandleTime is the floor of the source timestamps to the
// timeframe's bucket width. Rows are always replaced wholesale on
// re-aggregation, never incremented.
type Candle struct {
	Symbol      string    `json:"symbol"`
	CandleTime  time.Time `json:"candle_time"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	VolumeQuote float64   `json:"volume_quote"`
	TradeCount  uint64    `json:"trade_count"`
}
