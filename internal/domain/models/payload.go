package models

import "time"

// IndicatorSnapshot holds the technical indicators derived from a symbol's
// recent closing-price window. Nil means the window was too short for that
// indicator (never a crash, never a zero standing in for "unknown").
type IndicatorSnapshot struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`

	SMA7          *float64 `json:"sma_7,omitempty"`
	SMA30         *float64 `json:"sma_30,omitempty"`
	RSI14         *float64 `json:"rsi_14,omitempty"`
	MACD          *float64 `json:"macd,omitempty"`
	MACDSignal    *float64 `json:"macd_signal,omitempty"`
	Volatility24h *float64 `json:"volatility_24h,omitempty"`

	RollingReturn1h  *float64 `json:"rolling_return_1h,omitempty"`
	RollingReturn24h *float64 `json:"rolling_return_24h,omitempty"`
	HighLowRange24h  *float64 `json:"high_low_range_24h,omitempty"`
}

// DepthSnapshot condenses one side of the order book into a bounded top-N
// view plus aggregate totals over exactly those N levels.
type DepthSnapshot struct {
	Side       string       `json:"side"`
	Levels     []PriceLevel `json:"levels"`
	BaseTotal  float64      `json:"base_total"`
	QuoteTotal float64      `json:"quote_total"`
}

// MarketPayload is the per-tick record written to the sinks: the market
// snapshot fields plus the derived indicator and depth views.
type MarketPayload struct {
	Symbol     string    `json:"symbol"`
	Exchange   string    `json:"exchange"`
	Interval   string    `json:"window_interval"`
	ExchangeTS time.Time `json:"exchange_ts"`

	Open      *float64 `json:"open,omitempty"`
	High      *float64 `json:"high,omitempty"`
	Low       *float64 `json:"low,omitempty"`
	Close     *float64 `json:"close,omitempty"`
	LastPrice float64  `json:"last_price"`

	PriceChangePct1h  *float64 `json:"price_change_pct_1h,omitempty"`
	PriceChangePct24h *float64 `json:"price_change_pct_24h,omitempty"`
	QuoteVolume24h    *float64 `json:"volume_24h_quote,omitempty"`
	BidAskSpread      *float64 `json:"bid_ask_spread,omitempty"`

	BidDepth DepthSnapshot `json:"bid_depth"`
	AskDepth DepthSnapshot `json:"ask_depth"`

	Indicators IndicatorSnapshot `json:"technicals"`

	IngestedAt time.Time `json:"ingested_at"`
}

// IngestStats is the monitoring view over the ingestion loop.
type IngestStats struct {
	Symbols           []string  `json:"symbols"`
	IntervalSeconds   int       `json:"fetch_interval_seconds"`
	LastFetchTime     time.Time `json:"last_fetch_time"`
	AvgFetchLatencyMs float64   `json:"avg_fetch_latency_ms"`
	RecentLatenciesMs []float64 `json:"recent_latencies_ms"`
	TrackedSymbols    int       `json:"tracked_symbols_count"`
}
