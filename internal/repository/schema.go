package repository

import "fmt"

// Schema returns the idempotent DDL for all MarketPull tables. Candle
// tables are ReplacingMergeTree keyed by (symbol, candle_time): inserting a
// row with the same key and a newer updated_at replaces the old one on
// merge, and reads go through FINAL. That is the upsert-by-key contract the
// roll-up pipeline relies on.
func Schema(database string) []string {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.market_ticks (
			symbol String,
			exchange String,
			window_interval String,
			exchange_ts DateTime64(3, 'UTC'),
			open Nullable(Float64),
			high Nullable(Float64),
			low Nullable(Float64),
			close Nullable(Float64),
			last_price Float64,
			price_change_pct_1h Nullable(Float64),
			price_change_pct_24h Nullable(Float64),
			volume_24h_quote Nullable(Float64),
			bid_ask_spread Nullable(Float64),
			bid_depth String,
			ask_depth String,
			ingested_at DateTime64(3, 'UTC')
		) ENGINE=MergeTree ORDER BY (symbol, exchange_ts)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.technicals (
			symbol String,
			exchange_ts DateTime64(3, 'UTC'),
			sma_7 Nullable(Float64),
			sma_30 Nullable(Float64),
			rsi_14 Nullable(Float64),
			macd Nullable(Float64),
			macd_signal Nullable(Float64),
			volatility_24h Nullable(Float64),
			rolling_return_1h Nullable(Float64),
			rolling_return_24h Nullable(Float64),
			high_low_range_24h Nullable(Float64),
			created_at DateTime64(3, 'UTC')
		) ENGINE=MergeTree ORDER BY (symbol, exchange_ts)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.trades_raw (
			symbol String,
			ts DateTime('UTC'),
			price Float64,
			qty Float64,
			source String
		) ENGINE=MergeTree ORDER BY (symbol, ts)`, database),
	}
	for _, table := range candleTables {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			symbol String,
			candle_time DateTime('UTC'),
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64,
			volume_quote Float64,
			trade_count UInt64,
			updated_at DateTime64(3, 'UTC') DEFAULT now64(3)
		) ENGINE=ReplacingMergeTree(updated_at) ORDER BY (symbol, candle_time)`, database, table))
	}
	return stmts
}
