package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileRunsOnDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load without file: %v", err)
	}
	if c.Environment != "development" {
		t.Fatalf("environment = %q", c.Environment)
	}
	if c.Backend.Type != "clickhouse" {
		t.Fatalf("backend = %q", c.Backend.Type)
	}
	if c.ClickHouse.Host != "localhost" || c.ClickHouse.Port != 9000 {
		t.Fatalf("clickhouse = %s:%d", c.ClickHouse.Host, c.ClickHouse.Port)
	}
	if len(c.Binance.Symbols) == 0 {
		t.Fatal("no default symbols")
	}
	if c.Ingestion.FetchInterval != 60*time.Second {
		t.Fatalf("fetch interval = %v", c.Ingestion.FetchInterval)
	}
}

func TestLoadParsesYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("environment: production\nclickhouse:\n  host: ch.internal\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Environment != "production" {
		t.Fatalf("environment = %q", c.Environment)
	}
	if c.ClickHouse.Host != "ch.internal" {
		t.Fatalf("host = %q", c.ClickHouse.Host)
	}
	// untouched fields still pick up defaults
	if c.ClickHouse.Port != 9000 || c.Backend.Type != "clickhouse" {
		t.Fatalf("defaults not applied: %+v", c.ClickHouse)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("backend:\n  type: rabbitmq\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("unknown backend accepted")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CLICKHOUSE_HOST", "ch.prod")
	t.Setenv("SYMBOLS", "BTCUSDT,SOLUSDT")
	t.Setenv("FETCH_INTERVAL_SECONDS", "30")

	c, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Environment != "production" || c.ClickHouse.Host != "ch.prod" {
		t.Fatalf("env overrides not applied: %s %s", c.Environment, c.ClickHouse.Host)
	}
	if len(c.Binance.Symbols) != 2 || c.Binance.Symbols[1] != "SOLUSDT" {
		t.Fatalf("symbols = %v", c.Binance.Symbols)
	}
	if c.Ingestion.FetchInterval != 30*time.Second {
		t.Fatalf("fetch interval = %v", c.Ingestion.FetchInterval)
	}
}
