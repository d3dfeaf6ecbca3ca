package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"MarketPull/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		Type string `yaml:"type"` // kafka or clickhouse
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		PayloadTopic string   `yaml:"payload_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Binance struct {
		RESTBaseURL    string        `yaml:"rest_base_url"`
		WSBaseURL      string        `yaml:"ws_base_url"`
		Symbols        []string      `yaml:"symbols"`
		HTTPTimeout    time.Duration `yaml:"http_timeout"`
		OrderBookDepth int           `yaml:"orderbook_depth"`
		StreamEnabled  bool          `yaml:"stream_enabled"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"binance"`
	Ingestion struct {
		FetchInterval time.Duration `yaml:"fetch_interval"`
		LatestTTL     time.Duration `yaml:"latest_ttl"`
	} `yaml:"ingestion"`
	Aggregation struct {
		Interval     time.Duration `yaml:"interval"`
		InitialDelay time.Duration `yaml:"initial_delay"`
		Lookback     time.Duration `yaml:"lookback"`
	} `yaml:"aggregation"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file. A missing file is not an
// error: every setting has a default or an env override, so the binary can
// start with zero configuration.
func Load(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
		// run on defaults
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}
	c.applyDefaults()

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Binance.Symbols = strings.Split(v, ",")
	}
	if secs := util.ParseIntDefault(os.Getenv("FETCH_INTERVAL_SECONDS"), 0); secs > 0 {
		c.Ingestion.FetchInterval = time.Duration(secs) * time.Second
	}
	if n := util.ParseIntDefault(os.Getenv("ORDERBOOK_DEPTH"), 0); n > 0 {
		c.Binance.OrderBookDepth = n
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Backend.Type == "" {
		c.Backend.Type = "clickhouse"
	}
	if c.ClickHouse.Host == "" {
		c.ClickHouse.Host = "localhost"
	}
	if c.ClickHouse.Port <= 0 {
		c.ClickHouse.Port = 9000
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "marketdata"
	}
	if c.ClickHouse.User == "" {
		c.ClickHouse.User = "default"
	}
	if c.ClickHouse.MaxExecutionTime <= 0 {
		c.ClickHouse.MaxExecutionTime = 30 * time.Second
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Binance.RESTBaseURL == "" {
		c.Binance.RESTBaseURL = "https://api.binance.com"
	}
	if c.Binance.WSBaseURL == "" {
		c.Binance.WSBaseURL = "wss://stream.binance.com:9443"
	}
	if len(c.Binance.Symbols) == 0 {
		c.Binance.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT"}
	}
	if c.Binance.HTTPTimeout <= 0 {
		c.Binance.HTTPTimeout = 10 * time.Second
	}
	if c.Binance.OrderBookDepth <= 0 {
		c.Binance.OrderBookDepth = 5
	}
	if c.Binance.ReconnectDelay <= 0 {
		c.Binance.ReconnectDelay = 5 * time.Second
	}
	if c.Binance.PingInterval <= 0 {
		c.Binance.PingInterval = 30 * time.Second
	}
	if c.Ingestion.FetchInterval <= 0 {
		c.Ingestion.FetchInterval = 60 * time.Second
	}
	if c.Ingestion.LatestTTL <= 0 {
		c.Ingestion.LatestTTL = 5 * time.Minute
	}
	if c.Aggregation.Interval <= 0 {
		c.Aggregation.Interval = 60 * time.Second
	}
	if c.Aggregation.InitialDelay <= 0 {
		c.Aggregation.InitialDelay = 2 * time.Minute
	}
	if c.Aggregation.Lookback <= 0 {
		c.Aggregation.Lookback = 5 * time.Minute
	}
	if c.Kafka.PayloadTopic == "" && c.Kafka.Topic != "" {
		c.Kafka.PayloadTopic = c.Kafka.Topic + ".payloads"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if len(c.Binance.Symbols) == 0 {
		return fmt.Errorf("binance.symbols cannot be empty")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when backend is kafka")
	}
	return nil
}
