package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketPull/internal/domain/repository"
	"MarketPull/internal/handler/api"
	mid "MarketPull/internal/middleware"
	internalrepo "MarketPull/internal/repository"
	"MarketPull/internal/service/binance"
	icache "MarketPull/internal/service/cache"
	"MarketPull/internal/usecase"
	cachepkg "MarketPull/pkg/cache"
	pkgch "MarketPull/pkg/clickhouse"
	"MarketPull/pkg/config"
	pkgkafka "MarketPull/pkg/kafka"
	applogger "MarketPull/pkg/logger"
	"MarketPull/pkg/metrics"
	"MarketPull/pkg/queue"
	"MarketPull/pkg/server"

	"github.com/segmentio/kafka-go"
)

// ProvideLogger creates the shared application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client and applies the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are
// configured (pure-ClickHouse deployments).
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideTradeStorage creates the ClickHouse trade storage repository.
func ProvideTradeStorage(chClient *pkgch.Client, cfg *config.Config) repository.TradeStorage {
	return internalrepo.NewClickHouseTradeStorage(chClient.DB(), cfg.ClickHouse.Database+".trades_raw", "binance")
}

// ProvideTradePublisher creates the Kafka publisher repository, or nil when
// Kafka is not configured.
func ProvideTradePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic, cfg.Kafka.PayloadTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, or nil
// when no brokers are configured.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaTradesHandler registers the handler for the trades topic.
func ProvideKafkaTradesHandler(store repository.TradeStorage, metrics repository.Metrics, cfg *config.Config) *usecase.KafkaTradesHandler {
	return usecase.NewKafkaTradesHandler(cfg.Kafka.Topic, store, metrics)
}

// ProvideTickSource creates the Binance REST tick source.
func ProvideTickSource(cfg *config.Config, l *applogger.Logger) repository.TickSource {
	return binance.NewClient(
		cfg.Binance.RESTBaseURL,
		cfg.Binance.HTTPTimeout,
		cfg.Binance.OrderBookDepth,
		l,
	)
}

// ProvideMarketStream creates the Binance trade WebSocket stream.
func ProvideMarketStream(cfg *config.Config) repository.MarketStream {
	return binance.NewStream(
		cfg.Binance.WSBaseURL,
		cfg.Binance.Symbols,
		cfg.Binance.ReconnectDelay,
		cfg.Binance.PingInterval,
	)
}

// ProvideTradeProcessor creates the trade processor use case.
func ProvideTradeProcessor(
	pub repository.Publisher,
	store repository.TradeStorage,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.TradeProcessor {
	return usecase.NewTradeProcessor(pub, store, metrics, cfg.Backend.Type)
}

// ProvideTradeCollector creates the trade collector use case.
func ProvideTradeCollector(
	stream repository.MarketStream,
	processor *usecase.TradeProcessor,
	metrics repository.Metrics,
) *usecase.TradeCollector {
	// Build middleware pipeline between WebSocket and the backend
	pipe := mid.NewRealtimePipeline(processor, metrics,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewTradeCollector(stream, processor, metrics, pipe)
}

// ProvideSnapshotStore creates the ClickHouse snapshot store.
func ProvideSnapshotStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.SnapshotStore {
	store := internalrepo.NewCHSnapshotStore(chClient, cfg.ClickHouse.Database)
	store.SetLogger(l)
	return store
}

// ProvideCandleStore creates the ClickHouse candle store.
func ProvideCandleStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.CandleStore {
	store := internalrepo.NewCHCandleStore(chClient, cfg.ClickHouse.Database)
	store.SetLogger(l)
	return store
}

// ProvideAggregationPipeline assembles the candle builder and the roll-up
// chain.
func ProvideAggregationPipeline(
	snapshots repository.SnapshotStore,
	candles repository.CandleStore,
	metrics repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.AggregationPipeline {
	builder := usecase.NewCandleBuilder(snapshots, candles, cfg.Aggregation.Lookback, metrics, l)
	stages := usecase.DefaultRollupStages()
	reducers := make([]*usecase.RollupReducer, 0, len(stages))
	for _, stage := range stages {
		reducers = append(reducers, usecase.NewRollupReducer(candles, stage, metrics, l))
	}
	return usecase.NewAggregationPipeline(builder, reducers, cfg.Aggregation.Interval, cfg.Aggregation.InitialDelay, metrics, l)
}

// ProvideIngestionService wires the fetch loop to its sinks: the ClickHouse
// snapshot store always, the Kafka payload topic when a publisher exists.
func ProvideIngestionService(
	source repository.TickSource,
	snapshots repository.SnapshotStore,
	pub repository.Publisher,
	metrics repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.IngestionService {
	sinks := make([]usecase.PayloadSink, 0, 2)
	if chSink, ok := snapshots.(usecase.PayloadSink); ok {
		sinks = append(sinks, chSink)
	}
	if pub != nil {
		sinks = append(sinks, internalrepo.NewPayloadPublisherSink(pub))
	}

	var latest icache.BytesCache
	if cfg.Redis.Enabled {
		latest = icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	} else {
		latest = icache.NewTTLCache()
	}

	return usecase.NewIngestionService(
		source,
		sinks,
		cfg.Binance.Symbols,
		cfg.Ingestion.FetchInterval,
		cfg.Binance.OrderBookDepth,
		latest,
		cfg.Ingestion.LatestTTL,
		metrics,
		l,
	)
}

// ProvideCandlesUseCase creates the candle query use case.
func ProvideCandlesUseCase(store repository.CandleStore) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store)
}

// ProvideQueue creates the Redis-backed job queue carrying manual
// aggregation triggers, or nil when Redis is disabled.
func ProvideQueue(cfg *config.Config, pipeline *usecase.AggregationPipeline, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Redis.Enabled {
		return nil
	}
	client := icache.NewRedisClient(icache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	q := queue.NewRedisQueue(l, &queue.QueueConfig{Workers: 1, RetryLimit: 1, RetryDelay: 30 * time.Second}, client, queue.ModeProducerConsumer)
	q.RegisterJob(usecase.NewAggregationJob(pipeline))
	return q
}

// ProvideResponseCache builds the HTTP response cache: Redis-layered when
// Redis is enabled, in-process memory otherwise.
func ProvideResponseCache(cfg *config.Config) cachepkg.Service {
	if cfg.Redis.Enabled {
		host, port := splitHostPort(cfg.Redis.Addr)
		rc, err := cachepkg.NewRedisCache(
			cachepkg.WithRedisHost(host),
			cachepkg.WithRedisPort(port),
			cachepkg.WithRedisPassword(cfg.Redis.Password),
			cachepkg.WithRedisDB(cfg.Redis.DB),
			cachepkg.WithRedisPool(10, 2, 4*time.Second),
			cachepkg.WithRedisPrefix("marketpull:resp"),
		)
		if err == nil {
			return cachepkg.NewLayeredCache(rc, cachepkg.WithLayeredMemorySize(512))
		}
	}
	return cachepkg.NewMemoryCache(cachepkg.WithMemoryCleanup(time.Minute))
}

// ProvideMarketHandler creates the market HTTP handler.
func ProvideMarketHandler(
	l *applogger.Logger,
	ingestion *usecase.IngestionService,
	candles *usecase.CandlesUseCase,
	trades repository.TradeStorage,
	snapshots repository.SnapshotStore,
	q *queue.RedisQueue,
	respCache cachepkg.Service,
) *api.MarketHandler {
	var queueSvc queue.QueueService
	if q != nil {
		queueSvc = q
	}
	h := api.NewMarketHandler(l, ingestion, candles, trades, snapshots, queueSvc)
	h.SetCache(respCache)
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.TradeCollector,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	kh *usecase.KafkaTradesHandler,
	chClient *pkgch.Client,
	ingestion *usecase.IngestionService,
	pipeline *usecase.AggregationPipeline,
	q *queue.RedisQueue,
	handler *api.MarketHandler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NewHookChain(consumerObservabilityHook(l)))
	}
	if producer != nil {
		// Ship deduplicated error logs to their own topic alongside the data
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.Topic + ".logs",
			Publisher:      kafkaLogPublisher{producer},
		})
	}
	app := server.New(cfg, l, collector, consumer, kh, chClient, ingestion, pipeline, q)
	app.SetHTTPHandler(handler)
	if collector != nil {
		app.TradeProc = collector.Processor()
	}
	return app
}

// consumerObservabilityHook stamps each trade message with its start time and
// trace id, then reports failures and slow handling through the app logger.
func consumerObservabilityHook(l *applogger.Logger) pkgkafka.ConsumerHook {
	const slowHandle = time.Second
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
		After: func(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
			start, ok := ctx.Value(pkgkafka.CtxStartTime).(time.Time)
			if !ok {
				return
			}
			if took := time.Since(start); took > slowHandle {
				l.Warn("slow trade message handling",
					applogger.String("topic", topic),
					applogger.Int("partition", km.Partition),
					applogger.Duration("took", took),
				)
			}
		},
		Err: func(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
			l.Error("trade message handling failed",
				applogger.String("topic", topic),
				applogger.Int("partition", km.Partition),
				applogger.String("error", err.Error()),
			)
		},
	}
}

// kafkaLogPublisher adapts the Kafka producer to the log collector's
// Publisher interface.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func splitHostPort(addr string) (string, int) {
	host, port := "localhost", 6379
	parts := strings.SplitN(addr, ":", 2)
	if parts[0] != "" {
		host = parts[0]
	}
	if len(parts) == 2 {
		if p, err := parsePort(parts[1]); err == nil {
			port = p
		}
	}
	return host, port
}

func parsePort(s string) (int, error) {
	var p int
	_, err := fmt.Sscanf(s, "%d", &p)
	return p, err
}
