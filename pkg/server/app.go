package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MarketPull/internal/usecase"
	pkgch "MarketPull/pkg/clickhouse"
	"MarketPull/pkg/config"
	xhttp "MarketPull/pkg/http"
	pkgkafka "MarketPull/pkg/kafka"
	applogger "MarketPull/pkg/logger"
	"MarketPull/pkg/queue"
)

// App encapsulates the entire application lifecycle: the ingestion loop, the
// aggregation pipeline, the live trade collector, the Kafka consumer, the
// job queue and the HTTP API.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	collector   *usecase.TradeCollector
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	ingestion   *usecase.IngestionService
	pipeline    *usecase.AggregationPipeline
	queue       *queue.RedisQueue
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	TradeProc   *usecase.TradeProcessor
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.TradeCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	ingestion *usecase.IngestionService,
	pipeline *usecase.AggregationPipeline,
	q *queue.RedisQueue,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
		ingestion: ingestion,
		pipeline:  pipeline,
		queue:     q,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.l
	if l == nil {
		l, _ = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start ingestion loop
	a.ingestion.Start(ctx)
	l.Info("ingestion started",
		applogger.Strings("symbols", a.cfg.Binance.Symbols),
		applogger.Duration("interval", a.cfg.Ingestion.FetchInterval),
	)

	// Start aggregation pipeline
	a.pipeline.Start(ctx)
	l.Info("aggregation pipeline started",
		applogger.Duration("interval", a.cfg.Aggregation.Interval),
		applogger.Duration("initial_delay", a.cfg.Aggregation.InitialDelay),
	)

	// Start live trade collector when the stream is enabled
	if a.collector != nil && a.cfg.Binance.StreamEnabled {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("trade collector started", applogger.Strings("symbols", a.cfg.Binance.Symbols))
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start job queue if configured
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			l.Error("queue start error", applogger.Error(err))
		}
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx, l)
}

// shutdown stops services in reverse dependency order: intake first, storage
// last, so in-flight writes can drain.
func (a *App) shutdown(ctx context.Context, l *applogger.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop HTTP server first so no new work arrives
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop loops
	a.ingestion.Stop()
	a.pipeline.Stop()

	// Stop collector (pipeline + stream)
	if a.collector != nil {
		if err := a.collector.Shutdown(shutdownCtx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	// Stop queue workers
	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			l.Warn("queue stop error", applogger.Error(err))
		}
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Flush aggregated error logs while the producer is still open
	if a.l != nil {
		a.l.RemoveCollector()
	}

	// Close trade processor resources (publisher/storage)
	if a.TradeProc != nil {
		a.TradeProc.Close()
	}

	// Close infrastructure clients last
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
