//go:build wireinject
// +build wireinject

package di

import (
	"MarketPull/pkg/config"
	"MarketPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideTradeStorage,
		ProvideTradePublisher,
		ProvideSnapshotStore,
		ProvideCandleStore,
		ProvideTickSource,
		ProvideMarketStream,

		// Use cases
		ProvideTradeProcessor,
		ProvideTradeCollector,
		ProvideKafkaTradesHandler,
		ProvideAggregationPipeline,
		ProvideIngestionService,
		ProvideCandlesUseCase,

		// HTTP and queue
		ProvideQueue,
		ProvideResponseCache,
		ProvideMarketHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
