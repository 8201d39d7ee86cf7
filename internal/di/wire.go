//go:build wireinject
// +build wireinject

package di

import (
	"PairSpread/pkg/config"
	"PairSpread/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Metrics
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideClickHouseClient,
		ProvideSeriesCache,

		// Repositories
		ProvideTradeLedger,
		ProvideTradeWriter,
		ProvidePriceSource,
		ProvideSignalPublisher,

		// Use cases
		ProvidePairReportUseCase,
		ProvideTradeIngestHandler,

		// Transport
		ProvideRateLimiter,
		ProvideReportHandler,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
