//go:build wireinject
// +build wireinject

package di

import (
	"FinCast/pkg/config"
	"FinCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Logging and metrics
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,

		// Repositories
		ProvideCandleStore,
		ProvidePredictionPublisher,
		ProvideSnapshotStore,
		ProvidePredictionCache,

		// Core services
		ProvideFeatureService,
		ProvideEnsembleEngine,
		ProvideDriftDetector,
		ProvideMacrofeed,

		// Use cases
		ProvideForecaster,
		ProvideBarsHandler,
		ProvideTickStream,
		ProvideTickCollector,
		ProvideJobQueue,
		ProvideScheduler,

		// HTTP and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
