//go:build wireinject
// +build wireinject

package di

import (
	"VolMonitor/pkg/config"
	"VolMonitor/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Domain configuration
		ProvideGrid,
		ProvideAnalyticsParams,

		// Storage and caches
		ProvideMarketStore,
		ProvideLoader,
		ProvideLocalCache,
		ProvideRedisCache,
		ProvideTableCache,

		// Messaging
		ProvideKafkaProducer,
		ProvideTablePublisher,
		ProvideKafkaConsumer,

		// Use cases
		ProvideTableBuilder,
		ProvideMarketUpdatesHandler,

		// Transport
		ProvideRateLimiter,
		ProvideTableHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
