//go:build wireinject
// +build wireinject

package di

import (
	"TradeGate/pkg/config"
	"TradeGate/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Core admission components
		ProvideLimiter,
		ProvideSecurityValidator,
		ProvideOrderValidator,
		ProvideStrikeCache,
		ProvideStrikeTracker,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideAuditStorage,
		ProvideAuditPublisher,

		// Use cases
		ProvideAuditProcessor,
		ProvideKafkaAuditHandler,

		// HTTP surface
		ProvideAdmission,
		ProvideTradeHandler,
		ProvideLimitsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
