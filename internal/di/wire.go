//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"CropCast/pkg/config"
	"CropCast/pkg/server"

	"github.com/google/wire"
)

var observabilitySet = wire.NewSet(
	ProvideLogger,
	ProvidePrometheus,
	ProvideMetrics,
)

var serveSet = wire.NewSet(
	observabilitySet,
	ProvideForecastMetrics,
	ProvideNaming,
	ProvideRegistry,
	ProvideForecaster,
	ProvideForecastCache,
	ProvideQueryService,
	ProvideLimiter,
	ProvideForecastHandler,
	ProvideHTTPServer,
	ProvideWatcher,
	ProvideApp,
)

var pipelineSet = wire.NewSet(
	observabilitySet,
	ProvideNaming,
	ProvideClickHouseClient,
	ProvidePriceStore,
	ProvideKafkaProducer,
	ProvidePublisher,
	ProvideRecordProcessor,
	ProvideNormalizer,
	ProvideCleaner,
	ProvidePreparer,
	ProvideFitter,
	ProvideTrainer,
	ProvidePipeline,
)

// InitializeApp wires up the forecast API server.
func InitializeApp(ctx context.Context, cfg *config.Config) (*server.App, func(), error) {
	wire.Build(serveSet)
	return nil, nil, nil
}

// InitializePipeline wires up the offline collect/clean/train/ingest components.
func InitializePipeline(ctx context.Context, cfg *config.Config) (*Pipeline, func(), error) {
	wire.Build(pipelineSet)
	return nil, nil, nil
}
