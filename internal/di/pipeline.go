package di

import (
	"CropCast/internal/domain/repository"
	"CropCast/internal/usecase"
	"CropCast/pkg/config"
	applogger "CropCast/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline bundles the offline components used by pricectl.
type Pipeline struct {
	Config     *config.Config
	Logger     *applogger.Logger
	Prometheus *prometheus.Registry
	Metrics    repository.Metrics
	Preparer   *usecase.Preparer
	Trainer    *usecase.Trainer
	Sink       *usecase.RecordProcessor
	// Store is nil when ClickHouse is not configured.
	Store repository.PriceStore
}

func ProvidePipeline(
	cfg *config.Config,
	logger *applogger.Logger,
	reg *prometheus.Registry,
	m repository.Metrics,
	prep *usecase.Preparer,
	trainer *usecase.Trainer,
	sink *usecase.RecordProcessor,
	store repository.PriceStore,
) *Pipeline {
	return &Pipeline{
		Config:     cfg,
		Logger:     logger,
		Prometheus: reg,
		Metrics:    m,
		Preparer:   prep,
		Trainer:    trainer,
		Sink:       sink,
		Store:      store,
	}
}
