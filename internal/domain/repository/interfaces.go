package repository

import (
	"context"
	"time"

	"CropCast/internal/domain/models"
)

// PriceStore persists cleaned price records and serves them back as series.
type PriceStore interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, records []models.CanonicalRecord) error
	Keys(ctx context.Context) ([]models.SeriesKey, error)
	Series(ctx context.Context, key models.SeriesKey, from, to time.Time) (models.TimeSeries, error)
	Health(ctx context.Context) error
	Close() error
}

// Publisher ships cleaned records and cleaning reports to a message bus.
type Publisher interface {
	PublishRecords(ctx context.Context, records []models.CanonicalRecord) error
	PublishReport(ctx context.Context, report *models.CleaningReport) error
	Close() error
}

// RawSource yields raw records from an upstream provider.
type RawSource interface {
	Fetch(ctx context.Context) ([]models.RawRecord, error)
}

// Metrics records pipeline and serving observations.
type Metrics interface {
	RecordRows(stage string, n int)
	RecordDropped(reason string, n int)
	RecordModels(loaded, skipped int)
	RecordTraining(result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
