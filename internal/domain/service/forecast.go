package service

import (
	"context"
	"time"

	"CropCast/internal/domain/models"
)

// Predictor is a trained model bound to one series. Implementations must be safe
// for concurrent use and must not mutate themselves while predicting.
type Predictor interface {
	Key() models.SeriesKey
	// Cutoff is the latest date seen during fitting.
	Cutoff() time.Time
	// Timeline returns the dates the model was fitted on, ascending.
	Timeline() []time.Time
	// PredictAt returns one point per requested date, in the given order.
	PredictAt(dates []time.Time) ([]models.ForecastPoint, error)
}

// Fitter trains a Predictor from a clean series.
type Fitter interface {
	Fit(ctx context.Context, series models.TimeSeries) (Predictor, error)
}

// ModelRegistry is the read side of the loaded model set.
type ModelRegistry interface {
	Get(key models.SeriesKey) (Predictor, error)
	AllKeys() []models.SeriesKey
	ListDimensionValues(axis models.Axis) []string
	// Generation changes every time the model set is rebuilt.
	Generation() uint64
	Len() int
}
