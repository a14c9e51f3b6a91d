package forecast

import (
	"fmt"
	"math"
	"time"

	"CropCast/internal/domain/models"
	"CropCast/internal/domain/service"

	"github.com/shopspring/decimal"
)

// DefaultMaxHorizon bounds the cost of a single forecast.
const DefaultMaxHorizon = 3650

// Forecaster turns a Predictor into forward-looking daily forecasts.
type Forecaster struct {
	maxHorizon int
	places     int32
}

func NewForecaster(maxHorizon int) *Forecaster {
	if maxHorizon <= 0 {
		maxHorizon = DefaultMaxHorizon
	}
	return &Forecaster{maxHorizon: maxHorizon, places: 2}
}

func (f *Forecaster) MaxHorizon() int { return f.maxHorizon }

// Forecast extends the model's timeline by days calendar days, predicts the whole
// timeline and keeps only the dates after the training cutoff.
func (f *Forecaster) Forecast(p service.Predictor, days int) ([]models.ForecastPoint, error) {
	if days <= 0 {
		return nil, &models.InvalidHorizonError{Days: days}
	}
	if days > f.maxHorizon {
		return nil, &models.InvalidHorizonError{Days: days, Max: f.maxHorizon}
	}

	cutoff := models.Day(p.Cutoff())
	timeline := p.Timeline()
	for i := 1; i <= days; i++ {
		timeline = append(timeline, cutoff.AddDate(0, 0, i))
	}

	preds, err := p.PredictAt(timeline)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", p.Key(), err)
	}

	out := make([]models.ForecastPoint, 0, days)
	var last time.Time
	for _, pt := range preds {
		d := models.Day(pt.Date)
		if !d.After(cutoff) || (!last.IsZero() && !d.After(last)) {
			continue
		}
		if !finite(pt.Point, pt.Lower, pt.Upper) {
			return nil, fmt.Errorf("predict %s: non-finite value on %s", p.Key(), d.Format(models.DateLayout))
		}
		last = d
		out = append(out, models.ForecastPoint{
			Date:  d,
			Point: f.round(pt.Point),
			Lower: f.round(pt.Lower),
			Upper: f.round(pt.Upper),
		})
	}
	return out, nil
}

func (f *Forecaster) round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(f.places).InexactFloat64()
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
