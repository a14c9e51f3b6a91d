package forecast

import (
	"fmt"
	"math"
	"time"

	"CropCast/internal/domain/models"
	"CropCast/internal/domain/service"

	"gonum.org/v1/gonum/stat/distuv"
)

// Seasonality modes.
const (
	ModeAdditive       = "additive"
	ModeMultiplicative = "multiplicative"
)

// ArtifactVersion is bumped whenever the serialized model layout changes.
const ArtifactVersion = 1

// Seasonality is one Fourier block with Order sin/cos pairs of the given period in days.
type Seasonality struct {
	Name   string  `json:"name"`
	Period float64 `json:"period"`
	Order  int     `json:"order"`
}

// Model is a fitted piecewise-linear trend plus Fourier seasonality.
// It is immutable after Fit or Decode and safe for concurrent use.
type Model struct {
	Version       int              `json:"version"`
	SeriesKey     models.SeriesKey `json:"key"`
	Mode          string           `json:"mode"`
	Origin        time.Time        `json:"origin"`
	Span          float64          `json:"span"`
	YScale        float64          `json:"y_scale"`
	Changepoints  []float64        `json:"changepoints"`
	Seasonalities []Seasonality    `json:"seasonalities"`
	Coef          []float64        `json:"coef"`
	Sigma         float64          `json:"sigma"`
	IntervalWidth float64          `json:"interval_width"`
	History       []time.Time      `json:"history"`
	TrainedAt     time.Time        `json:"trained_at"`
}

var _ service.Predictor = (*Model)(nil)

func (m *Model) Key() models.SeriesKey { return m.SeriesKey }

func (m *Model) Cutoff() time.Time {
	if len(m.History) == 0 {
		return time.Time{}
	}
	return m.History[len(m.History)-1]
}

// Timeline returns a copy of the fitted dates.
func (m *Model) Timeline() []time.Time {
	return append([]time.Time(nil), m.History...)
}

// WithKey returns a shallow copy bound to key.
func (m *Model) WithKey(key models.SeriesKey) *Model {
	c := *m
	c.SeriesKey = key
	return &c
}

// Validate checks that a decoded model is usable.
func (m *Model) Validate() error {
	switch {
	case m.Version != ArtifactVersion:
		return fmt.Errorf("unsupported artifact version %d", m.Version)
	case m.Mode != ModeAdditive && m.Mode != ModeMultiplicative:
		return fmt.Errorf("unknown mode %q", m.Mode)
	case len(m.History) == 0:
		return fmt.Errorf("empty history")
	case m.Span <= 0 || m.YScale <= 0:
		return fmt.Errorf("non-positive scale")
	case len(m.Coef) != m.width():
		return fmt.Errorf("have %d coefficients, want %d", len(m.Coef), m.width())
	case m.IntervalWidth <= 0 || m.IntervalWidth >= 1:
		return fmt.Errorf("interval width %v out of range", m.IntervalWidth)
	}
	return nil
}

// width is the number of design-matrix columns.
func (m *Model) width() int {
	w := 2 + len(m.Changepoints)
	for _, s := range m.Seasonalities {
		w += 2 * s.Order
	}
	return w
}

// features fills row with the design-matrix row of date d.
func (m *Model) features(d time.Time, row []float64) {
	days := d.Sub(m.Origin).Hours() / 24
	t := days / m.Span
	row[0] = 1
	row[1] = t
	i := 2
	for _, c := range m.Changepoints {
		row[i] = math.Max(0, t-c)
		i++
	}
	for _, s := range m.Seasonalities {
		for k := 1; k <= s.Order; k++ {
			x := 2 * math.Pi * float64(k) * days / s.Period
			row[i] = math.Sin(x)
			row[i+1] = math.Cos(x)
			i += 2
		}
	}
}

func (m *Model) predictRaw(row []float64) float64 {
	var y float64
	for i, c := range m.Coef {
		y += c * row[i]
	}
	return y
}

// PredictAt evaluates the model on each date. Dates after the cutoff get wider
// intervals the further out they are.
func (m *Model) PredictAt(dates []time.Time) ([]models.ForecastPoint, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(0.5 + m.IntervalWidth/2)
	cutoff := m.Cutoff()
	n := float64(len(m.History))

	row := make([]float64, m.width())
	out := make([]models.ForecastPoint, 0, len(dates))
	for _, d := range dates {
		m.features(d, row)
		yhat := m.predictRaw(row)

		spread := z * m.Sigma
		if d.After(cutoff) {
			steps := d.Sub(cutoff).Hours() / 24
			spread *= math.Sqrt(1 + steps/n)
		}

		var p models.ForecastPoint
		p.Date = d
		if m.Mode == ModeMultiplicative {
			p.Point = math.Exp(yhat)
			p.Lower = math.Exp(yhat - spread)
			p.Upper = math.Exp(yhat + spread)
		} else {
			p.Point = yhat * m.YScale
			p.Lower = (yhat - spread) * m.YScale
			p.Upper = (yhat + spread) * m.YScale
		}
		// prices are never negative
		p.Lower = math.Max(0, p.Lower)
		p.Point = math.Max(0, p.Point)
		p.Upper = math.Max(0, p.Upper)
		out = append(out, p)
	}
	return out, nil
}
