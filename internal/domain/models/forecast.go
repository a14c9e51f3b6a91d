package models

import "time"

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// ForecastPoint is one predicted day; Lower <= Point <= Upper.
type ForecastPoint struct {
	Date  time.Time
	Point float64
	Lower float64
	Upper float64
}

// ForecastPointDTO is the JSON shape served by /predict.
type ForecastPointDTO struct {
	Date           string  `json:"date"`
	PredictedPrice float64 `json:"predicted_price"`
	LowerBound     float64 `json:"lower_bound"`
	UpperBound     float64 `json:"upper_bound"`
}

// ToDTO converts forecast points to their wire shape.
func ToDTO(points []ForecastPoint) []ForecastPointDTO {
	out := make([]ForecastPointDTO, 0, len(points))
	for _, p := range points {
		out = append(out, ForecastPointDTO{
			Date:           p.Date.Format(DateLayout),
			PredictedPrice: p.Point,
			LowerBound:     p.Lower,
			UpperBound:     p.Upper,
		})
	}
	return out
}

// Options lists the distinct values of each key axis, sorted ascending.
type Options struct {
	Commodities []string `json:"commodities"`
	States      []string `json:"states"`
	Districts   []string `json:"districts"`
	Markets     []string `json:"markets"`
}
