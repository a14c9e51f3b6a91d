package models

// Requests for forecast HTTP endpoints.

type PredictRequest struct {
	Days      string `query:"days" json:"days"`
	Commodity string `query:"commodity" json:"commodity" validate:"required"`
	State     string `query:"state" json:"state" validate:"required"`
	District  string `query:"district" json:"district" validate:"required"`
	Market    string `query:"market" json:"market" validate:"required"`
}

func (r *PredictRequest) Key() SeriesKey {
	return SeriesKey{Commodity: r.Commodity, State: r.State, District: r.District, Market: r.Market}
}

type DimensionRequest struct {
	Axis string `param:"axis" validate:"required,oneof=commodity state district market"`
}
