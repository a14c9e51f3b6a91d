package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Canonical column names produced by the schema normalizer.
const (
	ColDate       = "Date"
	ColState      = "State"
	ColDistrict   = "District"
	ColMarket     = "Market"
	ColCommodity  = "Commodity"
	ColVariety    = "Variety"
	ColMinPrice   = "Min_Price"
	ColMaxPrice   = "Max_Price"
	ColModalPrice = "Modal_Price"
)

// RequiredColumns must be present after renaming or the source is rejected.
var RequiredColumns = []string{ColDate, ColModalPrice, ColCommodity, ColState, ColDistrict, ColMarket}

// CanonicalColumns is the full canonical field set in output order.
var CanonicalColumns = []string{
	ColDate, ColState, ColDistrict, ColMarket, ColCommodity, ColVariety,
	ColMinPrice, ColMaxPrice, ColModalPrice,
}

// RawRecord is one untrusted row keyed by its source column name.
type RawRecord map[string]string

// CanonicalRow is a record in canonical shape whose values are still strings.
type CanonicalRow struct {
	Date       string `json:"date"`
	State      string `json:"state"`
	District   string `json:"district"`
	Market     string `json:"market"`
	Commodity  string `json:"commodity"`
	Variety    string `json:"variety"`
	MinPrice   string `json:"min_price"`
	MaxPrice   string `json:"max_price"`
	ModalPrice string `json:"modal_price"`
}

// Key returns the row's series identity as written in the source.
func (r CanonicalRow) Key() SeriesKey {
	return SeriesKey{Commodity: r.Commodity, State: r.State, District: r.District, Market: r.Market}
}

// CanonicalRecord is a typed, validated price observation.
type CanonicalRecord struct {
	Date       time.Time       `json:"date"`
	State      string          `json:"state"`
	District   string          `json:"district"`
	Market     string          `json:"market"`
	Commodity  string          `json:"commodity"`
	Variety    string          `json:"variety"`
	MinPrice   decimal.Decimal `json:"min_price"`
	MaxPrice   decimal.Decimal `json:"max_price"`
	ModalPrice decimal.Decimal `json:"modal_price"`
	// Flags lists data-quality findings that did not drop the record.
	Flags []string `json:"flags,omitempty"`
}

func (r CanonicalRecord) Key() SeriesKey {
	return SeriesKey{Commodity: r.Commodity, State: r.State, District: r.District, Market: r.Market}
}

// PriceOrderOK reports whether min <= modal <= max holds.
func (r CanonicalRecord) PriceOrderOK() bool {
	return r.MinPrice.LessThanOrEqual(r.ModalPrice) && r.ModalPrice.LessThanOrEqual(r.MaxPrice)
}

// RecordBatch is the bus payload of one series from one cleaning run, in date order.
type RecordBatch struct {
	Key     SeriesKey         `json:"key"`
	Records []CanonicalRecord `json:"records"`
}

// SeriesPoint is one (date, modal price) observation.
type SeriesPoint struct {
	Date  time.Time
	Value float64
}

// TimeSeries is sorted ascending by date with no duplicate dates.
type TimeSeries struct {
	Key    SeriesKey
	Points []SeriesPoint
}

// Cutoff returns the latest date in the series.
func (s TimeSeries) Cutoff() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Date
}

// SeriesFromRecords groups clean records per key into time series.
// Records must already be sorted by date within each key and free of duplicate dates.
func SeriesFromRecords(records []CanonicalRecord) []TimeSeries {
	idx := make(map[SeriesKey]int)
	var out []TimeSeries
	for _, r := range records {
		k := r.Key()
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, TimeSeries{Key: k})
		}
		out[i].Points = append(out[i].Points, SeriesPoint{Date: r.Date, Value: r.ModalPrice.InexactFloat64()})
	}
	return out
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
