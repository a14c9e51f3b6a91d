package models

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Axis names one component of a SeriesKey.
type Axis string

const (
	AxisCommodity Axis = "commodity"
	AxisState     Axis = "state"
	AxisDistrict  Axis = "district"
	AxisMarket    Axis = "market"
)

// ParseAxis maps a raw axis name onto a known Axis.
func ParseAxis(s string) (Axis, error) {
	switch a := Axis(strings.ToLower(strings.TrimSpace(s))); a {
	case AxisCommodity, AxisState, AxisDistrict, AxisMarket:
		return a, nil
	default:
		return "", fmt.Errorf("unknown axis %q", s)
	}
}

// SeriesKey identifies one trained model: (commodity, state, district, market).
// Components are compared exactly, after normalisation.
type SeriesKey struct {
	Commodity string `json:"commodity"`
	State     string `json:"state"`
	District  string `json:"district"`
	Market    string `json:"market"`
}

// Component returns the key's value along axis.
func (k SeriesKey) Component(a Axis) string {
	switch a {
	case AxisCommodity:
		return k.Commodity
	case AxisState:
		return k.State
	case AxisDistrict:
		return k.District
	case AxisMarket:
		return k.Market
	}
	return ""
}

// Missing lists the query parameter names of empty components.
func (k SeriesKey) Missing() []string {
	var out []string
	if k.Commodity == "" {
		out = append(out, string(AxisCommodity))
	}
	if k.State == "" {
		out = append(out, string(AxisState))
	}
	if k.District == "" {
		out = append(out, string(AxisDistrict))
	}
	if k.Market == "" {
		out = append(out, string(AxisMarket))
	}
	return out
}

// Less orders keys component by component.
func (k SeriesKey) Less(o SeriesKey) bool {
	if k.Commodity != o.Commodity {
		return k.Commodity < o.Commodity
	}
	if k.State != o.State {
		return k.State < o.State
	}
	if k.District != o.District {
		return k.District < o.District
	}
	return k.Market < o.Market
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("(%s, %s, %s, %s)", k.Commodity, k.State, k.District, k.Market)
}

// Normalize collapses whitespace and title-cases every component.
func (k SeriesKey) Normalize() SeriesKey {
	return SeriesKey{
		Commodity: NormalizeName(k.Commodity),
		State:     NormalizeName(k.State),
		District:  NormalizeName(k.District),
		Market:    NormalizeName(k.Market),
	}
}

// NormalizeName trims, collapses internal whitespace and title-cases s.
func NormalizeName(s string) string {
	return TitleCase(strings.Join(strings.Fields(s), " "))
}

// TitleCase upper-cases the first letter of every word and lower-cases the rest.
func TitleCase(s string) string {
	// cases.Caser keeps state, so one per call.
	return cases.Title(language.Und).String(s)
}
