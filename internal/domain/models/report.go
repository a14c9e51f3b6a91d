package models

import "sort"

// Drop and flag reasons recorded by the cleaner.
const (
	ReasonBadDate         = "bad_date"
	ReasonBadPrice        = "bad_price"
	ReasonNegativePrice   = "negative_price"
	ReasonMissingPrice    = "missing_price"
	ReasonDuplicate       = "duplicate"
	ReasonPriceOrder      = "price_order"
	ReasonOutlier         = "outlier"
	ReasonMissingKeyField = "missing_key_field"
)

// CleaningReport summarises what the cleaner did to a batch.
type CleaningReport struct {
	Source  string         `json:"source,omitempty"`
	Input   int            `json:"input"`
	Output  int            `json:"output"`
	Series  int            `json:"series"`
	Dropped map[string]int `json:"dropped"`
	Flagged map[string]int `json:"flagged"`
	// Filled counts price values filled forward from an earlier record.
	Filled int `json:"filled"`
	// Samples keeps the first MaxReportSamples row problems for inspection.
	Samples []ParseError `json:"samples,omitempty"`
}

// MaxReportSamples bounds CleaningReport.Samples.
const MaxReportSamples = 20

func NewCleaningReport(source string) *CleaningReport {
	return &CleaningReport{Source: source, Dropped: map[string]int{}, Flagged: map[string]int{}}
}

func (r *CleaningReport) Drop(reason string)        { r.Dropped[reason]++ }
func (r *CleaningReport) Flag(reason string, n int) { r.Flagged[reason] += n }

// Sample records a row problem while fewer than MaxReportSamples are kept.
func (r *CleaningReport) Sample(e ParseError) {
	if len(r.Samples) < MaxReportSamples {
		r.Samples = append(r.Samples, e)
	}
}
func (r *CleaningReport) DroppedTotal() (total int) {
	for _, n := range r.Dropped {
		total += n
	}
	return total
}

// Reasons returns the drop reasons in stable order.
func (r *CleaningReport) Reasons() []string {
	out := make([]string, 0, len(r.Dropped))
	for k := range r.Dropped {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
