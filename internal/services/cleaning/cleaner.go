package cleaning

import (
	"sort"
	"strings"
	"time"

	"CropCast/internal/domain/models"
	"CropCast/internal/domain/repository"
	applogger "CropCast/pkg/logger"
	"CropCast/pkg/util"

	"github.com/shopspring/decimal"
)

// Options selects which optional stages run. Date and price parsing always run.
type Options struct {
	SkipFill       bool
	SkipDedup      bool
	SkipSort       bool
	SkipOutliers   bool
	DropOutliers   bool
	DropPriceOrder bool
	// IQRFactor scales the interquartile range that bounds non-outliers.
	IQRFactor float64
}

// Cleaner turns canonical string rows into typed, validated records.
type Cleaner struct {
	layout  string
	opts    Options
	logger  *applogger.Logger
	metrics repository.Metrics
}

type Option func(*Cleaner)

func WithOptions(o Options) Option {
	return func(c *Cleaner) { c.opts = o }
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Cleaner) { c.logger = l }
}

func WithMetrics(m repository.Metrics) Option {
	return func(c *Cleaner) { c.metrics = m }
}

// New builds a cleaner that parses dates with the Go layout.
func New(layout string, opts ...Option) *Cleaner {
	c := &Cleaner{
		layout: layout,
		opts:   Options{IQRFactor: 1.5},
		logger: applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.opts.IQRFactor <= 0 {
		c.opts.IQRFactor = 1.5
	}
	return c
}

const (
	priceMin = iota
	priceMax
	priceModal
	priceCount
)

var priceColumns = [priceCount]string{models.ColMinPrice, models.ColMaxPrice, models.ColModalPrice}

// pending is a row that survived date parsing.
type pending struct {
	idx     int
	rec     models.CanonicalRecord
	prices  [priceCount]decimal.Decimal
	missing [priceCount]bool
}

// Clean never fails on bad data. Rejected rows are counted in the report.
func (c *Cleaner) Clean(source string, rows []models.CanonicalRow) ([]models.CanonicalRecord, *models.CleaningReport) {
	start := time.Now()
	report := models.NewCleaningReport(source)
	report.Input = len(rows)

	items := c.parse(rows, report)
	if !c.opts.SkipFill {
		c.forwardFill(items, report)
	}
	items = dropMissing(items, report)
	if !c.opts.SkipDedup {
		items = dedup(items, report)
	}
	if !c.opts.SkipSort {
		sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	}

	out := make([]models.CanonicalRecord, 0, len(items))
	for _, it := range items {
		it.rec.MinPrice = it.prices[priceMin]
		it.rec.MaxPrice = it.prices[priceMax]
		it.rec.ModalPrice = it.prices[priceModal]
		if !it.rec.PriceOrderOK() {
			report.Flag(models.ReasonPriceOrder, 1)
			if c.opts.DropPriceOrder {
				report.Drop(models.ReasonPriceOrder)
				continue
			}
			it.rec.Flags = append(it.rec.Flags, models.ReasonPriceOrder)
		}
		out = append(out, it.rec)
	}
	if !c.opts.SkipOutliers {
		out = c.outliers(out, report)
	}

	report.Output = len(out)
	report.Series = countSeries(out)
	c.observe(report, time.Since(start))
	return out, report
}

func (c *Cleaner) parse(rows []models.CanonicalRow, report *models.CleaningReport) []*pending {
	items := make([]*pending, 0, len(rows))
	for i, row := range rows {
		key := row.Key().Normalize()
		if missing := key.Missing(); len(missing) > 0 {
			report.Drop(models.ReasonMissingKeyField)
			report.Sample(models.ParseError{Row: i, Field: strings.Join(missing, ","), Reason: models.ReasonMissingKeyField})
			continue
		}
		date, ok := util.ParseDate(c.layout, row.Date)
		if !ok {
			report.Drop(models.ReasonBadDate)
			report.Sample(models.ParseError{Row: i, Field: models.ColDate, Value: row.Date, Reason: models.ReasonBadDate})
			continue
		}
		it := &pending{
			idx: i,
			rec: models.CanonicalRecord{
				Date:      date,
				State:     key.State,
				District:  key.District,
				Market:    key.Market,
				Commodity: key.Commodity,
				Variety:   strings.Join(strings.Fields(row.Variety), " "),
			},
		}
		for p, raw := range [priceCount]string{row.MinPrice, row.MaxPrice, row.ModalPrice} {
			v, reason := ParsePrice(raw)
			if reason != "" {
				if reason != models.ReasonMissingPrice {
					report.Flag(reason, 1)
					report.Sample(models.ParseError{Row: i, Field: priceColumns[p], Value: raw, Reason: reason})
				}
				it.missing[p] = true
				continue
			}
			it.prices[p] = v
		}
		items = append(items, it)
	}
	return items
}

// ParsePrice strips thousands separators and whitespace and parses a decimal
// rounded to two places. A non-empty reason means the value is missing.
func ParsePrice(raw string) (decimal.Decimal, string) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if s == "" || strings.EqualFold(s, "nan") || s == "-" {
		return decimal.Zero, models.ReasonMissingPrice
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, models.ReasonBadPrice
	}
	if v.IsNegative() {
		return decimal.Zero, models.ReasonNegativePrice
	}
	return v.Round(2), ""
}

// forwardFill fills missing prices from the previous record of the same key in
// date order. Rows sharing a date keep their input order.
func (c *Cleaner) forwardFill(items []*pending, report *models.CleaningReport) {
	groups := make(map[models.SeriesKey][]*pending)
	var order []models.SeriesKey
	for _, it := range items {
		k := it.rec.Key()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], it)
	}
	for _, k := range order {
		g := groups[k]
		sort.SliceStable(g, func(i, j int) bool { return g[i].rec.Date.Before(g[j].rec.Date) })
		var last [priceCount]*decimal.Decimal
		for _, it := range g {
			for p := 0; p < priceCount; p++ {
				if it.missing[p] && last[p] != nil {
					it.prices[p] = *last[p]
					it.missing[p] = false
					report.Filled++
				}
				if !it.missing[p] {
					v := it.prices[p]
					last[p] = &v
				}
			}
		}
	}
}

func dropMissing(items []*pending, report *models.CleaningReport) []*pending {
	out := items[:0]
	for _, it := range items {
		if it.missing[priceMin] || it.missing[priceMax] || it.missing[priceModal] {
			report.Drop(models.ReasonMissingPrice)
			continue
		}
		out = append(out, it)
	}
	return out
}

type dayKey struct {
	key  models.SeriesKey
	date time.Time
}

// dedup keeps the last-appearing input row for every (key, date).
func dedup(items []*pending, report *models.CleaningReport) []*pending {
	winner := make(map[dayKey]int, len(items))
	for _, it := range items {
		dk := dayKey{it.rec.Key(), it.rec.Date}
		if prev, ok := winner[dk]; !ok || it.idx > prev {
			winner[dk] = it.idx
		}
	}
	out := make([]*pending, 0, len(winner))
	for _, it := range items {
		if winner[dayKey{it.rec.Key(), it.rec.Date}] != it.idx {
			report.Drop(models.ReasonDuplicate)
			continue
		}
		out = append(out, it)
	}
	return out
}

func less(a, b *pending) bool {
	ka, kb := a.rec.Key(), b.rec.Key()
	if ka != kb {
		return ka.Less(kb)
	}
	if !a.rec.Date.Equal(b.rec.Date) {
		return a.rec.Date.Before(b.rec.Date)
	}
	return a.idx < b.idx
}

func countSeries(recs []models.CanonicalRecord) int {
	seen := make(map[models.SeriesKey]struct{})
	for _, r := range recs {
		seen[r.Key()] = struct{}{}
	}
	return len(seen)
}

func (c *Cleaner) observe(report *models.CleaningReport, took time.Duration) {
	fields := []applogger.Field{
		applogger.String("source", report.Source),
		applogger.Int("input", report.Input),
		applogger.Int("output", report.Output),
		applogger.Int("series", report.Series),
		applogger.Int("filled", report.Filled),
		applogger.Duration("took_ms", took),
	}
	for _, reason := range report.Reasons() {
		fields = append(fields, applogger.Int("dropped_"+reason, report.Dropped[reason]))
	}
	if report.DroppedTotal() > 0 {
		c.logger.Warn("cleaning dropped rows", fields...)
	} else {
		c.logger.Info("cleaning finished", fields...)
	}

	if c.metrics == nil {
		return
	}
	c.metrics.RecordRows("clean_in", report.Input)
	c.metrics.RecordRows("clean_out", report.Output)
	for reason, n := range report.Dropped {
		c.metrics.RecordDropped(reason, n)
	}
	c.metrics.RecordLatency("clean", took.Seconds())
}
