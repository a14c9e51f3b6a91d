package usecase

import (
	"context"
	"fmt"

	"CropCast/internal/domain/models"
	"CropCast/internal/services/cleaning"
	"CropCast/internal/services/normalize"
	applogger "CropCast/pkg/logger"
)

// Preparer runs the offline pipeline for one source: normalize, clean, then
// hand the records to the sink.
type Preparer struct {
	normalizer *normalize.Normalizer
	cleaner    *cleaning.Cleaner
	sink       *RecordProcessor
	log        *applogger.Logger
}

func NewPreparer(n *normalize.Normalizer, c *cleaning.Cleaner, sink *RecordProcessor, l *applogger.Logger) *Preparer {
	if l == nil {
		l = applogger.Nop()
	}
	return &Preparer{normalizer: n, cleaner: c, sink: sink, log: l}
}

// PrepareTable handles a raw table such as a CSV file.
func (p *Preparer) PrepareTable(ctx context.Context, source string, rows [][]string) ([]models.CanonicalRecord, *models.CleaningReport, error) {
	canon, err := p.normalizer.NormalizeTable(source, rows)
	if err != nil {
		return nil, nil, err
	}
	return p.finish(ctx, source, canon)
}

// PrepareRecords handles keyed records such as API results.
func (p *Preparer) PrepareRecords(ctx context.Context, source string, recs []models.RawRecord) ([]models.CanonicalRecord, *models.CleaningReport, error) {
	canon, err := p.normalizer.NormalizeAll(source, recs)
	if err != nil {
		return nil, nil, err
	}
	return p.finish(ctx, source, canon)
}

func (p *Preparer) finish(ctx context.Context, source string, rows []models.CanonicalRow) ([]models.CanonicalRecord, *models.CleaningReport, error) {
	recs, report := p.cleaner.Clean(source, rows)
	p.log.Info("cleaned source",
		applogger.String("source", source),
		applogger.Int("input", report.Input),
		applogger.Int("output", report.Output),
		applogger.Int("series", report.Series),
		applogger.Int("dropped", report.DroppedTotal()),
		applogger.Int("filled", report.Filled),
		applogger.Any("dropped_by_reason", report.Dropped),
		applogger.Any("flagged", report.Flagged),
	)

	if p.sink == nil {
		return recs, report, nil
	}
	if err := p.sink.ProcessBatch(ctx, recs); err != nil {
		return recs, report, fmt.Errorf("sink %s: %w", p.sink.Backend(), err)
	}
	if err := p.sink.PublishReport(ctx, report); err != nil {
		p.log.Warn("publish cleaning report", applogger.String("source", source), applogger.Error(err))
	}
	return recs, report, nil
}
