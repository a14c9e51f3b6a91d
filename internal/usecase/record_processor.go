package usecase

import (
	"context"
	"fmt"
	"time"

	"CropCast/internal/domain/models"
	drepo "CropCast/internal/domain/repository"
	pkgmetrics "CropCast/pkg/metrics"
)

// Backend names accepted by RecordProcessor.
const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// RecordProcessor routes cleaned records to the configured backend in batches.
type RecordProcessor struct {
	pub     drepo.Publisher
	store   drepo.PriceStore
	metrics drepo.Metrics
	backend string
	batchSz int
	batchTO time.Duration
}

func NewRecordProcessor(
	pub drepo.Publisher,
	store drepo.PriceStore,
	metrics drepo.Metrics,
	backend string,
	batchSz int,
	batchTO time.Duration,
) (*RecordProcessor, error) {
	switch backend {
	case BackendNone:
	case BackendKafka:
		if pub == nil {
			return nil, fmt.Errorf("backend %s: publisher is nil", backend)
		}
	case BackendClickHouse:
		if store == nil {
			return nil, fmt.Errorf("backend %s: store is nil", backend)
		}
	default:
		return nil, fmt.Errorf("unknown backend: %s", backend)
	}
	if batchSz <= 0 {
		batchSz = 1000
	}
	if metrics == nil {
		metrics = pkgmetrics.Nop{}
	}
	return &RecordProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		batchSz: batchSz,
		batchTO: batchTO,
	}, nil
}

func (p *RecordProcessor) Backend() string { return p.backend }

// ProcessBatch sends records in chunks of the batch size. Each chunk gets its
// own timeout when one is configured.
func (p *RecordProcessor) ProcessBatch(ctx context.Context, records []models.CanonicalRecord) error {
	if len(records) == 0 || p.backend == BackendNone {
		return nil
	}

	start := time.Now()
	for i := 0; i < len(records); i += p.batchSz {
		end := i + p.batchSz
		if end > len(records) {
			end = len(records)
		}
		if err := p.send(ctx, records[i:end]); err != nil {
			p.metrics.RecordError("process_batch")
			return fmt.Errorf("process batch: %w", err)
		}
		p.metrics.RecordRows(p.backend, end-i)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

func (p *RecordProcessor) send(ctx context.Context, chunk []models.CanonicalRecord) error {
	if p.batchTO > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.batchTO)
		defer cancel()
	}
	switch p.backend {
	case BackendKafka:
		return p.pub.PublishRecords(ctx, chunk)
	case BackendClickHouse:
		return p.store.StoreBatch(ctx, chunk)
	}
	return nil
}

// PublishReport forwards a cleaning report when a publisher is configured.
func (p *RecordProcessor) PublishReport(ctx context.Context, report *models.CleaningReport) error {
	if p.pub == nil {
		return nil
	}
	return p.pub.PublishReport(ctx, report)
}

// Close closes underlying resources if available.
func (p *RecordProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
