package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"CropCast/internal/domain/models"
	domrepo "CropCast/internal/domain/repository"
	pkgkafka "CropCast/pkg/kafka"
	pkgmetrics "CropCast/pkg/metrics"
)

// KafkaRecordsHandler consumes record batches and writes them to the price store.
type KafkaRecordsHandler struct {
	topic   string
	store   domrepo.PriceStore
	metrics domrepo.Metrics
}

func NewKafkaRecordsHandler(topic string, store domrepo.PriceStore, metrics domrepo.Metrics) *KafkaRecordsHandler {
	if metrics == nil {
		metrics = pkgmetrics.Nop{}
	}
	return &KafkaRecordsHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaRecordsHandler) Topic() string { return h.topic }

// Handle stores one models.RecordBatch. Records whose key disagrees with the
// batch key are rejected with the whole message.
func (h *KafkaRecordsHandler) Handle(ctx context.Context, b []byte) error {
	var batch models.RecordBatch
	if err := json.Unmarshal(b, &batch); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode record batch: %w", err)
	}
	for i, r := range batch.Records {
		if r.Key() != batch.Key {
			h.metrics.RecordError("consumer_key_mismatch")
			return fmt.Errorf("record %d: key %s does not match batch key %s", i, r.Key(), batch.Key)
		}
	}
	if len(batch.Records) == 0 {
		return nil
	}

	start := time.Now()
	err := h.store.StoreBatch(ctx, batch.Records)
	h.metrics.RecordLatency("store_batch", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordRows("ingested", len(batch.Records))
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaRecordsHandler)(nil)
