package repository

import (
	"context"
	"encoding/json"

	"CropCast/internal/domain/models"
	domrepo "CropCast/internal/domain/repository"
	pkgkafka "CropCast/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka. Records are keyed by series so
// one series always lands on one partition.
type KafkaPublisher struct {
	producer    *pkgkafka.Producer
	topic       string
	reportTopic string
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(producer *pkgkafka.Producer, topic, reportTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, reportTopic: reportTopic}
}

func (p *KafkaPublisher) PublishRecords(ctx context.Context, records []models.CanonicalRecord) error {
	if len(records) == 0 {
		return nil
	}
	idx := make(map[models.SeriesKey]int)
	var batches []models.RecordBatch
	for _, r := range records {
		k := r.Key()
		i, ok := idx[k]
		if !ok {
			i = len(batches)
			idx[k] = i
			batches = append(batches, models.RecordBatch{Key: k})
		}
		batches[i].Records = append(batches[i].Records, r)
	}

	msgs := make([]pkgkafka.Message, len(batches))
	for i, b := range batches {
		msgs[i] = pkgkafka.Message{Key: []byte(MessageKey(b.Key)), Value: b}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) PublishReport(ctx context.Context, report *models.CleaningReport) error {
	if report == nil || p.reportTopic == "" {
		return nil
	}
	b, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, p.reportTopic, []byte(report.Source), b)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// MessageKey is the partitioning key of a series. It is never parsed back.
func MessageKey(k models.SeriesKey) string {
	return k.Commodity + "|" + k.State + "|" + k.District + "|" + k.Market
}
