package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"CropCast/internal/domain/models"
	pkgkafka "CropCast/pkg/kafka"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct{ msgs []kafka.Message }

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func rec(market string, day int, modal int64) models.CanonicalRecord {
	return models.CanonicalRecord{
		Date:       time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Commodity:  "Wheat",
		State:      "Punjab",
		District:   "Ludhiana",
		Market:     market,
		MinPrice:   decimal.NewFromInt(modal - 10),
		MaxPrice:   decimal.NewFromInt(modal + 10),
		ModalPrice: decimal.NewFromInt(modal),
	}
}

func TestChunks(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}, {4, 5}}, chunks(5, 2))
	assert.Equal(t, [][2]int{{0, 3}}, chunks(3, 0))
	assert.Empty(t, chunks(0, 10))
}

func TestSeriesQuery(t *testing.T) {
	k := models.SeriesKey{Commodity: "Wheat", State: "Punjab", District: "Ludhiana", Market: "Khanna"}

	q, args := seriesQuery("db.crop_prices", k, time.Time{}, time.Time{})
	assert.Contains(t, q, "FROM db.crop_prices FINAL")
	assert.NotContains(t, q, "date >=")
	assert.Len(t, args, 4)

	from := time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)
	q, args = seriesQuery("db.crop_prices", k, from, from.AddDate(0, 1, 0))
	assert.Contains(t, q, "date >= ? AND date <= ?")
	require.Len(t, args, 6)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), args[4])
}

func TestSchemaIsIdempotent(t *testing.T) {
	for _, stmt := range schema("cropcast.crop_prices") {
		assert.Contains(t, stmt, "IF NOT EXISTS cropcast.crop_prices")
	}
}

func TestKafkaPublisher_GroupsBySeries(t *testing.T) {
	w := &memWriter{}
	prod, err := pkgkafka.NewProducer(pkgkafka.WithWriter(w))
	require.NoError(t, err)
	pub := NewKafkaPublisher(prod, "prices", "reports")

	err = pub.PublishRecords(context.Background(), []models.CanonicalRecord{
		rec("Khanna", 1, 2000), rec("Jagraon", 1, 2100), rec("Khanna", 2, 2010),
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "Wheat|Punjab|Ludhiana|Khanna", string(w.msgs[0].Key))

	var b models.RecordBatch
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &b))
	require.Len(t, b.Records, 2)
	assert.True(t, b.Records[1].ModalPrice.Equal(decimal.NewFromInt(2010)))
}

func TestKafkaPublisher_Report(t *testing.T) {
	w := &memWriter{}
	prod, err := pkgkafka.NewProducer(pkgkafka.WithWriter(w))
	require.NoError(t, err)

	report := models.NewCleaningReport("upload.csv")
	report.Drop(models.ReasonBadDate)
	require.NoError(t, NewKafkaPublisher(prod, "prices", "reports").PublishReport(context.Background(), report))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "reports", w.msgs[0].Topic)
	assert.Contains(t, string(w.msgs[0].Value), `"bad_date":1`)

	// no report topic configured
	require.NoError(t, NewKafkaPublisher(prod, "prices", "").PublishReport(context.Background(), report))
	assert.Len(t, w.msgs, 1)
}
