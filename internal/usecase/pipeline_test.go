package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"CropCast/internal/domain/models"
	"CropCast/internal/service/registry"
	"CropCast/internal/services/cleaning"
	"CropCast/internal/services/forecast"
	"CropCast/internal/services/normalize"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	records []models.CanonicalRecord
	fail    error
}

func (s *memStore) Init(context.Context) error { return nil }

func (s *memStore) StoreBatch(_ context.Context, recs []models.CanonicalRecord) error {
	if s.fail != nil {
		return s.fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, recs...)
	return nil
}

func (s *memStore) Keys(context.Context) ([]models.SeriesKey, error) {
	seen := map[models.SeriesKey]bool{}
	var out []models.SeriesKey
	for _, r := range s.records {
		if !seen[r.Key()] {
			seen[r.Key()] = true
			out = append(out, r.Key())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

func (s *memStore) Series(_ context.Context, k models.SeriesKey, from, to time.Time) (models.TimeSeries, error) {
	ts := models.TimeSeries{Key: k}
	for _, r := range s.records {
		if r.Key() != k || (!from.IsZero() && r.Date.Before(from)) || (!to.IsZero() && r.Date.After(to)) {
			continue
		}
		ts.Points = append(ts.Points, models.SeriesPoint{Date: r.Date, Value: r.ModalPrice.InexactFloat64()})
	}
	return ts, nil
}

func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                 { return nil }

type memPublisher struct {
	batches [][]models.CanonicalRecord
	reports []*models.CleaningReport
}

func (p *memPublisher) PublishRecords(_ context.Context, recs []models.CanonicalRecord) error {
	p.batches = append(p.batches, recs)
	return nil
}

func (p *memPublisher) PublishReport(_ context.Context, r *models.CleaningReport) error {
	p.reports = append(p.reports, r)
	return nil
}

func (p *memPublisher) Close() error { return nil }

func records(key models.SeriesKey, n int) []models.CanonicalRecord {
	out := make([]models.CanonicalRecord, n)
	for i := range out {
		v := decimal.NewFromInt(int64(2000 + i%7))
		out[i] = models.CanonicalRecord{
			Date: day0.AddDate(0, 0, i), Commodity: key.Commodity, State: key.State,
			District: key.District, Market: key.Market,
			MinPrice: v.Sub(decimal.NewFromInt(50)), MaxPrice: v.Add(decimal.NewFromInt(50)), ModalPrice: v,
		}
	}
	return out
}

func TestRecordProcessor_Routes(t *testing.T) {
	_, err := NewRecordProcessor(nil, nil, nil, "s3", 10, 0)
	require.Error(t, err)
	_, err = NewRecordProcessor(nil, nil, nil, BackendKafka, 10, 0)
	require.Error(t, err)

	pub := &memPublisher{}
	p, err := NewRecordProcessor(pub, nil, nil, BackendKafka, 4, time.Second)
	require.NoError(t, err)
	require.NoError(t, p.ProcessBatch(context.Background(), records(wheat, 10)))
	require.Len(t, pub.batches, 3)
	assert.Len(t, pub.batches[2], 2)

	store := &memStore{}
	p, err = NewRecordProcessor(nil, store, nil, BackendClickHouse, 0, 0)
	require.NoError(t, err)
	require.NoError(t, p.ProcessBatch(context.Background(), records(wheat, 10)))
	assert.Len(t, store.records, 10)

	store.fail = errors.New("down")
	assert.Error(t, p.ProcessBatch(context.Background(), records(wheat, 1)))
}

func TestPreparer_TableToSink(t *testing.T) {
	d, err := normalize.Builtin("cleaned_csv")
	require.NoError(t, err)
	pub := &memPublisher{}
	sink, err := NewRecordProcessor(pub, nil, nil, BackendKafka, 100, 0)
	require.NoError(t, err)
	p := NewPreparer(normalize.New(d), cleaning.New(d.Layout()), sink, nil)

	rows := [][]string{
		{"Date", "State", "District", "Market", "Commodity", "Variety", "Min_Price_Rs", "Max_Price_Rs", "Modal_Price_Rs"},
		{"2024-01-02", "Punjab", "Ludhiana", "Khanna", "Wheat", "Dara", "2000", "2100", "2,050"},
		{"2024-01-01", "Punjab", "Ludhiana", "Khanna", "Wheat", "Dara", "1990", "2090", "2040"},
		{"not a date", "Punjab", "Ludhiana", "Khanna", "Wheat", "Dara", "1990", "2090", "2040"},
	}
	recs, report, err := p.PrepareTable(context.Background(), "prices.csv", rows)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Date.Before(recs[1].Date))
	assert.True(t, recs[1].ModalPrice.Equal(decimal.NewFromInt(2050)))
	assert.Equal(t, 1, report.Dropped[models.ReasonBadDate])
	require.Len(t, pub.batches, 1)
	require.Len(t, pub.reports, 1)
	assert.Equal(t, "prices.csv", pub.reports[0].Source)
}

func TestPreparer_SchemaError(t *testing.T) {
	d, err := normalize.Builtin("cleaned_csv")
	require.NoError(t, err)
	p := NewPreparer(normalize.New(d), cleaning.New(d.Layout()), nil, nil)
	_, _, err = p.PrepareTable(context.Background(), "bad.csv", [][]string{{"Date", "State"}, {"2024-01-01", "Punjab"}})
	assert.ErrorIs(t, err, models.ErrSchema)
}

func TestTrainer_WritesLoadableArtifacts(t *testing.T) {
	dir := t.TempDir()
	tr := NewTrainer(forecast.NewFitter(forecast.WithFitOptions(forecast.FitOptions{MinPoints: 14})), dir, WithTrainWorkers(2))

	short := models.TimeSeries{Key: onion, Points: series(onion, 5, 100).Points}
	res, err := tr.Train(context.Background(), []models.TimeSeries{series(wheat, 30, 2000), short})
	require.NoError(t, err)
	require.Len(t, res.Saved, 1)
	assert.ErrorIs(t, res.Skipped[onion], forecast.ErrTooFewPoints)
	assert.Equal(t, filepath.Join(dir, "prophet_model_Wheat_Uttar_Pradesh_Varanasi_Varanasi.json"), res.Saved[0])

	reg, err := registry.New(context.Background(), os.DirFS(dir))
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())
	_, err = reg.Get(wheat)
	assert.NoError(t, err)
}

func TestTrainer_MultiWordKeysRoundTrip(t *testing.T) {
	gram := models.SeriesKey{Commodity: "Bengal Gram", State: "Andhra Pradesh", District: "East Godavari", Market: "Kakinada"}
	lower := models.SeriesKey{Commodity: "green  chilli", State: "tamil nadu", District: "the nilgiris", Market: "ooty"}
	dir := t.TempDir()

	res, err := NewTrainer(forecast.NewFitter(), dir).Train(context.Background(),
		[]models.TimeSeries{series(gram, 30, 5000), series(lower, 30, 3000)})
	require.NoError(t, err)
	require.Empty(t, res.Skipped)
	assert.Contains(t, res.Saved, filepath.Join(dir, "prophet_model_Bengal Gram_Andhra_Pradesh_East Godavari_Kakinada.json"))

	reg, err := registry.New(context.Background(), os.DirFS(dir))
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
	_, err = reg.Get(gram)
	assert.NoError(t, err)
	_, err = reg.Get(lower.Normalize())
	assert.NoError(t, err)
}

func TestTrainer_SkipsKeysThatDoNotRoundTrip(t *testing.T) {
	odd := models.SeriesKey{Commodity: "Bengal_Gram", State: "Andhra Pradesh", District: "Guntur", Market: "Guntur"}
	dir := t.TempDir()

	res, err := NewTrainer(forecast.NewFitter(), dir).Train(context.Background(),
		[]models.TimeSeries{series(odd, 30, 5000), series(wheat, 30, 2000)})
	require.NoError(t, err)
	require.Len(t, res.Saved, 1)
	require.Len(t, res.Skipped, 1)
	for _, reason := range res.Skipped {
		assert.ErrorIs(t, reason, forecast.ErrBadName)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTrainer_MergesRepeatedKeys(t *testing.T) {
	dir := t.TempDir()
	first := series(wheat, 20, 2000)
	second := models.TimeSeries{Key: wheat}
	for _, p := range series(wheat, 30, 2000).Points[20:] {
		second.Points = append(second.Points, p)
	}

	res, err := NewTrainer(forecast.NewFitter(), dir).Train(context.Background(), []models.TimeSeries{first, second})
	require.NoError(t, err)
	require.Len(t, res.Saved, 1)

	m, err := forecast.Load(os.DirFS(dir), filepath.Base(res.Saved[0]))
	require.NoError(t, err)
	assert.True(t, day0.AddDate(0, 0, 29).Equal(m.Cutoff()))
}

func TestTrainer_FromStore(t *testing.T) {
	store := &memStore{}
	require.NoError(t, store.StoreBatch(context.Background(), append(records(wheat, 20), records(onion, 20)...)))

	dir := t.TempDir()
	res, err := NewTrainer(forecast.NewFitter(), dir).TrainFromStore(context.Background(), store, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, res.Saved, 2)
	assert.Empty(t, res.Skipped)
}

func TestTidySeries(t *testing.T) {
	s := models.TimeSeries{Key: wheat, Points: []models.SeriesPoint{
		{Date: day0.AddDate(0, 0, 2), Value: 3},
		{Date: day0, Value: 1},
		{Date: day0.AddDate(0, 0, 2), Value: 4},
	}}
	got := tidySeries(s)
	require.Len(t, got.Points, 2)
	assert.Equal(t, day0, got.Points[0].Date)
	assert.Equal(t, float64(4), got.Points[1].Value)
}

func TestKafkaRecordsHandler(t *testing.T) {
	store := &memStore{}
	h := NewKafkaRecordsHandler("prices", store, nil)
	assert.Equal(t, "prices", h.Topic())

	b, err := json.Marshal(models.RecordBatch{Key: wheat, Records: records(wheat, 3)})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), b))
	require.Len(t, store.records, 3)
	assert.True(t, store.records[2].ModalPrice.Equal(decimal.NewFromInt(2002)))

	b, err = json.Marshal(models.RecordBatch{Key: onion, Records: records(wheat, 1)})
	require.NoError(t, err)
	assert.Error(t, h.Handle(context.Background(), b))

	assert.Error(t, h.Handle(context.Background(), []byte("{")))
}
