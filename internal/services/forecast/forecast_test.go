package forecast

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"CropCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wheatKey = models.SeriesKey{Commodity: "Wheat", State: "Uttar Pradesh", District: "Varanasi", Market: "Varanasi"}

func linearSeries(n int, start time.Time, base, step float64) models.TimeSeries {
	s := models.TimeSeries{Key: wheatKey}
	for i := 0; i < n; i++ {
		s.Points = append(s.Points, models.SeriesPoint{Date: start.AddDate(0, 0, i), Value: base + step*float64(i)})
	}
	return s
}

func fixedClock() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

func fit(t *testing.T, s models.TimeSeries, opts ...FitterOption) *Model {
	t.Helper()
	opts = append([]FitterOption{WithClock(fixedClock)}, opts...)
	m, err := NewFitter(opts...).FitModel(context.Background(), s)
	require.NoError(t, err)
	return m
}

func TestForecast_SevenDaysAfterCutoff(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := fit(t, linearSeries(60, start, 100, 1))
	cutoff := start.AddDate(0, 0, 59)
	require.Equal(t, cutoff, m.Cutoff())

	points, err := NewForecaster(0).Forecast(m, 7)
	require.NoError(t, err)
	require.Len(t, points, 7)

	assert.Equal(t, cutoff.AddDate(0, 0, 1), points[0].Date)
	for i, p := range points {
		assert.True(t, p.Date.After(cutoff))
		if i > 0 {
			assert.Equal(t, points[i-1].Date.AddDate(0, 0, 1), p.Date)
		}
		assert.LessOrEqual(t, p.Lower, p.Point)
		assert.LessOrEqual(t, p.Point, p.Upper)
		assert.InDelta(t, 160+float64(i+1), p.Point, 20)
	}
}

func TestForecast_RoundsToTwoPlaces(t *testing.T) {
	m := fit(t, linearSeries(30, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1000.123, 3.3))
	points, err := NewForecaster(0).Forecast(m, 3)
	require.NoError(t, err)
	for _, p := range points {
		for _, v := range []float64{p.Point, p.Lower, p.Upper} {
			assert.InDelta(t, v, float64(int64(v*100+0.5))/100, 1e-9)
		}
	}
}

func TestForecast_InvalidHorizon(t *testing.T) {
	m := fit(t, linearSeries(10, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 50, 0))
	f := NewForecaster(30)

	for _, days := range []int{0, -1, 31} {
		points, err := f.Forecast(m, days)
		assert.Nil(t, points)
		assert.ErrorIs(t, err, models.ErrInvalidHorizon, "days=%d", days)
	}
}

func TestFit_ConstantSeriesHasTightInterval(t *testing.T) {
	m := fit(t, linearSeries(20, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 2500, 0))
	points, err := NewForecaster(0).Forecast(m, 2)
	require.NoError(t, err)
	for _, p := range points {
		assert.InDelta(t, 2500, p.Point, 1)
		assert.InDelta(t, p.Point, p.Lower, 1)
		assert.InDelta(t, p.Point, p.Upper, 1)
	}
}

func TestFit_MultiplicativeFallsBackOnZero(t *testing.T) {
	s := linearSeries(10, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 0, 10)
	m := fit(t, s)
	assert.Equal(t, ModeAdditive, m.Mode)

	m = fit(t, linearSeries(10, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 5, 10))
	assert.Equal(t, ModeMultiplicative, m.Mode)
}

func TestFit_TooFewPoints(t *testing.T) {
	_, err := NewFitter().Fit(context.Background(), linearSeries(1, time.Now(), 1, 0))
	assert.ErrorIs(t, err, ErrTooFewPoints)

	_, err = NewFitter(WithFitOptions(FitOptions{MinPoints: 30})).Fit(context.Background(),
		linearSeries(20, time.Now(), 1, 0))
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestFit_SeasonalityByHistoryLength(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	short := fit(t, linearSeries(10, start, 100, 1))
	assert.Empty(t, short.Seasonalities)

	long := fit(t, linearSeries(800, start, 100, 0.1))
	names := []string{}
	for _, s := range long.Seasonalities {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"yearly", "weekly"}, names)
}

func TestNaming_Parse(t *testing.T) {
	n := DefaultNaming()

	key, err := n.Parse("prophet_model_Wheat_Uttar_Pradesh_Varanasi_Varanasi.json")
	require.NoError(t, err)
	assert.Equal(t, wheatKey, key)

	key, err = n.Parse("prophet_model_paddy_west_bengal_extra_nadia_ranaghat.json")
	require.NoError(t, err)
	assert.Equal(t, models.SeriesKey{Commodity: "Paddy", State: "West Bengal Extra", District: "Nadia", Market: "Ranaghat"}, key)

	for _, bad := range []string{
		"prophet_model_Wheat_Punjab_Ludhiana.json",
		"other_Wheat_Punjab_Ludhiana_Khanna.json",
		"prophet_model_Wheat_Punjab_Ludhiana_Khanna.pkl",
		"prophet_model_Wheat__Ludhiana_Khanna.json",
	} {
		_, err := n.Parse(bad)
		assert.ErrorIs(t, err, ErrBadName, bad)
	}
}

func TestNaming_EncodeParseIdempotent(t *testing.T) {
	n := Naming{Prefix: "m_", Suffix: ".bin"}
	names := []string{
		"m_wheat_uttar_pradesh_varanasi_varanasi.bin",
		"m_Onion_Maharashtra_Nashik_Lasalgaon.bin",
		"m_Tur_Andaman_and_Nicobar_South_Andaman_Port_Blair.bin",
	}
	for _, name := range names {
		key, err := n.Parse(name)
		require.NoError(t, err)
		again, err := n.Parse(n.Encode(key))
		require.NoError(t, err)
		assert.Equal(t, key, again, name)
		assert.Equal(t, n.Encode(key), n.Encode(again))
	}
}

func TestNaming_MultiWordComponentsKeepSpaces(t *testing.T) {
	n := DefaultNaming()
	key := models.SeriesKey{Commodity: "Bengal Gram", State: "Andhra Pradesh", District: "East Godavari", Market: "Kakinada"}

	name, err := n.EncodeChecked(key)
	require.NoError(t, err)
	assert.Equal(t, "prophet_model_Bengal Gram_Andhra_Pradesh_East Godavari_Kakinada.json", name)

	got, err := n.Parse(name)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = n.EncodeChecked(models.SeriesKey{Commodity: "Bengal_Gram", State: "Punjab", District: "Ludhiana", Market: "Khanna"})
	assert.ErrorIs(t, err, ErrBadName)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	m := fit(t, linearSeries(40, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 200, 2))

	path, err := Save(dir, DefaultNaming(), m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prophet_model_Wheat_Uttar_Pradesh_Varanasi_Varanasi.json"), path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	loaded, err := Load(os.DirFS(dir), filepath.Base(path))
	require.NoError(t, err)
	assert.Equal(t, m.Cutoff(), loaded.Cutoff())

	want, err := NewForecaster(0).Forecast(m, 5)
	require.NoError(t, err)
	got, err := NewForecaster(0).Forecast(loaded, 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode(bytes.NewBufferString("not json"))
	assert.Error(t, err)

	_, err = Decode(bytes.NewBufferString(`{"version": 99}`))
	assert.Error(t, err)
}
