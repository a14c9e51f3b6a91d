package cleaning

import (
	"testing"
	"time"

	"CropCast/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const layout = "2006-01-02"

func row(date, market, minP, maxP, modal string) models.CanonicalRow {
	return models.CanonicalRow{
		Date: date, State: "uttar  pradesh", District: "varanasi", Market: market,
		Commodity: "wheat", Variety: "Dara", MinPrice: minP, MaxPrice: maxP, ModalPrice: modal,
	}
}

func day(s string) time.Time {
	t, _ := time.Parse(layout, s)
	return t
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		reason string
	}{
		{"1,234.50", "1234.5", ""},
		{" 2200 ", "2200", ""},
		{"12,34,567", "1234567", ""},
		{"", "0", models.ReasonMissingPrice},
		{"NaN", "0", models.ReasonMissingPrice},
		{"abc", "0", models.ReasonBadPrice},
		{"-5", "0", models.ReasonNegativePrice},
	}
	for _, tt := range tests {
		v, reason := ParsePrice(tt.in)
		assert.Equal(t, tt.reason, reason, tt.in)
		assert.True(t, v.Equal(decimal.RequireFromString(tt.want)), "%s -> %s", tt.in, v)
	}
}

func TestClean_ThousandsSeparatorAndBadDate(t *testing.T) {
	c := New(layout)
	out, report := c.Clean("t", []models.CanonicalRow{
		row("2024-01-01", "Varanasi", "1,200.00", "1,300.00", "1,234.50"),
		row("01/02/2024", "Varanasi", "1200", "1300", "1250"),
	})

	require.Len(t, out, 1)
	assert.True(t, out[0].ModalPrice.Equal(decimal.RequireFromString("1234.50")))
	assert.Equal(t, 1, report.Dropped[models.ReasonBadDate])
	assert.Equal(t, 2, report.Input)
	assert.Equal(t, 1, report.Output)
}

func TestClean_NormalizesKeys(t *testing.T) {
	out, _ := New(layout).Clean("t", []models.CanonicalRow{
		row("2024-01-01", "  varanasi   city ", "1", "3", "2"),
	})
	require.Len(t, out, 1)
	assert.Equal(t, models.SeriesKey{
		Commodity: "Wheat", State: "Uttar Pradesh", District: "Varanasi", Market: "Varanasi City",
	}, out[0].Key())
}

func TestClean_ForwardFillStaysWithinKey(t *testing.T) {
	// rows of two markets interleaved and out of date order
	rows := []models.CanonicalRow{
		row("2024-01-02", "A", "10", "30", ""),
		row("2024-01-01", "B", "100", "300", "200"),
		row("2024-01-01", "A", "10", "30", "20"),
		row("2024-01-02", "B", "100", "300", ""),
		row("2024-01-01", "C", "1", "3", ""),
	}
	out, report := New(layout).Clean("t", rows)

	require.Len(t, out, 4)
	assert.Equal(t, 2, report.Filled)
	assert.Equal(t, 1, report.Dropped[models.ReasonMissingPrice], "C has no earlier value to fill from")

	byMarket := map[string][]string{}
	for _, r := range out {
		byMarket[r.Market] = append(byMarket[r.Market], r.ModalPrice.String())
	}
	assert.Equal(t, []string{"20", "20"}, byMarket["A"])
	assert.Equal(t, []string{"200", "200"}, byMarket["B"])
}

func TestClean_SkipFillDropsMissing(t *testing.T) {
	c := New(layout, WithOptions(Options{SkipFill: true}))
	out, report := c.Clean("t", []models.CanonicalRow{
		row("2024-01-01", "A", "10", "30", "20"),
		row("2024-01-02", "A", "10", "30", ""),
	})
	assert.Len(t, out, 1)
	assert.Equal(t, 0, report.Filled)
	assert.Equal(t, 1, report.Dropped[models.ReasonMissingPrice])
}

func TestClean_DuplicateLastWins(t *testing.T) {
	out, report := New(layout).Clean("t", []models.CanonicalRow{
		row("2024-01-01", "A", "10", "30", "20"),
		row("2024-01-01", "A", "10", "30", "25"),
	})
	require.Len(t, out, 1)
	assert.Equal(t, "25", out[0].ModalPrice.String())
	assert.Equal(t, 1, report.Dropped[models.ReasonDuplicate])
}

func TestClean_SortsByKeyThenDate(t *testing.T) {
	out, report := New(layout).Clean("t", []models.CanonicalRow{
		row("2024-01-03", "B", "1", "3", "2"),
		row("2024-01-02", "A", "1", "3", "2"),
		row("2024-01-01", "B", "1", "3", "2"),
		row("2024-01-01", "A", "1", "3", "2"),
	})
	require.Len(t, out, 4)
	assert.Equal(t, "A", out[0].Market)
	assert.Equal(t, day("2024-01-01"), out[0].Date)
	assert.Equal(t, day("2024-01-02"), out[1].Date)
	assert.Equal(t, "B", out[2].Market)
	assert.Equal(t, day("2024-01-03"), out[3].Date)
	assert.Equal(t, 2, report.Series)
}

func TestClean_PriceOrderFlagged(t *testing.T) {
	rows := []models.CanonicalRow{row("2024-01-01", "A", "30", "10", "20")}

	out, report := New(layout).Clean("t", rows)
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Flags, models.ReasonPriceOrder)
	assert.Equal(t, 1, report.Flagged[models.ReasonPriceOrder])

	out, report = New(layout, WithOptions(Options{DropPriceOrder: true})).Clean("t", rows)
	assert.Empty(t, out)
	assert.Equal(t, 1, report.Dropped[models.ReasonPriceOrder])
}

func TestClean_Outliers(t *testing.T) {
	var rows []models.CanonicalRow
	for i, p := range []string{"100", "102", "98", "101", "99", "100", "5000"} {
		rows = append(rows, row(day("2024-01-01").AddDate(0, 0, i).Format(layout), "A", "1", "9999", p))
	}

	out, report := New(layout).Clean("t", rows)
	require.Len(t, out, 7)
	assert.Equal(t, 1, report.Flagged[models.ReasonOutlier])
	assert.Contains(t, out[6].Flags, models.ReasonOutlier)

	out, report = New(layout, WithOptions(Options{DropOutliers: true})).Clean("t", rows)
	assert.Len(t, out, 6)
	assert.Equal(t, 1, report.Dropped[models.ReasonOutlier])
}

func TestClean_BadAndNegativePricesBecomeMissing(t *testing.T) {
	out, report := New(layout).Clean("t", []models.CanonicalRow{
		row("2024-01-01", "A", "10", "30", "20"),
		row("2024-01-02", "A", "abc", "30", "-4"),
	})
	require.Len(t, out, 2)
	assert.Equal(t, "10", out[1].MinPrice.String())
	assert.Equal(t, "20", out[1].ModalPrice.String())
	assert.Equal(t, 1, report.Flagged[models.ReasonBadPrice])
	assert.Equal(t, 1, report.Flagged[models.ReasonNegativePrice])
}

func TestClean_ReportSamplesRowProblems(t *testing.T) {
	_, report := New(layout).Clean("t", []models.CanonicalRow{
		row("2024-01-01", "A", "10", "30", "20"),
		row("01/02/2024", "A", "10", "30", "20"),
		row("2024-01-03", "A", "x", "30", "20"),
	})
	require.Len(t, report.Samples, 2)
	assert.Equal(t, models.ParseError{Row: 1, Field: models.ColDate, Value: "01/02/2024", Reason: models.ReasonBadDate}, report.Samples[0])
	assert.Equal(t, models.ParseError{Row: 2, Field: models.ColMinPrice, Value: "x", Reason: models.ReasonBadPrice}, report.Samples[1])

	var rows []models.CanonicalRow
	for i := 0; i < models.MaxReportSamples+5; i++ {
		rows = append(rows, row("bad", "A", "1", "2", "1"))
	}
	_, report = New(layout).Clean("t", rows)
	assert.Len(t, report.Samples, models.MaxReportSamples)
	assert.Equal(t, models.MaxReportSamples+5, report.Dropped[models.ReasonBadDate])
}

func TestClean_Idempotent(t *testing.T) {
	rows := []models.CanonicalRow{
		row("2024-01-03", "B", "1,000", "1,200", "1,100.50"),
		row("2024-01-02", "A", "10", "30", ""),
		row("2024-01-01", "A", "10", "30", "20"),
		row("2024-01-01", "A", "11", "31", "21"),
		row("bad", "A", "10", "30", "20"),
		row("2024-01-04", "B", "1,000", "900", "950"),
	}
	c := New(layout)

	once, _ := c.Clean("t", rows)
	twice, report := c.Clean("t", ToRows(once, layout))

	assert.Equal(t, ToRows(once, layout), ToRows(twice, layout))
	assert.Zero(t, report.DroppedTotal())
	assert.Zero(t, report.Filled)
	for i := range once {
		assert.Equal(t, once[i].Flags, twice[i].Flags)
	}
}

func TestClean_IdempotentWhenDroppingOutliers(t *testing.T) {
	var rows []models.CanonicalRow
	for i, p := range []string{"100", "101", "102", "103", "104", "105", "130", "160", "400"} {
		rows = append(rows, row(day("2024-01-01").AddDate(0, 0, i).Format(layout), "A", "1", "9999", p))
	}
	c := New(layout, WithOptions(Options{DropOutliers: true}))

	once, report := c.Clean("t", rows)
	require.Less(t, len(once), len(rows))
	assert.Equal(t, len(rows)-len(once), report.Dropped[models.ReasonOutlier])

	twice, report := c.Clean("t", ToRows(once, layout))
	assert.Equal(t, ToRows(once, layout), ToRows(twice, layout))
	assert.Zero(t, report.DroppedTotal())
}

func TestClean_MissingKeyField(t *testing.T) {
	r := row("2024-01-01", "", "1", "3", "2")
	out, report := New(layout).Clean("t", []models.CanonicalRow{r})
	assert.Empty(t, out)
	assert.Equal(t, 1, report.Dropped[models.ReasonMissingKeyField])
}

func TestBounds(t *testing.T) {
	// q1 = 1.25 and q3 = 3.75 under linear interpolation of the empirical CDF
	lo, hi := Bounds([]float64{5, 4, 3, 2, 1}, 1.5)
	assert.InDelta(t, -2.5, lo, 1e-9)
	assert.InDelta(t, 7.5, hi, 1e-9)
}
