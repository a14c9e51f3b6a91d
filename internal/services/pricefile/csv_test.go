package pricefile

import (
	"bytes"
	"strings"
	"testing"

	"CropCast/internal/domain/models"
	"CropCast/internal/services/cleaning"
	"CropCast/internal/services/normalize"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTable_RaggedAndBOM(t *testing.T) {
	rows, err := ReadTable(strings.NewReader("\xEF\xBB\xBFtitle\nA,B,C\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"title"}, {"A", "B", "C"}, {"1", "2"}}, rows)
}

func TestWriteCleaned_ReadsBackAsCleanedDialect(t *testing.T) {
	d, err := normalize.Builtin(normalize.DialectAgmarknetScrape)
	require.NoError(t, err)
	raw := "report\n" +
		"Sl no.,District Name,Market Name,Commodity,Variety,Grade,Min Price (Rs./Quintal),Max Price (Rs./Quintal),Modal Price (Rs./Quintal),Price Date,State Name\n" +
		`1,Varanasi,Varanasi,Wheat,Dara,FAQ,"2,200","2,400","2,300",01-Jan-2024,Uttar Pradesh` + "\n"

	rows, err := ReadTable(strings.NewReader(raw))
	require.NoError(t, err)
	canon, err := normalize.New(d).NormalizeTable("raw", rows)
	require.NoError(t, err)
	recs, _ := cleaning.New(d.Layout()).Clean("raw", canon)
	require.Len(t, recs, 1)

	var buf bytes.Buffer
	require.NoError(t, WriteCleaned(&buf, recs))
	assert.Contains(t, buf.String(), "2024-01-01,Uttar Pradesh,Varanasi,Varanasi,Wheat,Dara,2200.00,2400.00,2300.00")

	cd, err := normalize.Builtin(normalize.DialectCleanedCSV)
	require.NoError(t, err)
	rows, err = ReadTable(&buf)
	require.NoError(t, err)
	canon, err = normalize.New(cd).NormalizeTable("cleaned", rows)
	require.NoError(t, err)
	again, report := cleaning.New(cd.Layout()).Clean("cleaned", canon)
	require.Len(t, again, 1)
	assert.Zero(t, report.DroppedTotal())
	assert.Equal(t, recs[0].Key(), again[0].Key())
	assert.True(t, recs[0].ModalPrice.Equal(again[0].ModalPrice))
	assert.Equal(t, models.ColModalPrice, cd.Column("Modal_Price_Rs"))
}
