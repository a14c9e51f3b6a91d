package pricefile

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"CropCast/internal/domain/models"
	"CropCast/internal/services/cleaning"
)

// CleanedHeader is the header of the cleaned CSV this system writes.
var CleanedHeader = []string{
	"Date", "State", "District", "Market", "Commodity", "Variety",
	"Min_Price_Rs", "Max_Price_Rs", "Modal_Price_Rs",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadTable reads every row of a CSV. Rows may have different lengths.
func ReadTable(r io.Reader) ([][]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(b, utf8BOM)))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

// ReadFile reads a CSV table from path.
func ReadFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f)
}

// WriteCleaned writes records in the cleaned CSV layout with ISO dates.
func WriteCleaned(w io.Writer, recs []models.CanonicalRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CleanedHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range cleaning.ToRows(recs, models.DateLayout) {
		if err := cw.Write([]string{
			r.Date, r.State, r.District, r.Market, r.Commodity, r.Variety,
			r.MinPrice, r.MaxPrice, r.ModalPrice,
		}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCleanedFile writes records to path, creating parent directories.
func WriteCleanedFile(path string, recs []models.CanonicalRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCleaned(f, recs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteRaw writes raw records as a CSV with the given column order.
func WriteRaw(w io.Writer, columns []string, recs []models.RawRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	row := make([]string, len(columns))
	for _, r := range recs {
		for i, c := range columns {
			row[i] = r[c]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
