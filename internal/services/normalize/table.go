package normalize

import (
	"errors"
	"fmt"
	"strings"

	"CropCast/internal/domain/models"
)

var ErrNoHeader = errors.New("table has no header row")

// Records splits a raw table into its header and one RawRecord per data row.
// Blank rows are skipped. Short rows leave the missing cells empty and extra
// cells beyond the header are dropped.
func (d *Dialect) Records(rows [][]string) ([]string, []models.RawRecord, error) {
	if d.HeaderRow >= len(rows) {
		return nil, nil, fmt.Errorf("%w: want row %d, have %d rows", ErrNoHeader, d.HeaderRow, len(rows))
	}
	header := make([]string, len(rows[d.HeaderRow]))
	for i, h := range rows[d.HeaderRow] {
		header[i] = strings.TrimSpace(h)
	}

	start := d.DataStart()
	if start > len(rows) {
		start = len(rows)
	}
	recs := make([]models.RawRecord, 0, len(rows)-start)
	for _, row := range rows[start:] {
		if blank(row) {
			continue
		}
		rec := make(models.RawRecord, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		recs = append(recs, rec)
	}
	return header, recs, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
