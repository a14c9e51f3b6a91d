package normalize

import (
	"fmt"
	"strings"

	"CropCast/internal/domain/models"
	applogger "CropCast/pkg/logger"
)

// Normalizer maps raw records of one dialect onto the canonical row shape.
type Normalizer struct {
	dialect *Dialect
	logger  *applogger.Logger
}

type Option func(*Normalizer)

func WithLogger(l *applogger.Logger) Option {
	return func(n *Normalizer) { n.logger = l }
}

func New(d *Dialect, opts ...Option) *Normalizer {
	n := &Normalizer{dialect: d, logger: applogger.Nop()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Normalizer) Dialect() *Dialect { return n.dialect }

// CheckHeader fails with a SchemaError when a required column cannot be mapped.
func (n *Normalizer) CheckHeader(source string, header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		if c := n.dialect.Column(h); c != "" {
			present[c] = true
		}
	}
	return n.requireColumns(source, present)
}

// Normalize maps one record. Unknown columns are ignored.
func (n *Normalizer) Normalize(source string, rec models.RawRecord) (models.CanonicalRow, error) {
	var row models.CanonicalRow
	present := make(map[string]bool, len(models.CanonicalColumns))
	for raw, v := range rec {
		c := n.dialect.Column(raw)
		if c == "" {
			continue
		}
		// two raw headers may map to one column; a non-empty value wins
		if present[c] && strings.TrimSpace(getColumn(row, c)) != "" {
			continue
		}
		setColumn(&row, c, v)
		present[c] = true
	}
	for c, v := range n.dialect.Defaults {
		c = canonicalName(c)
		if !present[c] || strings.TrimSpace(getColumn(row, c)) == "" {
			setColumn(&row, c, v)
			present[c] = true
		}
	}
	if err := n.requireColumns(source, present); err != nil {
		return models.CanonicalRow{}, err
	}
	return row, nil
}

// NormalizeAll maps a batch. The first record missing a required column aborts
// the batch with a SchemaError.
func (n *Normalizer) NormalizeAll(source string, recs []models.RawRecord) ([]models.CanonicalRow, error) {
	out := make([]models.CanonicalRow, 0, len(recs))
	for i, rec := range recs {
		row, err := n.Normalize(source, rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, row)
	}
	n.logger.Debug("normalized records",
		applogger.String("source", source),
		applogger.String("dialect", n.dialect.Name),
		applogger.Int("rows", len(out)),
	)
	return out, nil
}

// NormalizeTable splits a raw table into header and records, checks the header
// and maps every data row.
func (n *Normalizer) NormalizeTable(source string, rows [][]string) ([]models.CanonicalRow, error) {
	header, recs, err := n.dialect.Records(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if err := n.CheckHeader(source, header); err != nil {
		return nil, err
	}
	return n.NormalizeAll(source, recs)
}

func (n *Normalizer) requireColumns(source string, present map[string]bool) error {
	for _, c := range models.RequiredColumns {
		if !present[c] {
			return &models.SchemaError{Source: source, Field: c}
		}
	}
	return nil
}

func setColumn(row *models.CanonicalRow, col, v string) {
	switch col {
	case models.ColDate:
		row.Date = v
	case models.ColState:
		row.State = v
	case models.ColDistrict:
		row.District = v
	case models.ColMarket:
		row.Market = v
	case models.ColCommodity:
		row.Commodity = v
	case models.ColVariety:
		row.Variety = v
	case models.ColMinPrice:
		row.MinPrice = v
	case models.ColMaxPrice:
		row.MaxPrice = v
	case models.ColModalPrice:
		row.ModalPrice = v
	}
}

func getColumn(row models.CanonicalRow, col string) string {
	switch col {
	case models.ColDate:
		return row.Date
	case models.ColState:
		return row.State
	case models.ColDistrict:
		return row.District
	case models.ColMarket:
		return row.Market
	case models.ColCommodity:
		return row.Commodity
	case models.ColVariety:
		return row.Variety
	case models.ColMinPrice:
		return row.MinPrice
	case models.ColMaxPrice:
		return row.MaxPrice
	case models.ColModalPrice:
		return row.ModalPrice
	}
	return ""
}
