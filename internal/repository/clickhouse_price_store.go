package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CropCast/internal/domain/models"
	domrepo "CropCast/internal/domain/repository"
	pkgch "CropCast/pkg/clickhouse"
	applogger "CropCast/pkg/logger"
)

const defaultChunk = 2000

// ClickHousePriceStore implements PriceStore backed by a ClickHouse ReplacingMergeTree.
// Re-ingesting a (key, date) replaces the earlier row, so the latest
// ingestion wins just as in the cleaner's dedup.
type ClickHousePriceStore struct {
	db    *sql.DB
	table string
	chunk int
	l     *applogger.Logger
}

var _ domrepo.PriceStore = (*ClickHousePriceStore)(nil)

// StoreOption configures ClickHousePriceStore.
type StoreOption func(*ClickHousePriceStore)

// WithChunkSize bounds the rows sent per insert.
func WithChunkSize(n int) StoreOption {
	return func(s *ClickHousePriceStore) {
		if n > 0 {
			s.chunk = n
		}
	}
}

// WithStoreLogger injects a structured logger.
func WithStoreLogger(l *applogger.Logger) StoreOption {
	return func(s *ClickHousePriceStore) {
		if l != nil {
			s.l = l
		}
	}
}

func NewClickHousePriceStore(ch *pkgch.Client, opts ...StoreOption) *ClickHousePriceStore {
	s := &ClickHousePriceStore{
		db:    ch.DB(),
		table: ch.Database() + ".crop_prices",
		chunk: defaultChunk,
		l:     applogger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func schema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            date        Date,
            commodity   LowCardinality(String),
            state       LowCardinality(String),
            district    String,
            market      String,
            variety     String,
            min_price   Decimal(14, 2),
            max_price   Decimal(14, 2),
            modal_price Decimal(14, 2),
            flags       Array(LowCardinality(String)),
            ingested_at DateTime64(3) DEFAULT now64(3)
        )
        ENGINE = ReplacingMergeTree(ingested_at)
        ORDER BY (commodity, state, district, market, date)
    `, table)}
}

func (s *ClickHousePriceStore) Init(ctx context.Context) error {
	for _, stmt := range schema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *ClickHousePriceStore) StoreBatch(ctx context.Context, records []models.CanonicalRecord) error {
	start := time.Now()
	for _, span := range chunks(len(records), s.chunk) {
		if err := s.insert(ctx, records[span[0]:span[1]]); err != nil {
			s.l.Error("clickhouse store_batch error",
				applogger.String("table", s.table),
				applogger.Int("rows", span[1]-span[0]),
				applogger.Error(err))
			return fmt.Errorf("store batch: %w", err)
		}
	}
	s.l.Debug("clickhouse store_batch ok",
		applogger.String("table", s.table),
		applogger.Int("rows", len(records)),
		applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// insert sends one chunk through the driver's batch path: prepare once on a
// transaction, exec per row, commit to flush.
func (s *ClickHousePriceStore) insert(ctx context.Context, recs []models.CanonicalRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (date, commodity, state, district, market, variety, min_price, max_price, modal_price, flags)", s.table))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		flags := r.Flags
		if flags == nil {
			flags = []string{}
		}
		if _, err := stmt.ExecContext(ctx,
			r.Date, r.Commodity, r.State, r.District, r.Market, r.Variety,
			r.MinPrice, r.MaxPrice, r.ModalPrice, flags,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *ClickHousePriceStore) Keys(ctx context.Context) ([]models.SeriesKey, error) {
	q := fmt.Sprintf(`
        SELECT DISTINCT commodity, state, district, market
        FROM %s
        ORDER BY commodity, state, district, market
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	defer rows.Close()

	var out []models.SeriesKey
	for rows.Next() {
		var k models.SeriesKey
		if err := rows.Scan(&k.Commodity, &k.State, &k.District, &k.Market); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Series returns the modal price history of key. Zero from/to leave that end open.
func (s *ClickHousePriceStore) Series(ctx context.Context, key models.SeriesKey, from, to time.Time) (models.TimeSeries, error) {
	start := time.Now()
	q, args := seriesQuery(s.table, key, from, to)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return models.TimeSeries{}, fmt.Errorf("series %s: %w", key, err)
	}
	defer rows.Close()

	ts := models.TimeSeries{Key: key}
	for rows.Next() {
		var p models.SeriesPoint
		if err := rows.Scan(&p.Date, &p.Value); err != nil {
			return models.TimeSeries{}, fmt.Errorf("scan point: %w", err)
		}
		p.Date = models.Day(p.Date)
		ts.Points = append(ts.Points, p)
	}
	if err := rows.Err(); err != nil {
		return models.TimeSeries{}, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse series ok",
		applogger.String("key", key.String()),
		applogger.Int("rows", len(ts.Points)),
		applogger.Duration("duration_ms", time.Since(start)))
	return ts, nil
}

func seriesQuery(table string, key models.SeriesKey, from, to time.Time) (string, []interface{}) {
	where := []string{"commodity = ?", "state = ?", "district = ?", "market = ?"}
	args := []interface{}{key.Commodity, key.State, key.District, key.Market}
	if !from.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, models.Day(from))
	}
	if !to.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, models.Day(to))
	}
	q := fmt.Sprintf(
		"SELECT date, toFloat64(modal_price) FROM %s FINAL WHERE %s ORDER BY date ASC",
		table, strings.Join(where, " AND "))
	return q, args
}

func (s *ClickHousePriceStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to the ClickHouse client.
func (s *ClickHousePriceStore) Close() error { return nil }

// chunks splits [0, n) into half-open spans of at most size.
func chunks(n, size int) [][2]int {
	if size <= 0 {
		size = n
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
