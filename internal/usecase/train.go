package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"CropCast/internal/domain/models"
	drepo "CropCast/internal/domain/repository"
	"CropCast/internal/services/forecast"
	applogger "CropCast/pkg/logger"
	pkgmetrics "CropCast/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// ErrArtifactCollision marks a series whose artifact name belongs to another series.
var ErrArtifactCollision = errors.New("artifact name collision")

// TrainResult summarises one training run.
type TrainResult struct {
	Saved   []string
	Skipped map[models.SeriesKey]error
	Took    time.Duration
}

// Trainer fits one model per series and writes the artifacts into a directory.
type Trainer struct {
	fitter  *forecast.Fitter
	dir     string
	naming  forecast.Naming
	workers int
	metrics drepo.Metrics
	log     *applogger.Logger
}

type TrainerOption func(*Trainer)

func WithTrainWorkers(n int) TrainerOption {
	return func(t *Trainer) {
		if n > 0 {
			t.workers = n
		}
	}
}

func WithTrainNaming(n forecast.Naming) TrainerOption {
	return func(t *Trainer) { t.naming = n }
}

func WithTrainMetrics(m drepo.Metrics) TrainerOption {
	return func(t *Trainer) {
		if m != nil {
			t.metrics = m
		}
	}
}

func WithTrainLogger(l *applogger.Logger) TrainerOption {
	return func(t *Trainer) {
		if l != nil {
			t.log = l
		}
	}
}

func NewTrainer(f *forecast.Fitter, dir string, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		fitter:  f,
		dir:     dir,
		naming:  forecast.DefaultNaming(),
		workers: 4,
		metrics: pkgmetrics.Nop{},
		log:     applogger.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train fits every series concurrently. Series that cannot be fitted are
// skipped and reported; a failure to write an artifact aborts the run.
func (t *Trainer) Train(ctx context.Context, series []models.TimeSeries) (*TrainResult, error) {
	start := time.Now()
	res := &TrainResult{Skipped: make(map[models.SeriesKey]error)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for _, s := range t.plan(series, res) {
		s := s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s = tidySeries(s)
			m, err := t.fitter.FitModel(gctx, s)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				t.skip(&mu, res, s.Key, err)
				return nil
			}
			path, err := forecast.Save(t.dir, t.naming, m)
			if err != nil {
				t.metrics.RecordTraining("error")
				return fmt.Errorf("save %s: %w", s.Key, err)
			}
			t.metrics.RecordTraining("ok")
			t.log.Debug("model saved",
				applogger.String("key", s.Key.String()),
				applogger.String("path", path),
				applogger.Int("points", len(s.Points)))

			mu.Lock()
			res.Saved = append(res.Saved, path)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	sort.Strings(res.Saved)
	res.Took = time.Since(start)
	t.metrics.RecordLatency("train", res.Took.Seconds())

	t.log.Info("training finished",
		applogger.Int("series", len(series)),
		applogger.Int("saved", len(res.Saved)),
		applogger.Int("skipped", len(res.Skipped)),
		applogger.Duration("took_ms", res.Took))
	return res, err
}

// plan normalizes every key and keeps the series whose artifact name decodes
// back to the same key. Series repeating a key are merged. When two keys share
// a name the first one in input order keeps it and the rest are skipped.
func (t *Trainer) plan(series []models.TimeSeries, res *TrainResult) []models.TimeSeries {
	var mu sync.Mutex
	owners := make(map[string]models.SeriesKey, len(series))
	index := make(map[models.SeriesKey]int, len(series))
	out := make([]models.TimeSeries, 0, len(series))
	for _, s := range series {
		s.Key = s.Key.Normalize()
		if missing := s.Key.Missing(); len(missing) > 0 {
			t.skip(&mu, res, s.Key, &models.MissingParameterError{Params: missing})
			continue
		}
		name, err := t.naming.EncodeChecked(s.Key)
		if err != nil {
			t.skip(&mu, res, s.Key, err)
			continue
		}
		if owner, ok := owners[name]; ok {
			if owner == s.Key {
				i := index[s.Key]
				out[i].Points = append(append([]models.SeriesPoint(nil), out[i].Points...), s.Points...)
				continue
			}
			t.skip(&mu, res, s.Key, fmt.Errorf("%w: %q already holds %s", ErrArtifactCollision, name, owner))
			continue
		}
		owners[name] = s.Key
		index[s.Key] = len(out)
		out = append(out, s)
	}
	return out
}

// TrainFromStore reads every series in [from, to] from store and trains it.
func (t *Trainer) TrainFromStore(ctx context.Context, store drepo.PriceStore, from, to time.Time) (*TrainResult, error) {
	keys, err := store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	series := make([]models.TimeSeries, 0, len(keys))
	for _, k := range keys {
		s, err := store.Series(ctx, k, from, to)
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return t.Train(ctx, series)
}

func (t *Trainer) skip(mu *sync.Mutex, res *TrainResult, key models.SeriesKey, err error) {
	t.metrics.RecordTraining("skipped")
	t.log.Warn("skipping series", applogger.String("key", key.String()), applogger.Error(err))
	mu.Lock()
	res.Skipped[key] = err
	mu.Unlock()
}

// tidySeries sorts points by date and keeps the last point of each date, for
// series built from records that were not sorted or deduplicated.
func tidySeries(s models.TimeSeries) models.TimeSeries {
	pts := make([]models.SeriesPoint, len(s.Points))
	copy(pts, s.Points)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })

	out := pts[:0]
	for _, p := range pts {
		p.Date = models.Day(p.Date)
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return models.TimeSeries{Key: s.Key, Points: out}
}
