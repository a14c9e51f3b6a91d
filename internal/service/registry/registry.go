package registry

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"CropCast/internal/domain/models"
	"CropCast/internal/domain/repository"
	"CropCast/internal/domain/service"
	"CropCast/internal/services/forecast"
	applogger "CropCast/pkg/logger"
)

// snapshot is one immutable model set. Readers never see a partial load.
type snapshot struct {
	models map[models.SeriesKey]*forecast.Model
	keys   []models.SeriesKey
	dims   map[models.Axis][]string
	gen    uint64
}

// LoadResult summarises one registry build.
type LoadResult struct {
	Loaded  int
	Skipped int
	Errors  []error
	Took    time.Duration
}

// Registry maps series keys to loaded forecast models.
type Registry struct {
	fsys    fs.FS
	naming  forecast.Naming
	logger  *applogger.Logger
	metrics repository.Metrics

	mu   sync.Mutex // serialises reloads
	snap atomic.Pointer[snapshot]
}

var _ service.ModelRegistry = (*Registry)(nil)

type Option func(*Registry)

func WithNaming(n forecast.Naming) Option {
	return func(r *Registry) { r.naming = n }
}

func WithLogger(l *applogger.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func WithMetrics(m repository.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// New scans fsys and builds the registry. Per-file failures are logged and
// skipped; only an unreadable fsys is an error.
func New(ctx context.Context, fsys fs.FS, opts ...Option) (*Registry, error) {
	r := &Registry{
		fsys:   fsys,
		naming: forecast.DefaultNaming(),
		logger: applogger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.snap.Store(&snapshot{models: map[models.SeriesKey]*forecast.Model{}, dims: map[models.Axis][]string{}})
	if _, err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload rebuilds the model set and swaps it in atomically. On error the
// previous set stays in place.
func (r *Registry) Reload(ctx context.Context) (LoadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	entries, err := fs.ReadDir(r.fsys, ".")
	if err != nil {
		return LoadResult{}, fmt.Errorf("read model dir: %w", err)
	}

	var res LoadResult
	loaded := make(map[models.SeriesKey]*forecast.Model)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name := e.Name()
		if e.IsDir() || !r.naming.Match(name) {
			continue
		}
		key, err := r.naming.Parse(name)
		if err != nil {
			r.skip(&res, name, err)
			continue
		}
		m, err := forecast.Load(r.fsys, name)
		if err != nil {
			r.skip(&res, name, err)
			continue
		}
		if _, dup := loaded[key]; dup {
			r.logger.Warn("duplicate model key, keeping later artifact",
				applogger.String("key", key.String()),
				applogger.String("file", name),
			)
		}
		loaded[key] = m.WithKey(key)
	}
	res.Loaded = len(loaded)
	res.Took = time.Since(start)

	next := build(loaded, r.snap.Load().gen+1)
	r.snap.Store(next)

	r.logger.Info("model registry loaded",
		applogger.Int("loaded", res.Loaded),
		applogger.Int("skipped", res.Skipped),
		applogger.Int("generation", int(next.gen)),
		applogger.Duration("took_ms", res.Took),
	)
	if r.metrics != nil {
		r.metrics.RecordModels(res.Loaded, res.Skipped)
		r.metrics.RecordLatency("registry_load", res.Took.Seconds())
	}
	return res, nil
}

func (r *Registry) skip(res *LoadResult, name string, err error) {
	res.Skipped++
	res.Errors = append(res.Errors, &models.ArtifactLoadError{Name: name, Err: err})
	r.logger.Warn("skipping model artifact", applogger.String("file", name), applogger.Error(err))
	if r.metrics != nil {
		r.metrics.RecordError("artifact_load")
	}
}

func build(loaded map[models.SeriesKey]*forecast.Model, gen uint64) *snapshot {
	s := &snapshot{models: loaded, gen: gen, dims: make(map[models.Axis][]string, 4)}
	s.keys = make([]models.SeriesKey, 0, len(loaded))
	for k := range loaded {
		s.keys = append(s.keys, k)
	}
	sort.Slice(s.keys, func(i, j int) bool { return s.keys[i].Less(s.keys[j]) })

	for _, axis := range []models.Axis{models.AxisCommodity, models.AxisState, models.AxisDistrict, models.AxisMarket} {
		seen := make(map[string]struct{})
		vals := []string{}
		for _, k := range s.keys {
			v := k.Component(axis)
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			vals = append(vals, v)
		}
		sort.Strings(vals)
		s.dims[axis] = vals
	}
	return s
}

// Get returns the model of key or a NotFoundError.
func (r *Registry) Get(key models.SeriesKey) (service.Predictor, error) {
	m, ok := r.snap.Load().models[key]
	if !ok {
		return nil, &models.NotFoundError{Key: key}
	}
	return m, nil
}

// AllKeys returns every loaded key in sorted order.
func (r *Registry) AllKeys() []models.SeriesKey {
	return append([]models.SeriesKey(nil), r.snap.Load().keys...)
}

// ListDimensionValues returns the sorted distinct values along axis.
func (r *Registry) ListDimensionValues(axis models.Axis) []string {
	return append([]string{}, r.snap.Load().dims[axis]...)
}

func (r *Registry) Generation() uint64 { return r.snap.Load().gen }

func (r *Registry) Len() int { return len(r.snap.Load().models) }
