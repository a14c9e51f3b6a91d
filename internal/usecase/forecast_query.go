package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"CropCast/internal/domain/models"
	"CropCast/internal/domain/service"
	"CropCast/internal/service/cache"
	svcmetrics "CropCast/internal/service/metrics"
	"CropCast/internal/services/forecast"
	applogger "CropCast/pkg/logger"
)

// QueryService answers forecast and option queries against the loaded registry.
type QueryService struct {
	registry   service.ModelRegistry
	forecaster *forecast.Forecaster
	cache      cache.BytesCache
	cacheTTL   time.Duration
	metrics    *svcmetrics.Forecast
	log        *applogger.Logger
}

type QueryOption func(*QueryService)

// WithForecastCache caches forecasts per registry generation for ttl.
func WithForecastCache(c cache.BytesCache, ttl time.Duration) QueryOption {
	return func(s *QueryService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithQueryMetrics(m *svcmetrics.Forecast) QueryOption {
	return func(s *QueryService) { s.metrics = m }
}

func WithQueryLogger(l *applogger.Logger) QueryOption {
	return func(s *QueryService) {
		if l != nil {
			s.log = l
		}
	}
}

func NewQueryService(reg service.ModelRegistry, f *forecast.Forecaster, opts ...QueryOption) *QueryService {
	s := &QueryService{registry: reg, forecaster: f, log: applogger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Predict validates key and horizon, then forecasts days past the model's cutoff.
func (s *QueryService) Predict(ctx context.Context, key models.SeriesKey, days int) ([]models.ForecastPoint, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveLatency("predict", time.Since(start).Seconds()) }()

	key = key.Normalize()
	if missing := key.Missing(); len(missing) > 0 {
		s.metrics.ObserveError("predict", "missing_parameter")
		return nil, &models.MissingParameterError{Params: missing}
	}
	if days <= 0 {
		s.metrics.ObserveError("predict", "invalid_horizon")
		return nil, &models.InvalidHorizonError{Days: days}
	}
	if max := s.forecaster.MaxHorizon(); days > max {
		s.metrics.ObserveError("predict", "invalid_horizon")
		return nil, &models.InvalidHorizonError{Days: days, Max: max}
	}

	// Entries are scoped to the registry generation; a reload orphans them.
	ck := cacheKey(s.registry.Generation(), key, days)
	if pts, ok := s.cached(ctx, ck); ok {
		return pts, nil
	}

	p, err := s.registry.Get(key)
	if err != nil {
		s.metrics.ObserveError("predict", "not_found")
		return nil, err
	}
	pts, err := s.forecaster.Forecast(p, days)
	if err != nil {
		s.metrics.ObserveError("predict", "forecast")
		return nil, err
	}
	s.store(ctx, ck, pts)
	return pts, nil
}

// Options lists the distinct key components of every loaded model.
func (s *QueryService) Options() models.Options {
	return models.Options{
		Commodities: nonNil(s.registry.ListDimensionValues(models.AxisCommodity)),
		States:      nonNil(s.registry.ListDimensionValues(models.AxisState)),
		Districts:   nonNil(s.registry.ListDimensionValues(models.AxisDistrict)),
		Markets:     nonNil(s.registry.ListDimensionValues(models.AxisMarket)),
	}
}

// Dimension lists the distinct values along a single axis.
func (s *QueryService) Dimension(axis models.Axis) []string {
	return nonNil(s.registry.ListDimensionValues(axis))
}

// ModelCount is the number of loaded models.
func (s *QueryService) ModelCount() int { return s.registry.Len() }

func (s *QueryService) cached(ctx context.Context, key string) ([]models.ForecastPoint, bool) {
	if s.cache == nil {
		return nil, false
	}
	b, ok, err := s.cache.GetBytes(ctx, key)
	if err != nil {
		s.log.Warn("forecast cache read", applogger.String("key", key), applogger.Error(err))
	}
	if !ok {
		s.metrics.ObserveCache(false)
		return nil, false
	}
	var pts []models.ForecastPoint
	if err := json.Unmarshal(b, &pts); err != nil {
		s.metrics.ObserveCache(false)
		return nil, false
	}
	s.metrics.ObserveCache(true)
	return pts, true
}

func (s *QueryService) store(ctx context.Context, key string, pts []models.ForecastPoint) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(pts)
	if err != nil {
		return
	}
	if err := s.cache.SetBytes(ctx, key, b, s.cacheTTL); err != nil {
		s.log.Warn("forecast cache write", applogger.String("key", key), applogger.Error(err))
	}
}

func cacheKey(gen uint64, k models.SeriesKey, days int) string {
	parts := []string{k.Commodity, k.State, k.District, k.Market}
	return fmt.Sprintf("forecast:%d:%s:%d", gen, strings.Join(parts, "|"), days)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
