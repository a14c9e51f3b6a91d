package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"CropCast/internal/domain/repository"
	"CropCast/internal/handler/api"
	internalrepo "CropCast/internal/repository"
	"CropCast/internal/service/agmarknet"
	"CropCast/internal/service/cache"
	svcmetrics "CropCast/internal/service/metrics"
	"CropCast/internal/service/ratelimit"
	"CropCast/internal/service/registry"
	"CropCast/internal/services/cleaning"
	"CropCast/internal/services/forecast"
	"CropCast/internal/services/normalize"
	"CropCast/internal/usecase"
	pkgch "CropCast/pkg/clickhouse"
	"CropCast/pkg/config"
	xhttp "CropCast/pkg/http"
	pkgkafka "CropCast/pkg/kafka"
	applogger "CropCast/pkg/logger"
	"CropCast/pkg/metrics"
	"CropCast/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger builds the process logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvidePrometheus creates the registry every collector in the process registers on.
func ProvidePrometheus() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

func ProvideForecastMetrics(reg *prometheus.Registry) *svcmetrics.Forecast {
	return svcmetrics.NewForecast(reg)
}

func ProvideNaming(cfg *config.Config) forecast.Naming {
	return forecast.Naming{Prefix: cfg.Models.Prefix, Suffix: cfg.Models.Suffix}
}

// ProvideRegistry loads every artifact under the model directory. The
// directory is created first so a fresh deployment serves an empty set.
func ProvideRegistry(ctx context.Context, cfg *config.Config, naming forecast.Naming, logger *applogger.Logger, m repository.Metrics) (*registry.Registry, error) {
	if err := os.MkdirAll(cfg.Models.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("model dir: %w", err)
	}
	reg, err := registry.New(ctx, os.DirFS(cfg.Models.Dir),
		registry.WithNaming(naming),
		registry.WithLogger(logger.With(applogger.String("component", "registry"))),
		registry.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("model registry: %w", err)
	}
	return reg, nil
}

func ProvideForecaster(cfg *config.Config) *forecast.Forecaster {
	return forecast.NewForecaster(cfg.Forecast.MaxHorizon)
}

// ProvideForecastCache returns the in-process cache, fronting Redis when enabled.
func ProvideForecastCache(ctx context.Context, cfg *config.Config, logger *applogger.Logger) (cache.BytesCache, func(), error) {
	l1 := cache.NewTTLCache(10000)
	if !cfg.Cache.Redis.Enabled {
		return l1, func() {}, nil
	}
	rc := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   "cropcast:",
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	cleanup := func() {
		if err := rc.Close(); err != nil {
			logger.Warn("redis close failed", applogger.Error(err))
		}
	}
	return cache.NewLayered(l1, rc, time.Minute), cleanup, nil
}

func ProvideQueryService(
	cfg *config.Config,
	reg *registry.Registry,
	f *forecast.Forecaster,
	c cache.BytesCache,
	m *svcmetrics.Forecast,
	logger *applogger.Logger,
) *usecase.QueryService {
	return usecase.NewQueryService(reg, f,
		usecase.WithForecastCache(c, cfg.Forecast.CacheTTL),
		usecase.WithQueryMetrics(m),
		usecase.WithQueryLogger(logger.With(applogger.String("component", "query"))),
	)
}

// ProvideLimiter returns nil when rate limiting is disabled.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.Server.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
}

func ProvideForecastHandler(
	cfg *config.Config,
	logger *applogger.Logger,
	query *usecase.QueryService,
	reg *registry.Registry,
	limiter *ratelimit.Limiter,
) *api.ForecastEchoHandler {
	return api.NewForecastEchoHandler(logger, query,
		api.WithDefaultDays(cfg.Forecast.DefaultDays),
		api.WithReloader(reg),
		api.WithRateLimit(limiter),
	)
}

func ProvideHTTPServer(cfg *config.Config, h *api.ForecastEchoHandler, logger *applogger.Logger, reg *prometheus.Registry) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(!cfg.Server.DisableCORS),
		xhttp.WithLogger(logger),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
	}
	if !cfg.Metrics.Disabled {
		opts = append(opts, xhttp.WithMetrics(reg, reg, cfg.Metrics.Path))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideWatcher returns nil unless hot reload is enabled.
func ProvideWatcher(cfg *config.Config, reg *registry.Registry, naming forecast.Naming, logger *applogger.Logger) (*registry.Watcher, func(), error) {
	if !cfg.Models.Watch {
		return nil, func() {}, nil
	}
	w, err := registry.NewWatcher(reg, cfg.Models.Dir,
		registry.WithDebounce(cfg.Models.WatchDebounce),
		registry.WithFilter(naming.Match),
		registry.WithWatchLogger(logger.With(applogger.String("component", "watcher"))),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("model watcher: %w", err)
	}
	return w, func() { _ = w.Close() }, nil
}

// ProvideApp creates the serving process.
func ProvideApp(cfg *config.Config, logger *applogger.Logger, srv *xhttp.Server, w *registry.Watcher) *server.App {
	if w == nil {
		return server.New(logger, srv, cfg.Server.ShutdownTimeout)
	}
	return server.New(logger, srv, cfg.Server.ShutdownTimeout, w)
}

// ProvideClickHouseClient returns nil when no host is configured.
func ProvideClickHouseClient(ctx context.Context, cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.ClickHouse.Host == "" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, true),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvidePriceStore creates the price table when a ClickHouse client exists.
// Without one the store is a nil interface.
func ProvidePriceStore(ctx context.Context, ch *pkgch.Client, logger *applogger.Logger) (repository.PriceStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHousePriceStore(ch,
		internalrepo.WithStoreLogger(logger.With(applogger.String("component", "price_store"))),
	)
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.Init(initCtx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer returns nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() {}, nil
}

// ProvidePublisher is a nil interface when there is no producer.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic, cfg.Kafka.ReportTopic)
}

// ProvideRecordProcessor routes cleaned records to backend.type. It owns the
// publisher and store and closes them.
func ProvideRecordProcessor(cfg *config.Config, pub repository.Publisher, store repository.PriceStore, m repository.Metrics) (*usecase.RecordProcessor, func(), error) {
	p, err := usecase.NewRecordProcessor(pub, store, m, cfg.Backend.Type, cfg.Backend.BatchSize, cfg.Backend.BatchTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("record processor: %w", err)
	}
	return p, p.Close, nil
}

// ProvideNormalizer resolves the configured dialect.
func ProvideNormalizer(cfg *config.Config, logger *applogger.Logger) (*normalize.Normalizer, error) {
	d, err := normalize.Resolve(cfg.Cleaning.Dialect, cfg.Cleaning.DialectFile)
	if err != nil {
		return nil, fmt.Errorf("dialect: %w", err)
	}
	return normalize.New(d, normalize.WithLogger(logger.With(applogger.String("component", "normalizer")))), nil
}

func ProvideCleaner(cfg *config.Config, n *normalize.Normalizer, logger *applogger.Logger, m repository.Metrics) *cleaning.Cleaner {
	c := cfg.Cleaning
	return cleaning.New(n.Dialect().Layout(),
		cleaning.WithOptions(cleaning.Options{
			SkipFill:       c.SkipFill,
			SkipDedup:      c.SkipDedup,
			SkipSort:       c.SkipSort,
			SkipOutliers:   c.SkipOutliers,
			DropOutliers:   c.DropOutliers,
			DropPriceOrder: c.DropPriceOrder,
			IQRFactor:      c.IQRFactor,
		}),
		cleaning.WithLogger(logger.With(applogger.String("component", "cleaner"))),
		cleaning.WithMetrics(m),
	)
}

func ProvidePreparer(n *normalize.Normalizer, c *cleaning.Cleaner, sink *usecase.RecordProcessor, logger *applogger.Logger) *usecase.Preparer {
	return usecase.NewPreparer(n, c, sink, logger)
}

func ProvideFitter(cfg *config.Config) *forecast.Fitter {
	t := cfg.Training
	return forecast.NewFitter(forecast.WithFitOptions(forecast.FitOptions{
		Mode:           t.SeasonalityMode,
		IntervalWidth:  t.IntervalWidth,
		Changepoints:   t.Changepoints,
		Regularization: t.Regularization,
		MinPoints:      t.MinPoints,
	}))
}

func ProvideTrainer(cfg *config.Config, f *forecast.Fitter, naming forecast.Naming, m repository.Metrics, logger *applogger.Logger) *usecase.Trainer {
	return usecase.NewTrainer(f, cfg.Models.Dir,
		usecase.WithTrainWorkers(cfg.Training.Workers),
		usecase.WithTrainNaming(naming),
		usecase.WithTrainMetrics(m),
		usecase.WithTrainLogger(logger.With(applogger.String("component", "trainer"))),
	)
}

// ProvideCollector builds the open-data client. It fails without an API key.
func ProvideCollector(cfg *config.Config, logger *applogger.Logger) (*agmarknet.Client, error) {
	c := cfg.Collector
	return agmarknet.New(agmarknet.Config{
		BaseURL:    c.BaseURL,
		APIKey:     c.APIKey,
		PageSize:   c.PageSize,
		MaxRecords: c.MaxRecords,
		RPS:        c.RPS,
		Timeout:    c.Timeout,
		Commodity:  c.Commodity,
		State:      c.State,
	}, agmarknet.WithLogger(logger.With(applogger.String("component", "collector"))))
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config, logger *applogger.Logger, reg *prometheus.Registry) (*pkgkafka.Consumer, error) {
	k := cfg.Kafka
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(k.Brokers),
		pkgkafka.WithConsumerGroupID(k.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(k.Consumer.Workers),
		pkgkafka.WithConsumerRetry(k.Consumer.RetryMax, 50*time.Millisecond, 2*time.Second),
		pkgkafka.WithConsumerDLQ(k.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(k.Consumer.MinBytes, k.Consumer.MaxBytes, k.Consumer.MaxWait),
		pkgkafka.WithConsumerRegisterer(reg),
		pkgkafka.WithConsumerLogger(logger.With(applogger.String("component", "consumer"))),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideKafkaRecordsHandler(cfg *config.Config, store repository.PriceStore, m repository.Metrics) *usecase.KafkaRecordsHandler {
	return usecase.NewKafkaRecordsHandler(cfg.Kafka.Topic, store, m)
}
