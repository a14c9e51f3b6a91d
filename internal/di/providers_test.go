package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"CropCast/internal/service/cache"
	"CropCast/pkg/config"
	applogger "CropCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvideRegistry_CreatesModelDir(t *testing.T) {
	cfg := config.Default()
	cfg.Models.Dir = filepath.Join(t.TempDir(), "nested", "models")
	reg := ProvidePrometheus()

	r, err := ProvideRegistry(context.Background(), cfg, ProvideNaming(cfg), applogger.Nop(), ProvideMetrics(reg))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())

	st, err := os.Stat(cfg.Models.Dir)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestProvideForecastCache_InProcessByDefault(t *testing.T) {
	c, cleanup, err := ProvideForecastCache(context.Background(), config.Default(), applogger.Nop())
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &cache.TTLCache{}, c)
}

func TestOptionalProviders_NilWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	reg := ProvidePrometheus()

	assert.Nil(t, ProvideLimiter(cfg))

	ch, cleanup, err := ProvideClickHouseClient(context.Background(), cfg)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, ch)

	store, err := ProvidePriceStore(context.Background(), ch, applogger.Nop())
	require.NoError(t, err)
	assert.Nil(t, store)

	p, cleanup, err := ProvideKafkaProducer(cfg, reg)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, p)
	assert.Nil(t, ProvidePublisher(cfg, p))

	w, cleanup, err := ProvideWatcher(cfg, nil, ProvideNaming(cfg), applogger.Nop())
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, w)
}

func TestInitializePipeline_Defaults(t *testing.T) {
	cfg := config.Default()
	cfg.Models.Dir = t.TempDir()

	p, cleanup, err := InitializePipeline(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "none", p.Sink.Backend())
	assert.Nil(t, p.Store)
	assert.NotNil(t, p.Preparer)
	assert.NotNil(t, p.Trainer)
}

func TestInitializePipeline_UnknownDialect(t *testing.T) {
	cfg := config.Default()
	cfg.Cleaning.Dialect = "nope"

	_, _, err := InitializePipeline(context.Background(), cfg)
	assert.Error(t, err)
}
