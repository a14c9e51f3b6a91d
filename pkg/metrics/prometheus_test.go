package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CountsPerLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordDropped("bad_date", 2)
	r.RecordDropped("bad_date", 1)
	r.RecordModels(5, 1)
	r.RecordTraining("ok")

	assert.Equal(t, 3.0, testutil.ToFloat64(r.dropped.WithLabelValues("bad_date")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.modelsLoaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.modelsSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.training.WithLabelValues("ok")))
}

func TestRecorder_SeparateRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
