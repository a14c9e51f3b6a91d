package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	rows          *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	modelsLoaded  prometheus.Gauge
	modelsSkipped prometheus.Gauge
	training      *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a recorder registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		rows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cropcast_rows_total",
				Help: "Rows seen per pipeline stage",
			},
			[]string{"stage"},
		),
		dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cropcast_rows_dropped_total",
				Help: "Rows dropped by the cleaner per reason",
			},
			[]string{"reason"},
		),
		modelsLoaded: f.NewGauge(prometheus.GaugeOpts{
			Name: "cropcast_models_loaded",
			Help: "Models held by the registry after the last load",
		}),
		modelsSkipped: f.NewGauge(prometheus.GaugeOpts{
			Name: "cropcast_models_skipped",
			Help: "Artifacts skipped during the last registry load",
		}),
		training: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cropcast_training_total",
				Help: "Model training outcomes",
			},
			[]string{"result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cropcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cropcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordRows(stage string, n int) {
	r.rows.WithLabelValues(stage).Add(float64(n))
}

func (r *Recorder) RecordDropped(reason string, n int) {
	r.dropped.WithLabelValues(reason).Add(float64(n))
}

// RecordModels sets the registry gauges.
func (r *Recorder) RecordModels(loaded, skipped int) {
	r.modelsLoaded.Set(float64(loaded))
	r.modelsSkipped.Set(float64(skipped))
}

func (r *Recorder) RecordTraining(result string) {
	r.training.WithLabelValues(result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordRows(string, int)        {}
func (Nop) RecordDropped(string, int)     {}
func (Nop) RecordModels(int, int)         {}
func (Nop) RecordTraining(string)         {}
func (Nop) RecordError(string)            {}
func (Nop) RecordLatency(string, float64) {}
