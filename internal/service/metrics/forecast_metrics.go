package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Forecast holds per-endpoint serving metrics.
type Forecast struct {
	Latency   *prometheus.HistogramVec
	Errors    *prometheus.CounterVec
	CacheHits *prometheus.CounterVec
}

func NewForecast(reg prometheus.Registerer) *Forecast {
	f := promauto.With(reg)
	return &Forecast{
		Latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cropcast",
				Subsystem: "forecast",
				Name:      "latency_seconds",
				Help:      "Latency of forecast endpoints",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		Errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cropcast",
				Subsystem: "forecast",
				Name:      "errors_total",
				Help:      "Errors by forecast endpoint and kind",
			},
			[]string{"endpoint", "kind"},
		),
		CacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cropcast",
				Subsystem: "forecast",
				Name:      "cache_total",
				Help:      "Forecast cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveError counts one failed request. Nil receivers are ignored.
func (m *Forecast) ObserveError(endpoint, kind string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(endpoint, kind).Inc()
}

func (m *Forecast) ObserveLatency(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.Latency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *Forecast) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues("hit").Inc()
		return
	}
	m.CacheHits.WithLabelValues("miss").Inc()
}
