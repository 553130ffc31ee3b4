package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_gateway"

// Metrics holds the Prometheus collectors for the fetch path.
type Metrics struct {
	CacheLookups     *prometheus.CounterVec   // labels: result={hit,miss}
	ProviderAttempts *prometheus.CounterVec   // labels: provider, outcome={success,error}
	ProviderDuration *prometheus.HistogramVec // labels: provider
	ChainExhausted   prometheus.Counter

	// Cache warmer.
	WarmRuns *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CacheLookups,
		m.ProviderAttempts,
		m.ProviderDuration,
		m.ChainExhausted,
		m.WarmRuns,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they need without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Weather cache lookups by result.",
		}, []string{"result"}),
		ProviderAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Upstream provider attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Upstream provider attempt duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}, []string{"provider"}),
		ChainExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_chain_exhausted_total",
			Help:      "Requests for which every provider in the chain failed.",
		}),
		WarmRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_warm_total",
			Help:      "Cache warm-up fetches by outcome.",
		}, []string{"outcome"}),
	}
}
