// Package metrics provides Prometheus metrics for the ORM: driver statement
// counts and latencies, identity-cache effectiveness, and validation
// failures.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for a connection.
type Collector struct {
	// Driver metrics
	StatementsTotal   *prometheus.CounterVec
	StatementDuration *prometheus.HistogramVec
	StatementErrors   *prometheus.CounterVec

	// Identity cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Pipeline metrics
	ValidationFailures *prometheus.CounterVec
}

// New creates a collector registered on the default registerer.
func New() *Collector {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a collector registered on reg. Tests pass their own
// registry to avoid duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		StatementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strata",
				Name:      "statements_total",
				Help:      "Total number of driver statements executed",
			},
			[]string{"op", "model"},
		),
		StatementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "strata",
				Name:      "statement_duration_seconds",
				Help:      "Driver statement duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"op", "model"},
		),
		StatementErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strata",
				Name:      "statement_errors_total",
				Help:      "Total number of driver statement failures",
			},
			[]string{"op", "model"},
		),
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strata",
				Name:      "cache_hits_total",
				Help:      "Identity cache hits per model",
			},
			[]string{"model"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strata",
				Name:      "cache_misses_total",
				Help:      "Identity cache misses per model",
			},
			[]string{"model"},
		),
		ValidationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "strata",
				Name:      "validation_failures_total",
				Help:      "Saves rejected by a validator",
			},
			[]string{"model", "property"},
		),
	}
}
