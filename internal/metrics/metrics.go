// Package metrics provides Prometheus metrics for enrichment runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup outcomes
const (
	LookupCached  = "cached"
	LookupFetched = "fetched"
	LookupMissing = "missing"
	LookupFailed  = "failed"
)

// Stage statuses
const (
	StageOK      = "ok"
	StageSkipped = "skipped"
	StageFailed  = "failed"
)

// Metrics holds the collectors of one process. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	StageDuration *prometheus.HistogramVec
	Lookups       *prometheus.CounterVec
	DatasetCache  *prometheus.CounterVec
	Runs          *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	RowsEnriched  prometheus.Counter
}

// New registers the collectors on a fresh registry
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "grant_insights"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each enrichment stage",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage", "status"},
		),
		Lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookups_total",
				Help:      "External reference lookups by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		DatasetCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dataset_cache_requests_total",
				Help:      "Dataset cache reads by result",
			},
			[]string{"result"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Enrichment runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of enrichment runs that executed the stages",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		RowsEnriched: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_enriched_total",
				Help:      "Rows written to the dataset cache",
			},
		),
	}
}

// Registry returns the registry the collectors live in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

func (m *Metrics) Lookup(category, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Lookups.WithLabelValues(category, outcome).Add(float64(n))
}

// CacheResult records a dataset cache hit or miss
func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.DatasetCache.WithLabelValues(result).Inc()
}

// RunFinished records the outcome of an enrichment run. d and rows are only
// recorded for runs that executed the stages.
func (m *Metrics) RunFinished(outcome string, d time.Duration, rows int) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.RunDuration.Observe(d.Seconds())
	}
	if rows > 0 {
		m.RowsEnriched.Add(float64(rows))
	}
}

// Serve runs a metrics HTTP server on addr until it fails
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}
