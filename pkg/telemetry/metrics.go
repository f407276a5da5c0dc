package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the exporter. A disabled
// configuration yields a no-op instance so callers never nil-check.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	// Catalog metrics
	catalogQueries *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec

	// Export metrics
	backendsExported    *prometheus.CounterVec
	duplicatesDiscarded prometheus.Counter
	parseAnomalies      prometheus.Counter
	policyExclusions    *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of export runs started",
		}),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of export runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of export runs in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),

		catalogQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_queries_total",
				Help:      "Total number of metric catalog queries",
			},
			[]string{"operation", "outcome"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "catalog_query_duration_seconds",
				Help:      "Duration of metric catalog queries in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		backendsExported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backends_exported_total",
				Help:      "Total number of backend rows written",
			},
			[]string{"application"},
		),
		duplicatesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_discarded_total",
			Help:      "Total number of backends discarded by deduplication",
		}),
		parseAnomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_anomalies_total",
			Help:      "Total number of backend names that did not match the call grammar",
		}),
		policyExclusions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_exclusions_total",
				Help:      "Total number of backend rows excluded by policy",
			},
			[]string{"policy"},
		),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.catalogQueries,
		m.queryDuration,
		m.backendsExported,
		m.duplicatesDiscarded,
		m.parseAnomalies,
		m.policyExclusions,
	)

	return m
}

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted() {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordCatalogQuery records one catalog query with its outcome.
func (m *Metrics) RecordCatalogQuery(operation, outcome string, duration time.Duration) {
	if m.catalogQueries == nil {
		return
	}
	m.catalogQueries.WithLabelValues(operation, outcome).Inc()
	m.queryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBackendExported counts one written row.
func (m *Metrics) RecordBackendExported(application string) {
	if m.backendsExported == nil {
		return
	}
	m.backendsExported.WithLabelValues(application).Inc()
}

// RecordDuplicateDiscarded counts one deduplicated backend.
func (m *Metrics) RecordDuplicateDiscarded() {
	if m.duplicatesDiscarded == nil {
		return
	}
	m.duplicatesDiscarded.Inc()
}

// RecordParseAnomaly counts one malformed backend call string.
func (m *Metrics) RecordParseAnomaly() {
	if m.parseAnomalies == nil {
		return
	}
	m.parseAnomalies.Inc()
}

// RecordPolicyExclusion counts one row dropped by a policy.
func (m *Metrics) RecordPolicyExclusion(policy string) {
	if m.policyExclusions == nil {
		return
	}
	m.policyExclusions.WithLabelValues(policy).Inc()
}

// StartServer starts the metrics HTTP endpoint. Used by watch mode where the
// process lives long enough to be scraped.
func (m *Metrics) StartServer() error {
	if m.registry == nil {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	m.server = &http.Server{
		Addr:         m.config.ListenAddress,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		_ = m.server.ListenAndServe()
	}()

	return nil
}

// StopServer shuts down the metrics HTTP endpoint.
func (m *Metrics) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

// Registry exposes the underlying registry for testing.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
