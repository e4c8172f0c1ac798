package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal   *prometheus.CounterVec
	AuthzDecisionDuration prometheus.Histogram
	AuthzStoreLookups     prometheus.Counter

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Roster metrics
	MembershipWritesTotal *prometheus.CounterVec

	// Backfill metrics
	BackfillRunsTotal     *prometheus.CounterVec
	BackfillWritesTotal   *prometheus.CounterVec
	BackfillSkippedTotal  *prometheus.CounterVec
	BackfillErrorsTotal   *prometheus.CounterVec
	BackfillRunDuration   *prometheus.HistogramVec
	ConsistencyFlagsTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rosterd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rosterd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rosterd_authz_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"outcome", "source"},
		),
		AuthzDecisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rosterd_authz_decision_duration_seconds",
				Help:    "Authorization decision duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
		),
		AuthzStoreLookups: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rosterd_authz_store_lookups_total",
				Help: "Total number of store reads performed during authorization",
			},
		),

		StoreOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rosterd_store_operations_total",
				Help: "Total number of principal store operations",
			},
			[]string{"operation", "status"},
		),
		StoreOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rosterd_store_operation_duration_seconds",
				Help:    "Principal store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rosterd_cache_hits_total",
				Help: "Total number of principal cache hits",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rosterd_cache_misses_total",
				Help: "Total number of principal cache misses",
			},
			[]string{"tier"},
		),

		MembershipWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rosterd_membership_writes_total",
				Help: "Total number of membership mutations",
			},
			[]string{"operation", "role"},
		),

		BackfillRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rosterd_backfill_runs_total",
				Help: "Total number of backfill runs",
			},
			[]string{"heuristic", "mode"},
		),
		BackfillWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rosterd_backfill_writes_total",
				Help: "Total number of memberships written by backfill",
			},
			[]string{"heuristic", "role"},
		),
		BackfillSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rosterd_backfill_skipped_total",
				Help: "Total number of principals skipped by backfill",
			},
			[]string{"heuristic", "reason"},
		),
		BackfillErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rosterd_backfill_errors_total",
				Help: "Total number of per-record backfill errors",
			},
			[]string{"heuristic"},
		),
		BackfillRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rosterd_backfill_run_duration_seconds",
				Help:    "Backfill run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"heuristic"},
		),
		ConsistencyFlagsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rosterd_consistency_flags_total",
				Help: "Total number of principals flagged by the consistency audit",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.AuthzDecisionDuration,
		m.AuthzStoreLookups,
		m.StoreOperationsTotal,
		m.StoreOperationDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.MembershipWritesTotal,
		m.BackfillRunsTotal,
		m.BackfillWritesTotal,
		m.BackfillSkippedTotal,
		m.BackfillErrorsTotal,
		m.BackfillRunDuration,
		m.ConsistencyFlagsTotal,
	)

	return m
}

// InitMetrics creates metrics on a fresh registry and returns both.
func InitMetrics() (*Metrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	return NewMetrics(registry), registry
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// MetricsHandler returns the handler serving the /metrics endpoint
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
