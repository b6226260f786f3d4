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

	// Permission check metrics
	PermissionChecksTotal *prometheus.CounterVec

	// Location resolver metrics
	LocationResolutionDuration *prometheus.HistogramVec
	LocationTreeCacheHits      prometheus.Counter
	LocationTreeCacheMisses    prometheus.Counter

	// Resource lock metrics
	LockAcquisitionsTotal *prometheus.CounterVec
	LockReleasesTotal     *prometheus.CounterVec
	LocksSweptTotal       prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accesscore_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accesscore_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accesscore_permission_checks_total",
				Help: "Total number of permission checks by outcome and reason",
			},
			[]string{"result", "reason"},
		),

		LocationResolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accesscore_location_resolution_duration_seconds",
				Help:    "Location access resolution duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		LocationTreeCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "accesscore_location_tree_cache_hits_total",
				Help: "Total number of tenant tree cache hits",
			},
		),
		LocationTreeCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "accesscore_location_tree_cache_misses_total",
				Help: "Total number of tenant tree cache misses",
			},
		),

		LockAcquisitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accesscore_lock_acquisitions_total",
				Help: "Total number of lock acquisition attempts by outcome",
			},
			[]string{"outcome"},
		),
		LockReleasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accesscore_lock_releases_total",
				Help: "Total number of lock releases by outcome",
			},
			[]string{"outcome"},
		),
		LocksSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "accesscore_locks_swept_total",
				Help: "Total number of expired locks removed by sweeps",
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "accesscore_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "accesscore_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.LocationResolutionDuration,
		m.LocationTreeCacheHits,
		m.LocationTreeCacheMisses,
		m.LockAcquisitionsTotal,
		m.LockReleasesTotal,
		m.LocksSweptTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// RecordPermissionCheck records one check outcome.
func (m *Metrics) RecordPermissionCheck(allowed bool, reason string) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.PermissionChecksTotal.WithLabelValues(result, reason).Inc()
}

// RecordLockAcquisition records one acquisition attempt outcome:
// "acquired", "extended", "conflict" or "error".
func (m *Metrics) RecordLockAcquisition(outcome string) {
	m.LockAcquisitionsTotal.WithLabelValues(outcome).Inc()
}

// RecordLockRelease records one release outcome: "released", "noop",
// "not_owner" or "error".
func (m *Metrics) RecordLockRelease(outcome string) {
	m.LockReleasesTotal.WithLabelValues(outcome).Inc()
}

// RecordLocksSwept adds the count of locks removed by an expiry sweep.
func (m *Metrics) RecordLocksSwept(count int) {
	if count > 0 {
		m.LocksSweptTotal.Add(float64(count))
	}
}

// ObserveResolution times one resolver operation.
func (m *Metrics) ObserveResolution(operation string, d time.Duration) {
	m.LocationResolutionDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture the status code
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
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
