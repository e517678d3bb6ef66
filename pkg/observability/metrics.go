package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionFetchTotal *prometheus.CounterVec
	SessionCacheTotal *prometheus.CounterVec

	// Authorization metrics
	PermissionChecksTotal *prometheus.CounterVec
	PermissionCacheTotal  *prometheus.CounterVec
	TenantSwitchesTotal   *prometheus.CounterVec

	// Remote gateway metrics
	RemoteCallDuration *prometheus.HistogramVec
	RemoteErrorsTotal  *prometheus.CounterVec

	// Audit metrics
	AuditWritesTotal *prometheus.CounterVec
	AuditPurgedTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authz_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		SessionFetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_session_fetch_total",
				Help: "Total number of remote session fetches by result",
			},
			[]string{"result"},
		),
		SessionCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_session_cache_total",
				Help: "Session cache lookups by outcome (hit, miss, shared)",
			},
			[]string{"outcome"},
		),

		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_permission_checks_total",
				Help: "Permission checks by result",
			},
			[]string{"result"},
		),
		PermissionCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_permission_cache_total",
				Help: "Permission cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		TenantSwitchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_tenant_switches_total",
				Help: "Tenant switch attempts by result",
			},
			[]string{"result"},
		),

		RemoteCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authz_remote_call_duration_seconds",
				Help:    "Remote gateway call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		RemoteErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_remote_errors_total",
				Help: "Remote gateway call failures by operation",
			},
			[]string{"operation"},
		),

		AuditWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_audit_writes_total",
				Help: "Audit log writes by status",
			},
			[]string{"status"},
		),
		AuditPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authz_audit_purged_total",
				Help: "Audit log rows removed by retention",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SessionFetchTotal,
		m.SessionCacheTotal,
		m.PermissionChecksTotal,
		m.PermissionCacheTotal,
		m.TenantSwitchesTotal,
		m.RemoteCallDuration,
		m.RemoteErrorsTotal,
		m.AuditWritesTotal,
		m.AuditPurgedTotal,
	)

	return m
}

// ObserveRemoteCall records the duration and outcome of a gateway call.
// A nil receiver is a no-op so components can run without metrics.
func (m *Metrics) ObserveRemoteCall(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.RemoteCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.RemoteErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// IncSessionFetch counts a remote session fetch
func (m *Metrics) IncSessionFetch(result string) {
	if m == nil {
		return
	}
	m.SessionFetchTotal.WithLabelValues(result).Inc()
}

// IncSessionCache counts a session cache lookup
func (m *Metrics) IncSessionCache(outcome string) {
	if m == nil {
		return
	}
	m.SessionCacheTotal.WithLabelValues(outcome).Inc()
}

// IncPermissionCheck counts a permission check
func (m *Metrics) IncPermissionCheck(result string) {
	if m == nil {
		return
	}
	m.PermissionChecksTotal.WithLabelValues(result).Inc()
}

// IncPermissionCache counts a permission cache lookup
func (m *Metrics) IncPermissionCache(outcome string) {
	if m == nil {
		return
	}
	m.PermissionCacheTotal.WithLabelValues(outcome).Inc()
}

// IncTenantSwitch counts a tenant switch attempt
func (m *Metrics) IncTenantSwitch(result string) {
	if m == nil {
		return
	}
	m.TenantSwitchesTotal.WithLabelValues(result).Inc()
}

// IncAuditWrite counts an audit log write
func (m *Metrics) IncAuditWrite(status string) {
	if m == nil {
		return
	}
	m.AuditWritesTotal.WithLabelValues(status).Inc()
}

// AddAuditPurged counts rows removed by retention
func (m *Metrics) AddAuditPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.AuditPurgedTotal.Add(float64(n))
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

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// The path label uses the matched mux route template to keep cardinality bounded.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}

			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, gatherer prometheus.Gatherer) {
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
