package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gemeos/tenant-auth/pkg/audit"
	"github.com/gemeos/tenant-auth/pkg/httputil"
	"github.com/gemeos/tenant-auth/pkg/observability"
	"github.com/gemeos/tenant-auth/pkg/rbac"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// Server exposes the engine and audit logger over HTTP. It acts as the
// process identity: every request sees the same session and tenant pointer.
type Server struct {
	engine   *rbac.Engine
	audit    *audit.Logger
	router   *mux.Router
	logger   *observability.Logger
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	health   *observability.HealthChecker
	limiter  *httputil.RateLimiter
	handler  http.Handler
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(l *observability.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics enables HTTP metrics and /metrics backed by gatherer
func WithMetrics(m *observability.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithHealthChecker registers the /healthz routes
func WithHealthChecker(h *observability.HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithRateLimiter throttles /v1 requests per client address
func WithRateLimiter(rl *httputil.RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// NewServer creates a new API server
func NewServer(engine *rbac.Engine, auditLogger *audit.Logger, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		audit:  auditLogger,
		router: mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observability.NewNopLogger()
	}
	s.setupRoutes()
	s.handler = s.buildHandler()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.health != nil {
		observability.RegisterHealthRoutes(s.router, s.health)
	}
	if s.gatherer != nil {
		observability.RegisterMetricsEndpoint(s.router, s.gatherer)
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(mux.MiddlewareFunc(httputil.MaxBytesMiddleware(maxBodyBytes)))
	if s.limiter != nil {
		v1.Use(mux.MiddlewareFunc(httputil.RateLimitMiddleware(s.limiter)))
	}
	if s.metrics != nil {
		v1.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	// Session and tenant pointer
	v1.HandleFunc("/session", s.getSession).Methods(http.MethodGet)
	v1.HandleFunc("/state", s.getState).Methods(http.MethodGet)
	v1.HandleFunc("/context", s.getContext).Methods(http.MethodGet)
	v1.HandleFunc("/tenant", s.getCurrentTenant).Methods(http.MethodGet)
	v1.HandleFunc("/tenant", s.switchTenant).Methods(http.MethodPut)
	v1.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	v1.HandleFunc("/cache", s.clearCache).Methods(http.MethodDelete)

	// Permissions
	v1.HandleFunc("/permissions", s.listPermissions).Methods(http.MethodGet)
	v1.HandleFunc("/permissions/check", s.checkPermission).Methods(http.MethodGet)
	v1.HandleFunc("/permissions/check", s.checkPermissions).Methods(http.MethodPost)

	// Tenants and members
	v1.Handle("/tenants", s.require(rbacTenantsCreate, s.createTenant)).Methods(http.MethodPost)
	v1.Handle("/tenants/{id}", RequireTenant(s.engine, ScopeMember)(http.HandlerFunc(s.getTenant))).Methods(http.MethodGet)
	v1.Handle("/tenants/{id}", s.requireInTenant(rbacTenantsUpdate, s.updateTenant)).Methods(http.MethodPatch)
	v1.Handle("/tenants/{id}/invitations", s.requireInTenant(rbacUsersInvite, s.inviteUser)).Methods(http.MethodPost)
	v1.Handle("/tenants/{id}/members/{user}", s.requireInTenant(rbacUsersAssign, s.assignRole)).Methods(http.MethodPut)
	v1.Handle("/tenants/{id}/members/{user}", s.requireInTenant(rbacUsersDelete, s.removeMember)).Methods(http.MethodDelete)

	// Audit trail
	v1.Handle("/audit-logs", s.require(rbacReportsView, s.listAuditLogs)).Methods(http.MethodGet)
	v1.Handle("/audit-logs", s.require(rbacReportsCreate, s.recordAuditLog)).Methods(http.MethodPost)
	v1.Handle("/audit-logs/export", s.require(rbacReportsExport, s.exportAuditLogs)).Methods(http.MethodGet)
}

// Router returns the underlying router for tests and additional routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the router wrapped with request ids, logging, panic
// recovery and tracing.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) buildHandler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware(s.logger),
		httputil.LoggingMiddleware,
		observability.RecoveryMiddleware(s.logger),
	)
	return otelhttp.NewHandler(chain(s.router), "tenant-auth",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
