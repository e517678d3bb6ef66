package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.IncSessionFetch("ok")
	m.IncPermissionCheck("allowed")
	m.IncAuditWrite("error")

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["authz_session_fetch_total"])
	assert.True(t, names["authz_permission_checks_total"])
	assert.True(t, names["authz_audit_writes_total"])
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncSessionFetch("ok")
		m.IncSessionCache("hit")
		m.IncPermissionCheck("denied")
		m.IncPermissionCache("miss")
		m.IncTenantSwitch("ok")
		m.IncAuditWrite("ok")
		m.AddAuditPurged(3)
		m.ObserveRemoteCall("GetSession", time.Now(), errors.New("x"))
	})
}

func TestMetrics_ObserveRemoteCall(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRemoteCall("UserHasPermission", time.Now(), nil)
	m.ObserveRemoteCall("UserHasPermission", time.Now(), errors.New("timeout"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RemoteErrorsTotal.WithLabelValues("UserHasPermission")))

	m.AddAuditPurged(5)
	m.AddAuditPurged(-1)
	assert.Equal(t, float64(5), testutil.ToFloat64(m.AuditPurgedTotal))
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/v1/tenants/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	RegisterMetricsEndpoint(router, registry)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/tenants/abc", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/v1/tenants/{id}", "404")))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "authz_http_requests_total"))
}
