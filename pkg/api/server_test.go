package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemeos/tenant-auth/pkg/audit"
	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/gateway/gatewaytest"
	"github.com/gemeos/tenant-auth/pkg/httputil"
	"github.com/gemeos/tenant-auth/pkg/observability"
	"github.com/gemeos/tenant-auth/pkg/rbac"
	"github.com/gemeos/tenant-auth/pkg/session"
	"github.com/gemeos/tenant-auth/pkg/storage"
)

type testServer struct {
	server *Server
	fake   *gatewaytest.Fake
	audit  *audit.Logger
}

// newTestServer logs in u1 as tenant_admin of tenant-1 and teacher of tenant-2
func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	f := gatewaytest.NewFake()
	f.AddTenant(auth.Tenant{ID: "tenant-1", Name: "North High", Slug: "north-high", Status: auth.TenantStatusActive})
	f.AddTenant(auth.Tenant{ID: "tenant-2", Name: "South High", Slug: "south-high", Status: auth.TenantStatusActive})
	f.AddTenant(auth.Tenant{ID: "tenant-3", Name: "Elsewhere", Slug: "elsewhere", Status: auth.TenantStatusActive})
	f.AddRole(auth.Role{ID: "r-admin", Name: auth.RoleTenantAdmin})
	f.AddRole(auth.Role{ID: "r-teacher", Name: auth.RoleTeacher})
	f.Grant("r-admin", auth.Permission{ID: "p1", Resource: auth.ResourceTenants, Action: auth.ActionUpdate})
	f.Grant("r-admin", auth.Permission{ID: "p2", Resource: auth.ResourceUsers, Action: auth.ActionInvite})

	f.LogIn("u1", "head@example.com")
	f.AddMembership(auth.Membership{UserID: "u1", TenantID: "tenant-1", RoleID: "r-admin", IsPrimary: true})
	f.AddMembership(auth.Membership{UserID: "u1", TenantID: "tenant-2", RoleID: "r-teacher"})

	current := storage.NewCurrentTenant(storage.NewMemoryStore())
	auditLogger := audit.NewLogger(f, current)
	engine, err := rbac.NewEngine(rbac.Deps{
		Gateway:  f,
		Sessions: session.NewCache(f),
		Tenant:   current,
		Audit:    auditLogger,
	})
	require.NoError(t, err)

	return &testServer{server: NewServer(engine, auditLogger, opts...), fake: f, audit: auditLogger}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, r)
	return w
}

func (ts *testServer) switchTo(t *testing.T, tenantID string) {
	t.Helper()
	w := ts.do(t, http.MethodPut, "/v1/tenant", `{"tenant_id":"`+tenantID+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestGetSession(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/v1/session", "")
	require.Equal(t, http.StatusOK, w.Code)

	s := decode[auth.Session](t, w)
	assert.Equal(t, "u1", s.UserID)
	assert.Len(t, s.Tenants, 2)
	require.NotNil(t, s.CurrentTenant)
	assert.Equal(t, "tenant-1", s.CurrentTenant.TenantID)
	assert.NotEmpty(t, w.Header().Get(httputil.RequestIDHeader))
}

func TestGetSession_SignedOut(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.fake.SignOut(context.Background()))

	w := ts.do(t, http.MethodGet, "/v1/session", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSwitchTenant(t *testing.T) {
	ts := newTestServer(t)

	ts.switchTo(t, "tenant-2")

	w := ts.do(t, http.MethodGet, "/v1/tenant", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[CurrentTenantResponse](t, w)
	assert.Equal(t, "tenant-2", resp.TenantID)
	require.NotNil(t, resp.Tenant)
	assert.Equal(t, "South High", resp.Tenant.Name)

	state := decode[StateResponse](t, ts.do(t, http.MethodGet, "/v1/state", ""))
	assert.Equal(t, rbac.StateSessionWithTenant, state.State)
	assert.True(t, state.IsTeacher)
	assert.False(t, state.IsTenantAdmin)
}

func TestSwitchTenant_Forbidden(t *testing.T) {
	ts := newTestServer(t)
	ts.switchTo(t, "tenant-1")

	w := ts.do(t, http.MethodPut, "/v1/tenant", `{"tenant_id":"tenant-3"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "You do not have access to this tenant")

	resp := decode[CurrentTenantResponse](t, ts.do(t, http.MethodGet, "/v1/tenant", ""))
	assert.Equal(t, "tenant-1", resp.TenantID)
}

func TestSwitchTenant_BadRequest(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, "/v1/tenant", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, "/v1/tenant", `not json`).Code)
}

func TestGetContext(t *testing.T) {
	ts := newTestServer(t)
	ts.switchTo(t, "tenant-1")

	w := ts.do(t, http.MethodGet, "/v1/context", "")
	require.Equal(t, http.StatusOK, w.Code)

	tc := decode[auth.TenantContext](t, w)
	assert.Equal(t, "tenant-1", tc.Tenant.ID)
	assert.True(t, tc.Can(auth.ResourceUsers, auth.ActionInvite))
}

func TestListPermissions(t *testing.T) {
	ts := newTestServer(t)

	perms := decode[[]auth.Permission](t, ts.do(t, http.MethodGet, "/v1/permissions", ""))
	assert.Empty(t, perms, "no tenant selected")

	ts.switchTo(t, "tenant-1")
	perms = decode[[]auth.Permission](t, ts.do(t, http.MethodGet, "/v1/permissions", ""))
	assert.Len(t, perms, 2)
}

func TestCheckPermission(t *testing.T) {
	ts := newTestServer(t)
	ts.switchTo(t, "tenant-1")
	ts.fake.Allow("u1", "tenant-1", auth.ResourceUsers, auth.ActionInvite)

	w := ts.do(t, http.MethodGet, "/v1/permissions/check?resource=users&action=invite", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[CheckResponse](t, w)
	assert.True(t, resp.Allowed)
	assert.Equal(t, "granted by role tenant_admin in tenant tenant-1", resp.Reason)

	resp = decode[CheckResponse](t, ts.do(t, http.MethodGet, "/v1/permissions/check?resource=users&action=delete", ""))
	assert.False(t, resp.Allowed)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/v1/permissions/check?resource=users", "").Code)
}

func TestCheckPermissions_Bulk(t *testing.T) {
	ts := newTestServer(t)
	ts.switchTo(t, "tenant-1")
	ts.fake.Allow("u1", "tenant-1", auth.ResourceUsers, auth.ActionInvite)

	body := `{"permissions":[{"resource":"users","action":"invite"},{"resource":"tenants","action":"delete"}]}`
	w := ts.do(t, http.MethodPost, "/v1/permissions/check", body)
	require.Equal(t, http.StatusOK, w.Code)

	result := decode[map[string]bool](t, w)
	assert.Equal(t, map[string]bool{"users:invite": true, "tenants:delete": false}, result)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/v1/permissions/check", `{"permissions":[]}`).Code)
}

func TestCreateTenant_RequiresPermission(t *testing.T) {
	ts := newTestServer(t)
	ts.switchTo(t, "tenant-1")

	body := `{"name":"West High","slug":"west-high"}`
	w := ts.do(t, http.MethodPost, "/v1/tenants", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), rbac.ReasonNotGranted)

	ts.fake.Allow("u1", "tenant-1", auth.ResourceTenants, auth.ActionCreate)
	w = ts.do(t, http.MethodPost, "/v1/tenants", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tenant := decode[auth.Tenant](t, w)
	assert.Equal(t, "west-high", tenant.Slug)
}

func TestCreateTenant_Validation(t *testing.T) {
	ts := newTestServer(t)
	ts.switchTo(t, "tenant-1")
	ts.fake.Allow("u1", "tenant-1", auth.ResourceTenants, auth.ActionCreate)

	w := ts.do(t, http.MethodPost, "/v1/tenants", `{"name":"West","slug":"West High"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "slug")
	assert.Zero(t, ts.fake.Calls("CreateTenant"))
}

func TestRequirePermission_NoSession(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.fake.SignOut(context.Background()))

	w := ts.do(t, http.MethodPost, "/v1/tenants", `{"name":"West High","slug":"west-high"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetTenant(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/v1/tenants/tenant-2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "South High", decode[auth.Tenant](t, w).Name)

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/v1/tenants/tenant-3", "").Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/v1/tenants/missing", "").Code)
}

func TestUpdateTenant(t *testing.T) {
	ts := newTestServer(t)
	ts.switchTo(t, "tenant-1")
	ts.fake.Allow("u1", "tenant-1", auth.ResourceTenants, auth.ActionUpdate)

	w := ts.do(t, http.MethodPatch, "/v1/tenants/tenant-1", `{"name":"North High School"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "North High School", decode[auth.Tenant](t, w).Name)

	w = ts.do(t, http.MethodPatch, "/v1/tenants/missing", `{"name":"X"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTenantRoutes_ForeignTenantForbidden(t *testing.T) {
	ts := newTestServer(t)
	ts.switchTo(t, "tenant-1")
	for _, action := range []auth.Action{auth.ActionUpdate, auth.ActionAssign, auth.ActionDelete, auth.ActionInvite} {
		ts.fake.Allow("u1", "tenant-1", auth.ResourceUsers, action)
	}
	ts.fake.Allow("u1", "tenant-1", auth.ResourceTenants, auth.ActionUpdate)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"rename", http.MethodPatch, "/v1/tenants/tenant-3", `{"name":"Renamed"}`},
		{"assign", http.MethodPut, "/v1/tenants/tenant-3/members/u9", `{"role":"student"}`},
		{"remove", http.MethodDelete, "/v1/tenants/tenant-3/members/u9", ""},
		{"invite", http.MethodPost, "/v1/tenants/tenant-3/invitations", `{"email":"x@example.com","role":"student"}`},
		// member of tenant-2, but tenant-1 is selected
		{"assign in other membership", http.MethodPut, "/v1/tenants/tenant-2/members/u9", `{"role":"student"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
		})
	}

	for _, m := range ts.fake.Memberships() {
		assert.NotEqual(t, "u9", m.UserID)
	}
	assert.Empty(t, ts.fake.Invites())

	tenant, err := ts.fake.GetTenant(context.Background(), "tenant-3")
	require.NoError(t, err)
	assert.Equal(t, "Elsewhere", tenant.Name)
}

func TestTenantRoutes_PlatformAdminAnyTenant(t *testing.T) {
	ts := newTestServer(t)
	ts.fake.LogIn("root", "admin@gemeos.ai")

	w := ts.do(t, http.MethodPatch, "/v1/tenants/tenant-3", `{"name":"Elsewhere Academy"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Elsewhere Academy", decode[auth.Tenant](t, w).Name)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/v1/tenants/missing", "").Code)
}

func TestInviteUser(t *testing.T) {
	ts := newTestServer(t)
	ts.switchTo(t, "tenant-1")
	ts.fake.Allow("u1", "tenant-1", auth.ResourceUsers, auth.ActionInvite)

	w := ts.do(t, http.MethodPost, "/v1/tenants/tenant-1/invitations", `{"email":"new@example.com","role":"teacher"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	invites := ts.fake.Invites()
	require.Len(t, invites, 1)
	assert.Equal(t, "new@example.com", invites[0].Email)
	assert.Equal(t, "tenant-1", invites[0].Metadata["tenant_id"])

	w = ts.do(t, http.MethodPost, "/v1/tenants/tenant-1/invitations", `{"role":"teacher"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssignAndRemoveMember(t *testing.T) {
	ts := newTestServer(t)
	ts.switchTo(t, "tenant-1")
	ts.fake.Allow("u1", "tenant-1", auth.ResourceUsers, auth.ActionAssign)
	ts.fake.Allow("u1", "tenant-1", auth.ResourceUsers, auth.ActionDelete)

	w := ts.do(t, http.MethodPut, "/v1/tenants/tenant-1/members/u2", `{"role":"teacher"}`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPut, "/v1/tenants/tenant-1/members/u2", `{"role":"ghost_role"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Role ghost_role not found")

	w = ts.do(t, http.MethodDelete, "/v1/tenants/tenant-1/members/u2", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	var found bool
	for _, m := range ts.fake.Memberships() {
		if m.UserID == "u2" && m.TenantID == "tenant-1" {
			found = true
			assert.Equal(t, auth.MembershipInactive, m.Status)
		}
	}
	assert.True(t, found)
}

func TestAuditLogs(t *testing.T) {
	ts := newTestServer(t)
	ts.switchTo(t, "tenant-1")

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	ts.fake.AddAuditLog(auth.AuditLog{ID: "a", TenantID: "tenant-1", ResourceType: "tenant", Action: "update", CreatedAt: base})
	ts.fake.AddAuditLog(auth.AuditLog{ID: "b", TenantID: "tenant-1", ResourceType: "user", Action: "invite", CreatedAt: base.Add(time.Hour)})

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/v1/audit-logs", "").Code)

	ts.fake.Allow("u1", "tenant-1", auth.ResourceReports, auth.ActionView)
	logs := decode[[]auth.AuditLog](t, ts.do(t, http.MethodGet, "/v1/audit-logs", ""))
	require.Len(t, logs, 2)
	assert.Equal(t, "b", logs[0].ID)

	logs = decode[[]auth.AuditLog](t, ts.do(t, http.MethodGet, "/v1/audit-logs?resource_type=tenant", ""))
	require.Len(t, logs, 1)
	assert.Equal(t, "a", logs[0].ID)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/v1/audit-logs?start=yesterday", "").Code)
}

func TestRecordAuditLog(t *testing.T) {
	ts := newTestServer(t)
	ts.switchTo(t, "tenant-1")
	ts.fake.Allow("u1", "tenant-1", auth.ResourceReports, auth.ActionCreate)

	w := ts.do(t, http.MethodPost, "/v1/audit-logs", `{"action":"publish","resource_type":"concept","resource_id":"c-1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var found bool
	for _, l := range ts.fake.AuditLogs() {
		if l.Action == "publish" {
			found = true
			assert.Equal(t, "tenant-1", l.TenantID)
			assert.Equal(t, "c-1", l.ResourceID)
		}
	}
	assert.True(t, found)
}

func TestExportAuditLogs(t *testing.T) {
	ts := newTestServer(t)
	ts.switchTo(t, "tenant-1")
	ts.fake.Allow("u1", "tenant-1", auth.ResourceReports, auth.ActionExport)
	ts.fake.AddAuditLog(auth.AuditLog{ID: "a", TenantID: "tenant-1", Action: "update", ResourceType: "tenant", CreatedAt: time.Now()})

	w := ts.do(t, http.MethodGet, "/v1/audit-logs/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")

	records, err := csv.NewReader(bytes.NewReader(w.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/v1/audit-logs/export?format=xml", "").Code)
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v1/session", "").Code)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodPost, "/v1/logout", "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/v1/session", "").Code)

	state := decode[StateResponse](t, ts.do(t, http.MethodGet, "/v1/state", ""))
	assert.Equal(t, rbac.StateNoSession, state.State)
}

func TestClearCache(t *testing.T) {
	ts := newTestServer(t)
	ts.switchTo(t, "tenant-1")

	ts.do(t, http.MethodGet, "/v1/permissions", "")
	ts.do(t, http.MethodGet, "/v1/permissions", "")
	assert.Equal(t, 1, ts.fake.Calls("ListRolePermissions"))

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/v1/cache", "").Code)
	ts.do(t, http.MethodGet, "/v1/permissions", "")
	assert.Equal(t, 2, ts.fake.Calls("ListRolePermissions"))
}

func TestHealthAndMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	ts := newTestServer(t,
		WithMetrics(metrics, registry),
		WithHealthChecker(observability.NewHealthChecker(nil, nil, "test")),
	)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz/live", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz/ready", "").Code)

	ts.do(t, http.MethodGet, "/v1/session", "")
	w := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "authz_http_requests_total")
	assert.Contains(t, w.Body.String(), `path="/v1/session"`)
}

func TestRecovery(t *testing.T) {
	ts := newTestServer(t)
	ts.server.Router().HandleFunc("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	w := ts.do(t, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := httputil.NewRateLimiter(httputil.RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
	}, nil)
	ts := newTestServer(t, WithRateLimiter(limiter))

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v1/session", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(t, http.MethodGet, "/v1/session", "").Code)
}
