package api

import (
	"net/http"

	"github.com/gemeos/tenant-auth/pkg/httputil"
	"github.com/gemeos/tenant-auth/pkg/rbac"
)

// getSession handles GET /v1/session
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess := s.engine.Session(r.Context())
	if sess == nil {
		httputil.WriteUnauthorized(w, "no active session")
		return
	}
	httputil.WriteSuccess(w, sess)
}

// getState handles GET /v1/state
func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := s.engine.State(ctx)
	resp := StateResponse{
		State:           state,
		IsPlatformAdmin: s.engine.IsPlatformAdmin(ctx),
		IsTenantAdmin:   s.engine.IsTenantAdmin(ctx),
		IsTeacher:       s.engine.IsTeacher(ctx),
		IsStudent:       s.engine.IsStudent(ctx),
	}
	if state != rbac.StateNoSession {
		resp.TenantID = s.engine.CurrentTenantID(ctx)
	}
	httputil.WriteSuccess(w, resp)
}

// getContext handles GET /v1/context
func (s *Server) getContext(w http.ResponseWriter, r *http.Request) {
	tc := s.engine.TenantContext(r.Context())
	if tc == nil {
		httputil.WriteNotFound(w, "no tenant context")
		return
	}
	httputil.WriteSuccess(w, tc)
}

// getCurrentTenant handles GET /v1/tenant
func (s *Server) getCurrentTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := CurrentTenantResponse{TenantID: s.engine.CurrentTenantID(ctx)}
	if resp.TenantID != "" {
		resp.Tenant = s.engine.GetTenant(ctx, resp.TenantID)
	}
	httputil.WriteSuccess(w, resp)
}

// switchTenant handles PUT /v1/tenant
func (s *Server) switchTenant(w http.ResponseWriter, r *http.Request) {
	var req SwitchTenantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.TenantID == "" {
		httputil.WriteBadRequest(w, "tenant_id is required")
		return
	}

	switched, err := s.engine.SwitchTenant(r.Context(), req.TenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !switched {
		httputil.WriteUnauthorized(w, "no active session")
		return
	}
	httputil.WriteSuccess(w, CurrentTenantResponse{TenantID: req.TenantID})
}

// logout handles POST /v1/logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Logout(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// clearCache handles DELETE /v1/cache
func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	s.engine.ClearCache(r.Context())
	httputil.WriteNoContent(w)
}
