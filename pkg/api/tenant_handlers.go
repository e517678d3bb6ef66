package api

import (
	"net/http"

	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/httputil"
)

// createTenant handles POST /v1/tenants
func (s *Server) createTenant(w http.ResponseWriter, r *http.Request) {
	var input auth.CreateTenantInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	tenant, err := s.engine.CreateTenant(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, tenant)
}

// getTenant handles GET /v1/tenants/{id}
func (s *Server) getTenant(w http.ResponseWriter, r *http.Request) {
	id := httputil.PathString(r, "id")
	tenant := s.engine.GetTenant(r.Context(), id)
	if tenant == nil {
		httputil.WriteNotFound(w, "tenant not found")
		return
	}
	httputil.WriteSuccess(w, tenant)
}

// updateTenant handles PATCH /v1/tenants/{id}
func (s *Server) updateTenant(w http.ResponseWriter, r *http.Request) {
	var update auth.TenantUpdate
	if !httputil.ParseJSONOrError(w, r, &update) {
		return
	}

	tenant, err := s.engine.UpdateTenant(r.Context(), httputil.PathString(r, "id"), update)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, tenant)
}

// inviteUser handles POST /v1/tenants/{id}/invitations
func (s *Server) inviteUser(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := s.engine.InviteUser(r.Context(), auth.InviteUserInput{
		Email:    req.Email,
		TenantID: httputil.PathString(r, "id"),
		Role:     req.Role,
		Domains:  req.Domains,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// assignRole handles PUT /v1/tenants/{id}/members/{user}
func (s *Server) assignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Role == "" {
		httputil.WriteBadRequest(w, "role is required")
		return
	}

	err := s.engine.AssignRoleToUser(r.Context(), auth.AssignRoleInput{
		UserID:   httputil.PathString(r, "user"),
		TenantID: httputil.PathString(r, "id"),
		Role:     req.Role,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// removeMember handles DELETE /v1/tenants/{id}/members/{user}
func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	err := s.engine.RemoveUserFromTenant(r.Context(), httputil.PathString(r, "user"), httputil.PathString(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
