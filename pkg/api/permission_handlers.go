package api

import (
	"net/http"

	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/httputil"
)

// maxBulkChecks bounds POST /v1/permissions/check
const maxBulkChecks = 100

// listPermissions handles GET /v1/permissions
func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.engine.UserPermissions(r.Context()))
}

// checkPermission handles GET /v1/permissions/check?resource=&action=
func (s *Server) checkPermission(w http.ResponseWriter, r *http.Request) {
	resource := auth.Resource(r.URL.Query().Get("resource"))
	action := auth.Action(r.URL.Query().Get("action"))
	if resource == "" || action == "" {
		httputil.WriteBadRequest(w, "resource and action are required")
		return
	}

	httputil.WriteSuccess(w, CheckResponse{
		Resource:     resource,
		Action:       action,
		AccessResult: s.engine.CheckAccess(r.Context(), resource, action),
	})
}

// checkPermissions handles POST /v1/permissions/check
func (s *Server) checkPermissions(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Permissions) == 0 {
		httputil.WriteBadRequest(w, "permissions are required")
		return
	}
	if len(req.Permissions) > maxBulkChecks {
		httputil.WriteBadRequest(w, "too many permissions in one request")
		return
	}
	for _, p := range req.Permissions {
		if p.Resource == "" || p.Action == "" {
			httputil.WriteBadRequest(w, "each permission needs a resource and an action")
			return
		}
	}

	httputil.WriteSuccess(w, s.engine.CheckPermissions(r.Context(), req.Permissions))
}
