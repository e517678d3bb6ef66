package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gemeos/tenant-auth/pkg/audit"
	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/httputil"
)

// parseAuditFilter reads resource_type, user_id, start and end query params
func parseAuditFilter(r *http.Request) (auth.AuditFilter, error) {
	filter := auth.AuditFilter{
		ResourceType: r.URL.Query().Get("resource_type"),
		UserID:       r.URL.Query().Get("user_id"),
	}

	var err error
	if filter.StartDate, err = httputil.ParseQueryTime(r, "start"); err != nil {
		return filter, err
	}
	if filter.EndDate, err = httputil.ParseQueryTime(r, "end"); err != nil {
		return filter, err
	}
	return filter, nil
}

// listAuditLogs handles GET /v1/audit-logs
func (s *Server) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, s.audit.Logs(r.Context(), filter))
}

// recordAuditLog handles POST /v1/audit-logs
func (s *Server) recordAuditLog(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Action == "" || req.ResourceType == "" {
		httputil.WriteBadRequest(w, "action and resource_type are required")
		return
	}

	s.audit.Record(r.Context(), req.Action, req.ResourceType, req.ResourceID, req.Changes)
	w.WriteHeader(http.StatusAccepted)
}

// exportAuditLogs handles GET /v1/audit-logs/export?format=json|csv|ndjson
func (s *Server) exportAuditLogs(w http.ResponseWriter, r *http.Request) {
	format, err := audit.ParseExportFormat(httputil.ParseQueryString(r, "format", string(audit.ExportFormatJSON)))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	filter, err := parseAuditFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	data, err := s.audit.Export(r.Context(), filter, format)
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	filename := "audit-logs-" + time.Now().UTC().Format("20060102") + "." + string(format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
