package api

import (
	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/rbac"
)

// SwitchTenantRequest is the body of PUT /v1/tenant
type SwitchTenantRequest struct {
	TenantID string `json:"tenant_id"`
}

// CurrentTenantResponse describes the tenant pointer
type CurrentTenantResponse struct {
	TenantID string       `json:"tenant_id"`
	Tenant   *auth.Tenant `json:"tenant,omitempty"`
}

// StateResponse is returned by GET /v1/state
type StateResponse struct {
	State           rbac.State `json:"state"`
	TenantID        string     `json:"tenant_id,omitempty"`
	IsPlatformAdmin bool       `json:"is_platform_admin"`
	IsTenantAdmin   bool       `json:"is_tenant_admin"`
	IsTeacher       bool       `json:"is_teacher"`
	IsStudent       bool       `json:"is_student"`
}

// CheckRequest is the body of POST /v1/permissions/check
type CheckRequest struct {
	Permissions []auth.PermissionRef `json:"permissions"`
}

// CheckResponse is returned by GET /v1/permissions/check
type CheckResponse struct {
	Resource auth.Resource `json:"resource"`
	Action   auth.Action   `json:"action"`
	rbac.AccessResult
}

// InviteRequest is the body of POST /v1/tenants/{id}/invitations
type InviteRequest struct {
	Email   string   `json:"email"`
	Role    string   `json:"role"`
	Domains []string `json:"domains,omitempty"`
}

// AssignRoleRequest is the body of PUT /v1/tenants/{id}/members/{user}
type AssignRoleRequest struct {
	Role string `json:"role"`
}

// RecordRequest is the body of POST /v1/audit-logs
type RecordRequest struct {
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
}
