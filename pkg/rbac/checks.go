package rbac

import (
	"context"
	"fmt"

	"github.com/gemeos/tenant-auth/pkg/async"
	"github.com/gemeos/tenant-auth/pkg/auth"
)

// AccessResult explains a single permission decision
type AccessResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Reasons reported by CheckAccess
const (
	ReasonNoSession     = "no active session"
	ReasonPlatformAdmin = "platform administrator has universal access"
	ReasonNoTenant      = "no tenant selected"
	ReasonCheckFailed   = "permission check failed"
	ReasonNotGranted    = "not granted in tenant"
)

// CheckAccess is HasPermission with the reason for the decision
func (e *Engine) CheckAccess(ctx context.Context, resource auth.Resource, action auth.Action) AccessResult {
	s := e.sessions.Current(ctx)
	if s == nil {
		e.metrics.IncPermissionCheck("no_session")
		return AccessResult{Reason: ReasonNoSession}
	}
	if s.IsPlatformAdmin {
		e.metrics.IncPermissionCheck("admin")
		return AccessResult{Allowed: true, Reason: ReasonPlatformAdmin}
	}

	tenantID := e.CurrentTenantID(ctx)
	if tenantID == "" {
		e.metrics.IncPermissionCheck("no_tenant")
		return AccessResult{Reason: ReasonNoTenant}
	}

	allowed, err := e.checkRemote(ctx, s.UserID, tenantID, resource, action)
	if err != nil {
		return AccessResult{Allowed: allowed, Reason: ReasonCheckFailed}
	}
	if !allowed {
		return AccessResult{Reason: ReasonNotGranted}
	}

	reason := "granted in tenant " + tenantID
	if m := s.Membership(tenantID); m != nil && m.RoleName() != "" {
		reason = fmt.Sprintf("granted by role %s in tenant %s", m.RoleName(), tenantID)
	}
	return AccessResult{Allowed: true, Reason: reason}
}

// CheckPermissions evaluates several permissions at once, keyed by
// "resource:action". Every key is present in the result. Remote checks run
// concurrently; each failure denies only its own key.
func (e *Engine) CheckPermissions(ctx context.Context, refs []auth.PermissionRef) map[string]bool {
	result := make(map[string]bool, len(refs))
	fill := func(v bool) map[string]bool {
		for _, ref := range refs {
			result[ref.String()] = v
		}
		return result
	}

	s := e.sessions.Current(ctx)
	if s == nil {
		return fill(false)
	}
	if s.IsPlatformAdmin {
		e.metrics.IncPermissionCheck("admin")
		return fill(true)
	}
	tenantID := e.CurrentTenantID(ctx)
	if tenantID == "" {
		return fill(false)
	}

	// Duplicate refs are checked once.
	unique := make([]auth.PermissionRef, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if !seen[ref.String()] {
			seen[ref.String()] = true
			unique = append(unique, ref)
		}
	}

	allowed, _ := async.Map(ctx, unique, e.bulkWorkers, 0, func(ctx context.Context, ref auth.PermissionRef) (bool, error) {
		return e.checkRemote(ctx, s.UserID, tenantID, ref.Resource, ref.Action)
	})
	for i, ref := range unique {
		result[ref.String()] = allowed[i]
	}
	return result
}
