// Package auth defines the identity and tenancy model shared by the session
// cache, the authorization engine and the audit logger.
//
// # Overview
//
// A Session is the resolved answer to "who is logged in and what tenants and
// roles do they hold". It is built from the remote auth subsystem's user plus
// the user's active tenant memberships:
//
//	session := &auth.Session{
//		UserID:  "u-1",
//		Email:   "teacher@school.example",
//		Tenants: memberships,
//	}
//	session.CurrentTenant = auth.SelectCurrentTenant(memberships)
//
// The current tenant is the membership flagged primary, else the first
// membership, else nil.
//
// # Permissions
//
// Permissions are (resource, action) pairs. Resources and actions are open
// string types; the constants cover the values the dashboard uses:
//
//	ctx := &auth.TenantContext{Permissions: perms}
//	if ctx.Can(auth.ResourceDomains, auth.ActionCreate) {
//		// ...
//	}
//
// # Errors
//
// AuthorizationError is the only error raised by read paths (switching to a
// tenant outside the session's memberships). RoleNotFoundError and
// TenantNotFoundError describe lookups that failed during mutations.
package auth
