// Package rbac is the tenant authorization engine.
//
// An Engine sits on top of the session cache and answers three kinds of
// question for the logged-in user: which tenant is current, what may the user
// do there, and who belongs to which tenant.
//
// # Tenant selection
//
//	ok, err := engine.SwitchTenant(ctx, tenantID)
//	if auth.IsAuthorizationError(err) {
//		// not a member of tenantID; the current tenant is unchanged
//	}
//
// The selection is kept in memory and persisted through a storage.TenantStore,
// so CurrentTenantID survives restarts.
//
// # Permission checks
//
// HasPermission fails closed: without a session or tenant, or on any backend
// error, it answers false. Platform admins are allowed everything without a
// remote call. UserPermissions memoizes each (user, tenant) permission set in
// a PermissionCache, which is cleared in full whenever the tenant changes:
//
//	if engine.HasPermission(ctx, auth.ResourceDomains, auth.ActionCreate) {
//		...
//	}
//	perms := engine.UserPermissions(ctx)
//
// CheckPermissions and CheckAccess are batch and explaining variants.
//
// # Failure policy
//
// Each remote-backed operation has a documented failure mode in
// auth.Policies. Read paths degrade to false, empty or nil and log; mutations
// (tenant CRUD, invitations, role assignment, removal) return their errors.
//
// # Permission caches
//
// LRUPermissionCache (golang-lru) is the in-process default.
// RedisPermissionCache shares entries between processes under
// "authz:perms:{user_id}:{tenant_id}".
package rbac
