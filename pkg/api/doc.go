// Package api serves the authorization engine and audit trail over HTTP.
//
// The server is bound to the identity of the running process. It does not
// authenticate callers itself; deploy it on a loopback or otherwise trusted
// interface. Mutating routes are guarded by RequirePermission, which checks
// the permission in the current tenant. Routes under /v1/tenants/{id} are
// also guarded by RequireTenant: {id} must be one of the user's tenants, and
// for mutations it must be the current tenant. Platform admins may act on
// any tenant. WithRateLimiter throttles /v1 per client address.
//
// Routes:
//
//	GET    /v1/session
//	GET    /v1/state
//	GET    /v1/context
//	GET    /v1/tenant
//	PUT    /v1/tenant                         {"tenant_id": "..."}
//	POST   /v1/logout
//	DELETE /v1/cache
//	GET    /v1/permissions
//	GET    /v1/permissions/check?resource=&action=
//	POST   /v1/permissions/check              {"permissions": [...]}
//	POST   /v1/tenants                        tenants:create
//	GET    /v1/tenants/{id}
//	PATCH  /v1/tenants/{id}                   tenants:update
//	POST   /v1/tenants/{id}/invitations       users:invite
//	PUT    /v1/tenants/{id}/members/{user}    users:assign
//	DELETE /v1/tenants/{id}/members/{user}    users:delete
//	GET    /v1/audit-logs                     reports:view
//	POST   /v1/audit-logs                     reports:create
//	GET    /v1/audit-logs/export?format=      reports:export
//	GET    /healthz, /healthz/live, /healthz/ready
//	GET    /metrics
package api
