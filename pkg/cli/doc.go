// Package cli implements the tenant-auth command line.
//
// Every command acts for the identity holding TENANT_AUTH_ACCESS_TOKEN. The
// selected tenant is persisted by the configured tenant store, so
//
//	tenant-auth switch 9f1c...
//	tenant-auth can users invite
//
// checks the permission in the tenant chosen by the previous invocation.
//
// Commands:
//
//	session                 show the user, their tenants and the current tenant
//	switch <tenant-id>      select the current tenant
//	tenant [id]             show a tenant; create, update, invite, assign, remove
//	can <resource> <action> check permissions, exit 1 when denied
//	permissions             list permissions granted in the current tenant
//	audit list|export|purge read, export, or prune the audit trail
//	logout                  sign out and clear cached state
//	serve                   run the local admin API
package cli
