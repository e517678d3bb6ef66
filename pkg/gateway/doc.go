// Package gateway defines the remote data gateway consumed by the session
// cache, the authorization engine and the audit logger.
//
// The gateway has three faces:
//
//   - AuthClient: the auth subsystem (current session, sign-out, invitations)
//   - Directory: table-style queries over tenants, roles, memberships and audit logs
//   - Procedures: the user_has_permission and create_audit_log stored procedures
//
// Implementations live in subpackages (gateway/postgres). Wrap any
// implementation with NewTraced to get a span, a timeout and a duration
// metric per remote call:
//
//	gw := gateway.NewTraced(pg,
//		gateway.WithTimeout(cfg.Auth.RemoteTimeout),
//		gateway.WithMetrics(metrics),
//	)
package gateway
