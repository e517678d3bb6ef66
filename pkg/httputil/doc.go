// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
//
// WriteError maps the typed errors of package auth onto status codes:
//
//	*auth.ValidationError     400
//	auth.ErrNoSession         401
//	*auth.AuthorizationError  403
//	*auth.RoleNotFoundError   404
//	*auth.TenantNotFoundError 404
//	anything else             502
//
// RateLimitMiddleware answers 429 once a client's token bucket is empty.
//
// Request parsing:
//
//	var req auth.CreateTenantInput
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
package httputil
