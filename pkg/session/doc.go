// Package session resolves and caches the identity of the logged-in user.
//
// A Cache serves the current auth.Session for a short TTL (five seconds by
// default). Concurrent callers that miss the cache share a single fetch, and
// any failure while fetching degrades to the last successfully built session:
//
//	cache := session.NewCache(gw, session.WithLogger(logger))
//	s := cache.Current(ctx) // nil when nobody is logged in
//
// Building a session costs three directory calls regardless of how many
// tenants the user belongs to: memberships, then tenants and roles by id.
package session
