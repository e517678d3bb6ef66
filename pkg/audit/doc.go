// Package audit records and reads the tenant audit trail.
//
// Writes are best-effort. Record and RecordAsync never return an error: a
// failed write is logged and counted, and the operation that triggered it
// carries on.
//
//	logger := audit.NewLogger(gw, currentTenant, audit.WithLogger(appLogger))
//	logger.RecordAsync(ctx, "update", "tenant", tenantID, map[string]any{"name": name})
//	defer logger.Flush(shutdownCtx)
//
// Logs returns the newest 100 entries for the current tenant, optionally
// filtered by resource type, user, and date range. With no tenant selected it
// returns an empty slice without contacting the backend.
//
// Export renders logs as JSON, CSV, or NDJSON. Retention deletes entries older
// than a configured number of days on a cron schedule.
package audit
