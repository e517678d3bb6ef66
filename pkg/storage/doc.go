// Package storage persists client-side state for tenant-auth.
//
// The only persisted value is the current tenant id, stored under the key
// "current_tenant_id". Three TenantStore backends are provided:
//
//   - MemoryStore: process memory, lost on exit (tests, embedded use)
//   - FileSystemStore: a JSON document on disk, the CLI default
//   - RedisStore: a shared key for several processes acting as one identity
//
// Select a backend from configuration:
//
//	store, closeStore, err := storage.New(ctx, storage.Config{
//		Type:     "file",
//		FilePath: cfg.Auth.TenantStateFile,
//	})
//	defer closeStore()
//
// NewRedisClient is also used by the shared permission cache and the health
// checker, so one client can serve all Redis-backed components.
package storage
