package storage

import (
	"context"
	"time"
)

// CurrentTenantKey is the single key under which the selected tenant is persisted
const CurrentTenantKey = "current_tenant_id"

// TenantStore persists the current tenant id across process restarts.
// Get returns "" when nothing is stored.
type TenantStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, tenantID string) error
	Clear(ctx context.Context) error
}

// Config for the tenant store backend
type Config struct {
	Type string // "memory", "file", "redis"

	// File config
	FilePath string

	// Redis config
	RedisURL        string
	RedisPoolSize   int
	RedisMaxRetries int
	RedisKeyPrefix  string
	DialTimeout     time.Duration
}

var (
	_ TenantStore = (*MemoryStore)(nil)
	_ TenantStore = (*FileSystemStore)(nil)
	_ TenantStore = (*RedisStore)(nil)
)
