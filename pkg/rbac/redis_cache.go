package rbac

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/gemeos/tenant-auth/pkg/auth"
)

// DefaultRedisPermissionPrefix prefixes every shared permission cache key
const DefaultRedisPermissionPrefix = "authz:perms:"

const clearScanCount = 500

// RedisPermissionCache shares permission sets between processes acting for
// the same identity. Keys carry no TTL.
type RedisPermissionCache struct {
	client *redis.Client
	prefix string
}

// NewRedisPermissionCache creates a cache under prefix (DefaultRedisPermissionPrefix when empty)
func NewRedisPermissionCache(client *redis.Client, prefix string) *RedisPermissionCache {
	if prefix == "" {
		prefix = DefaultRedisPermissionPrefix
	}
	return &RedisPermissionCache{client: client, prefix: prefix}
}

func (c *RedisPermissionCache) key(userID, tenantID string) string {
	return c.prefix + CacheKey(userID, tenantID)
}

// Get implements PermissionCache.Get
func (c *RedisPermissionCache) Get(ctx context.Context, userID, tenantID string) ([]auth.Permission, bool, error) {
	key := c.key(userID, tenantID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var perms []auth.Permission
	if err := json.Unmarshal(data, &perms); err != nil {
		// Drop corrupt data so the next call refetches
		c.client.Del(ctx, key)
		return nil, false, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}
	if perms == nil {
		perms = []auth.Permission{}
	}
	return perms, true, nil
}

// Set implements PermissionCache.Set
func (c *RedisPermissionCache) Set(ctx context.Context, userID, tenantID string, perms []auth.Permission) error {
	if perms == nil {
		perms = []auth.Permission{}
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}
	if err := c.client.Set(ctx, c.key(userID, tenantID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Clear implements PermissionCache.Clear by scanning the prefix
func (c *RedisPermissionCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", clearScanCount).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del failed: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
