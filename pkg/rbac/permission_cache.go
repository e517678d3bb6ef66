package rbac

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gemeos/tenant-auth/pkg/auth"
)

// DefaultPermissionCacheSize bounds the in-process cache. Entries are only
// evicted by size, never by age.
const DefaultPermissionCacheSize = 10000

// PermissionCache memoizes permission sets per (user, tenant). Entries never
// expire on their own; the engine clears the whole cache on tenant switch.
type PermissionCache interface {
	Get(ctx context.Context, userID, tenantID string) ([]auth.Permission, bool, error)
	Set(ctx context.Context, userID, tenantID string, perms []auth.Permission) error
	Clear(ctx context.Context) error
}

// CacheKey returns the "{user_id}:{tenant_id}" key
func CacheKey(userID, tenantID string) string {
	return userID + ":" + tenantID
}

// LRUPermissionCache is the in-process PermissionCache
type LRUPermissionCache struct {
	cache *lru.Cache[string, []auth.Permission]
}

// NewLRUPermissionCache creates an in-process cache holding up to size entries
func NewLRUPermissionCache(size int) (*LRUPermissionCache, error) {
	if size <= 0 {
		size = DefaultPermissionCacheSize
	}
	cache, err := lru.New[string, []auth.Permission](size)
	if err != nil {
		return nil, err
	}
	return &LRUPermissionCache{cache: cache}, nil
}

// Get implements PermissionCache.Get
func (c *LRUPermissionCache) Get(_ context.Context, userID, tenantID string) ([]auth.Permission, bool, error) {
	perms, ok := c.cache.Get(CacheKey(userID, tenantID))
	if !ok {
		return nil, false, nil
	}
	return clonePermissions(perms), true, nil
}

// Set implements PermissionCache.Set
func (c *LRUPermissionCache) Set(_ context.Context, userID, tenantID string, perms []auth.Permission) error {
	c.cache.Add(CacheKey(userID, tenantID), clonePermissions(perms))
	return nil
}

// Clear implements PermissionCache.Clear
func (c *LRUPermissionCache) Clear(_ context.Context) error {
	c.cache.Purge()
	return nil
}

// Len returns the number of cached entries
func (c *LRUPermissionCache) Len() int {
	return c.cache.Len()
}

func clonePermissions(perms []auth.Permission) []auth.Permission {
	out := make([]auth.Permission, len(perms))
	copy(out, perms)
	return out
}
