package storage

import (
	"context"
	"sync"
)

// CurrentTenant is the process-wide current tenant pointer. The in-memory
// value wins; the persisted value is read only when nothing is set in memory.
type CurrentTenant struct {
	store TenantStore

	mu       sync.RWMutex
	tenantID string
}

// NewCurrentTenant creates a pointer backed by store; a nil store persists nothing
func NewCurrentTenant(store TenantStore) *CurrentTenant {
	if store == nil {
		store = NewMemoryStore()
	}
	return &CurrentTenant{store: store}
}

// Get returns the in-memory tenant id, else the persisted one, else "".
// A store read failure is reported alongside "" so callers can log it.
func (c *CurrentTenant) Get(ctx context.Context) (string, error) {
	c.mu.RLock()
	id := c.tenantID
	c.mu.RUnlock()
	if id != "" {
		return id, nil
	}
	return c.store.Get(ctx)
}

// Set updates the in-memory pointer and then persists it. The in-memory
// value is kept even when persisting fails.
func (c *CurrentTenant) Set(ctx context.Context, tenantID string) error {
	c.mu.Lock()
	c.tenantID = tenantID
	c.mu.Unlock()
	return c.store.Set(ctx, tenantID)
}

// Reset forgets the in-memory pointer; the persisted value is untouched
func (c *CurrentTenant) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tenantID = ""
}

// Store returns the persistence backend
func (c *CurrentTenant) Store() TenantStore {
	return c.store
}
