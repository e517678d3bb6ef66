package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps the current tenant id in process memory only
type MemoryStore struct {
	mu       sync.RWMutex
	tenantID string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get implements TenantStore.Get
func (s *MemoryStore) Get(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenantID, nil
}

// Set implements TenantStore.Set
func (s *MemoryStore) Set(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenantID = tenantID
	return nil
}

// Clear implements TenantStore.Clear
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenantID = ""
	return nil
}
