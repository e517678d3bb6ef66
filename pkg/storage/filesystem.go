package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileSystemStore persists client state as a small JSON document on disk
type FileSystemStore struct {
	path string
	mu   sync.Mutex
}

// NewFileSystemStore creates a file-backed store, creating the parent directory
func NewFileSystemStore(path string) (*FileSystemStore, error) {
	if path == "" {
		return nil, errors.New("state file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileSystemStore{path: path}, nil
}

// Path returns the state file location
func (s *FileSystemStore) Path() string {
	return s.path
}

// Get implements TenantStore.Get
func (s *FileSystemStore) Get(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return "", err
	}
	return state[CurrentTenantKey], nil
}

// Set implements TenantStore.Set
func (s *FileSystemStore) Set(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		// A corrupt file is replaced rather than blocking tenant switches.
		state = make(map[string]string)
	}
	state[CurrentTenantKey] = tenantID
	return s.write(state)
}

// Clear implements TenantStore.Clear
func (s *FileSystemStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		state = make(map[string]string)
	}
	delete(state, CurrentTenantKey)
	return s.write(state)
}

func (s *FileSystemStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	state := make(map[string]string)
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, nil
}

// write replaces the file atomically via rename
func (s *FileSystemStore) write(state map[string]string) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
