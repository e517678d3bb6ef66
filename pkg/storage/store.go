package storage

import (
	"context"
	"fmt"
)

// New creates the TenantStore selected by config.Type along with a func that
// releases its resources
func New(ctx context.Context, config Config) (TenantStore, func() error, error) {
	noop := func() error { return nil }

	switch config.Type {
	case "", "memory":
		return NewMemoryStore(), noop, nil
	case "file":
		store, err := NewFileSystemStore(config.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case "redis":
		client, err := NewRedisClient(ctx, config)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(client, config.RedisKeyPrefix), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown tenant store type: %s", config.Type)
	}
}
