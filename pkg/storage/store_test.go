package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every TenantStore must share
func exerciseStore(t *testing.T, store TenantStore) {
	t.Helper()
	ctx := context.Background()

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", got, "empty store returns empty id")

	require.NoError(t, store.Set(ctx, "tenant-1"))
	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", got)

	require.NoError(t, store.Set(ctx, "tenant-2"))
	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tenant-2", got)

	require.NoError(t, store.Clear(ctx))
	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	require.NoError(t, store.Clear(ctx), "clearing twice is fine")
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileSystemStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store, err := NewFileSystemStore(path)
	require.NoError(t, err)

	exerciseStore(t, store)
}

func TestFileSystemStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	first, err := NewFileSystemStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "tenant-9"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"current_tenant_id": "tenant-9"`)

	second, err := NewFileSystemStore(path)
	require.NoError(t, err)
	got, err := second.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tenant-9", got)
}

func TestFileSystemStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	ctx := context.Background()

	store, err := NewFileSystemStore(path)
	require.NoError(t, err)

	_, err = store.Get(ctx)
	assert.Error(t, err)

	require.NoError(t, store.Set(ctx, "tenant-1"), "set overwrites a corrupt file")
	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", got)
}

func TestNewFileSystemStore_RequiresPath(t *testing.T) {
	_, err := NewFileSystemStore("")
	assert.Error(t, err)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), Config{RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisStore(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewRedisStore(client, "")

	exerciseStore(t, store)

	require.NoError(t, store.Set(context.Background(), "tenant-3"))
	val, err := mr.Get("tenant-auth:current_tenant_id")
	require.NoError(t, err)
	assert.Equal(t, "tenant-3", val)
	assert.Zero(t, mr.TTL(store.Key()), "state never expires")
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewRedisStore(client, "test:")
	mr.Close()

	_, err := store.Get(context.Background())
	assert.Error(t, err)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), Config{RedisURL: "://bad"})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := New(ctx, Config{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
	assert.NoError(t, closeFn())

	store, closeFn, err = New(ctx, Config{Type: "file", FilePath: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileSystemStore{}, store)
	assert.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	store, closeFn, err = New(ctx, Config{Type: "redis", RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, store)
	assert.NoError(t, closeFn())

	_, _, err = New(ctx, Config{Type: "etcd"})
	assert.Error(t, err)
}
