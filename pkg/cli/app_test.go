package cli

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemeos/tenant-auth/pkg/config"
	"github.com/gemeos/tenant-auth/pkg/observability"
	"github.com/gemeos/tenant-auth/pkg/storage"
)

func TestNewAppWithGateway_HealthWatchesTenantStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTestCLI(t)
	c.cfg.Auth.TenantStore = config.BackendRedis
	c.cfg.Auth.PermissionCache = config.BackendMemory
	c.cfg.Redis.URL = "redis://" + mr.Addr()

	ctx := context.Background()
	app, err := NewAppWithGateway(ctx, c.cfg, c.fake, nil)
	require.NoError(t, err)
	defer app.Close()

	status := app.Health.Check(ctx)
	require.Contains(t, status.Dependencies, "redis")
	assert.Equal(t, observability.StatusHealthy, status.Dependencies["redis"].Status)
	assert.Equal(t, observability.StatusHealthy, status.Status)

	mr.Close()
	status = app.Health.Check(ctx)
	assert.Equal(t, observability.StatusUnhealthy, status.Dependencies["redis"].Status)
	assert.Equal(t, observability.StatusDegraded, status.Status)
}

func TestNewAppWithGateway_SharesOneRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTestCLI(t)
	c.cfg.Auth.TenantStore = config.BackendRedis
	c.cfg.Auth.PermissionCache = config.BackendRedis
	c.cfg.Redis.URL = "redis://" + mr.Addr()

	ctx := context.Background()
	app, err := NewAppWithGateway(ctx, c.cfg, c.fake, nil)
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.redis)
	assert.Len(t, app.closers, 1, "store and permission cache share the client")

	ok, err := app.Engine.SwitchTenant(ctx, "tenant-2")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := mr.Get(storage.NewRedisStore(nil, "").Key())
	require.NoError(t, err)
	assert.Equal(t, "tenant-2", got)
	assert.Contains(t, app.Health.Check(ctx).Dependencies, "redis")
}

func TestNewAppWithGateway_NoRedisWithoutRedisBackends(t *testing.T) {
	c := newTestCLI(t)

	app, err := NewAppWithGateway(context.Background(), c.cfg, c.fake, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.redis)
	assert.NotContains(t, app.Health.Check(context.Background()).Dependencies, "redis")
}
