package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gemeos/tenant-auth/pkg/audit"
	"github.com/gemeos/tenant-auth/pkg/config"
	"github.com/gemeos/tenant-auth/pkg/gateway"
	"github.com/gemeos/tenant-auth/pkg/gateway/postgres"
	"github.com/gemeos/tenant-auth/pkg/observability"
	"github.com/gemeos/tenant-auth/pkg/rbac"
	"github.com/gemeos/tenant-auth/pkg/session"
	"github.com/gemeos/tenant-auth/pkg/storage"
)

// App is the wired set of components one process uses
type App struct {
	Config    *config.Config
	Logger    *observability.Logger
	Registry  *prometheus.Registry
	Metrics   *observability.Metrics
	Gateway   gateway.Gateway
	Engine    *rbac.Engine
	Audit     *audit.Logger
	Retention *audit.Retention
	Health    *observability.HealthChecker

	db      *sql.DB
	redis   *redis.Client
	closers []func() error
}

// NewApp connects to Postgres (and Redis when configured) and wires the engine
func NewApp(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("database URL is required (set TENANT_AUTH_DATABASE_URL)")
	}

	db, err := postgres.Open(ctx, postgres.ConnectionConfig{
		URL:          cfg.Database.URL,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxLifetime:  cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	app, err := NewAppWithGateway(ctx, cfg, postgres.New(db, cfg.Auth.AccessToken), logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	app.db = db
	app.closers = append(app.closers, db.Close)
	app.Health = observability.NewHealthChecker(db, app.redis, cfg.Observability.OTelServiceVersion)
	return app, nil
}

// NewAppWithGateway wires every component around an existing gateway
func NewAppWithGateway(ctx context.Context, cfg *config.Config, gw gateway.Gateway, logger *observability.Logger) (*App, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = observability.NewMetrics(app.Registry)

	app.Gateway = gateway.NewTraced(gw,
		gateway.WithTimeout(cfg.Auth.RemoteTimeout),
		gateway.WithMetrics(app.Metrics),
	)

	if err := app.wire(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if app.Health == nil {
		app.Health = observability.NewHealthChecker(nil, app.redis, cfg.Observability.OTelServiceVersion)
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	store, err := a.tenantStore(ctx)
	if err != nil {
		return err
	}
	current := storage.NewCurrentTenant(store)

	perms, err := a.permissionCache(ctx)
	if err != nil {
		return err
	}

	sessions := session.NewCache(a.Gateway,
		session.WithTTL(cfg.Auth.SessionTTL),
		session.WithPlatformAdminRoles(cfg.Auth.PlatformAdminRoles),
		session.WithSeedAdminEmail(cfg.Auth.SeedAdminEmail),
		session.WithLogger(a.Logger),
		session.WithMetrics(a.Metrics),
	)

	a.Audit = audit.NewLogger(a.Gateway, current,
		audit.WithAsyncTimeout(cfg.Audit.AsyncTimeout),
		audit.WithLogger(a.Logger),
		audit.WithMetrics(a.Metrics),
	)
	a.Retention = audit.NewRetention(a.Gateway, cfg.Audit.RetentionDays, cfg.Audit.RetentionSchedule,
		audit.WithRetentionLogger(a.Logger),
		audit.WithRetentionMetrics(a.Metrics),
	)

	a.Engine, err = rbac.NewEngine(rbac.Deps{
		Gateway:     a.Gateway,
		Sessions:    sessions,
		Tenant:      current,
		Permissions: perms,
		Audit:       a.Audit,
	},
		rbac.WithLogger(a.Logger),
		rbac.WithMetrics(a.Metrics),
		rbac.WithBulkCheckWorkers(cfg.Auth.BulkCheckWorkers),
	)
	return err
}

func (a *App) tenantStore(ctx context.Context) (storage.TenantStore, error) {
	cfg := a.Config
	if cfg.Auth.TenantStore == config.BackendRedis {
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open tenant store: %w", err)
		}
		return storage.NewRedisStore(client, ""), nil
	}

	store, closeStore, err := storage.New(ctx, storage.Config{
		Type:     cfg.Auth.TenantStore,
		FilePath: cfg.Auth.TenantStateFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open tenant store: %w", err)
	}
	a.closers = append(a.closers, closeStore)
	return store, nil
}

func (a *App) permissionCache(ctx context.Context) (rbac.PermissionCache, error) {
	cfg := a.Config
	if cfg.Auth.PermissionCache != config.BackendRedis {
		return rbac.NewLRUPermissionCache(cfg.Auth.PermissionCacheSize)
	}

	client, err := a.redisClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect permission cache: %w", err)
	}
	return rbac.NewRedisPermissionCache(client, ""), nil
}

// redisClient returns the process's one Redis client, connecting on first use.
// The health checker watches the same client.
func (a *App) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}

	cfg := a.Config
	client, err := storage.NewRedisClient(ctx, storage.Config{
		RedisURL:        cfg.Redis.URL,
		RedisPoolSize:   cfg.Redis.PoolSize,
		RedisMaxRetries: cfg.Redis.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

// Close flushes pending audit writes and releases connections
func (a *App) Close() error {
	if a.Retention != nil {
		a.Retention.Stop()
	}
	if a.Audit != nil {
		timeout := a.Config.Audit.AsyncTimeout
		if timeout <= 0 {
			timeout = audit.DefaultAsyncTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.Audit.Flush(ctx); err != nil {
			a.Logger.WithError(err).Warn("Pending audit writes were abandoned")
		}
		cancel()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
