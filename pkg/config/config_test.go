package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemeos/tenant-auth/pkg/observability"
)

// isolate points the optional files at a temp dir so a developer's .env never leaks into tests
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(EnvDotenvFile, filepath.Join(dir, "missing.env"))
	t.Setenv(EnvConfigFile, "")
	return dir
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "custom")
	t.Setenv("TEST_BOOL", "1")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_DURATION", "250ms")
	t.Setenv("TEST_LIST", " platform_admin, ,owner ")

	assert.Equal(t, "custom", getEnv("TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("TEST_STR_UNSET", "default"))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 0))
	assert.Equal(t, 7, getEnvInt("TEST_BAD_INT", 7))
	assert.Equal(t, 250*time.Millisecond, getEnvDuration("TEST_DURATION", time.Second))
	assert.Equal(t, []string{"platform_admin", "owner"}, getEnvList("TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvList("TEST_LIST_UNSET", []string{"x"}))
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Auth.SessionTTL)
	assert.Equal(t, 10*time.Second, cfg.Auth.RemoteTimeout)
	assert.Equal(t, []string{"platform_admin", "super_admin"}, cfg.Auth.PlatformAdminRoles)
	assert.Equal(t, "admin@gemeos.ai", cfg.Auth.SeedAdminEmail)
	assert.Equal(t, BackendMemory, cfg.Auth.PermissionCache)
	assert.Equal(t, BackendFile, cfg.Auth.TenantStore)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("TENANT_AUTH_SESSION_TTL", "2s")
	t.Setenv("TENANT_AUTH_REMOTE_TIMEOUT", "0s")
	t.Setenv("TENANT_AUTH_LOG_LEVEL", "debug")
	t.Setenv("TENANT_AUTH_PLATFORM_ADMIN_ROLES", "root")
	t.Setenv("TENANT_AUTH_SEED_ADMIN_EMAIL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Auth.SessionTTL)
	assert.Equal(t, time.Duration(0), cfg.Auth.RemoteTimeout)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, []string{"root"}, cfg.Auth.PlatformAdminRoles)
	assert.Empty(t, cfg.Auth.SeedAdminEmail, "explicitly empty seed admin disables it")
}

func TestLoadConfig_YAMLOverlay(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "tenant-auth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
auth:
  session_ttl: 3s
  permission_cache: redis
redis:
  url: redis://localhost:6379/0
audit:
  retention_days: 90
observability:
  log_level: warn
`), 0o600))
	t.Setenv(EnvConfigFile, path)
	t.Setenv("TENANT_AUTH_AUDIT_RETENTION_DAYS", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Auth.SessionTTL)
	assert.Equal(t, BackendRedis, cfg.Auth.PermissionCache)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 30, cfg.Audit.RetentionDays, "env wins over file")
	assert.Equal(t, observability.WarnLevel, cfg.Observability.LogLevel)
	assert.Equal(t, "admin@gemeos.ai", cfg.Auth.SeedAdminEmail, "absent keys keep defaults")
}

func TestLoadConfig_Dotenv(t *testing.T) {
	dir := isolate(t)

	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("TENANT_AUTH_DOTENV_SAMPLE_TTL=4s\n"), 0o600))
	t.Setenv(EnvDotenvFile, envPath)
	t.Cleanup(func() { os.Unsetenv("TENANT_AUTH_DOTENV_SAMPLE_TTL") })

	_, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "4s", os.Getenv("TENANT_AUTH_DOTENV_SAMPLE_TTL"))
}

func TestLoadConfig_BadYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth: [unclosed"), 0o600))
	t.Setenv(EnvConfigFile, path)

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero session TTL",
			mutate:  func(c *Config) { c.Auth.SessionTTL = 0 },
			wantErr: "session TTL must be positive",
		},
		{
			name:    "negative remote timeout",
			mutate:  func(c *Config) { c.Auth.RemoteTimeout = -time.Second },
			wantErr: "remote timeout must not be negative",
		},
		{
			name:    "redis cache without URL",
			mutate:  func(c *Config) { c.Auth.PermissionCache = BackendRedis },
			wantErr: "redis URL is required for the redis permission cache",
		},
		{
			name:    "unknown cache backend",
			mutate:  func(c *Config) { c.Auth.PermissionCache = "memcached" },
			wantErr: "invalid permission cache",
		},
		{
			name:    "file store without path",
			mutate:  func(c *Config) { c.Auth.TenantStateFile = "" },
			wantErr: "tenant state file is required",
		},
		{
			name:    "unknown tenant store",
			mutate:  func(c *Config) { c.Auth.TenantStore = "s3" },
			wantErr: "invalid tenant store",
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.Server.RateLimitPerMinute = -1 },
			wantErr: "rate limit settings must not be negative",
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.Audit.RetentionDays = -1 },
			wantErr: "audit retention days must not be negative",
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelEndpoint = ""
			},
			wantErr: "OpenTelemetry endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
