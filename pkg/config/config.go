package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gemeos/tenant-auth/pkg/observability"
)

// Environment variables naming the optional files read by Load
const (
	EnvConfigFile = "TENANT_AUTH_CONFIG"
	EnvDotenvFile = "TENANT_AUTH_ENV_FILE"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds the local admin HTTP API configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RateLimitPerMinute caps /v1 requests per client; 0 disables
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	RateLimitBurst     int `yaml:"rate_limit_burst"`
}

// DatabaseConfig holds the Postgres gateway connection settings
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds the optional shared cache connection settings
type RedisConfig struct {
	URL        string `yaml:"url"`
	PoolSize   int    `yaml:"pool_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// Backend names for the permission cache and tenant state store
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// AuthConfig holds session and authorization settings
type AuthConfig struct {
	// AccessToken identifies the logged-in user to the auth subsystem
	AccessToken string `yaml:"access_token"`

	SessionTTL    time.Duration `yaml:"session_ttl"`
	RemoteTimeout time.Duration `yaml:"remote_timeout"`

	PlatformAdminRoles []string `yaml:"platform_admin_roles"`
	// SeedAdminEmail is always treated as platform admin; empty disables
	SeedAdminEmail string `yaml:"seed_admin_email"`

	PermissionCache     string `yaml:"permission_cache"`
	PermissionCacheSize int    `yaml:"permission_cache_size"`

	TenantStore     string `yaml:"tenant_store"`
	TenantStateFile string `yaml:"tenant_state_file"`

	BulkCheckWorkers int `yaml:"bulk_check_workers"`
}

// AuditConfig holds audit write and retention settings
type AuditConfig struct {
	AsyncTimeout      time.Duration `yaml:"async_timeout"`
	RetentionDays     int           `yaml:"retention_days"`
	RetentionSchedule string        `yaml:"retention_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevelName string                 `yaml:"log_level"`
	LogLevel     observability.LogLevel `yaml:"-"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8787",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,

			RateLimitPerMinute: 600,
			RateLimitBurst:     60,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
		},
		Auth: AuthConfig{
			SessionTTL:          5 * time.Second,
			RemoteTimeout:       10 * time.Second,
			PlatformAdminRoles:  []string{"platform_admin", "super_admin"},
			SeedAdminEmail:      "admin@gemeos.ai",
			PermissionCache:     BackendMemory,
			PermissionCacheSize: 10000,
			TenantStore:         BackendFile,
			TenantStateFile:     defaultTenantStateFile(),
			BulkCheckWorkers:    4,
		},
		Audit: AuditConfig{
			AsyncTimeout:      5 * time.Second,
			RetentionDays:     0,
			RetentionSchedule: "@daily",
		},
		Observability: ObservabilityConfig{
			LogLevelName:       "info",
			LogLevel:           observability.InfoLevel,
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "tenant-auth",
			OTelServiceVersion: "dev",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

func defaultTenantStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".tenant-auth/state.json"
	}
	return dir + "/tenant-auth/state.json"
}

// LoadConfig loads configuration in three layers: defaults, then the YAML
// file named by TENANT_AUTH_CONFIG (if any), then environment variables.
// A .env file (or the file named by TENANT_AUTH_ENV_FILE) is read first and
// never overrides variables already present in the environment.
func LoadConfig() (*Config, error) {
	if err := loadDotenv(getEnv(EnvDotenvFile, ".env")); err != nil {
		return nil, err
	}

	cfg := Default()

	if path := getEnv(EnvConfigFile, ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadDotenv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load env file %s: %w", path, err)
}

// mergeFile overlays the YAML file at path onto c. Keys absent from the file keep their current values.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides c with any TENANT_AUTH_* environment variables that are set
func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("TENANT_AUTH_API_ADDR", c.Server.Addr)
	c.Server.ReadTimeout = getEnvDuration("TENANT_AUTH_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("TENANT_AUTH_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("TENANT_AUTH_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("TENANT_AUTH_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.RateLimitPerMinute = getEnvInt("TENANT_AUTH_RATE_LIMIT_PER_MINUTE", c.Server.RateLimitPerMinute)
	c.Server.RateLimitBurst = getEnvInt("TENANT_AUTH_RATE_LIMIT_BURST", c.Server.RateLimitBurst)

	c.Database.URL = getEnv("TENANT_AUTH_DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = getEnvInt("TENANT_AUTH_DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("TENANT_AUTH_DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("TENANT_AUTH_DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)

	c.Redis.URL = getEnv("TENANT_AUTH_REDIS_URL", c.Redis.URL)
	c.Redis.PoolSize = getEnvInt("TENANT_AUTH_REDIS_POOL_SIZE", c.Redis.PoolSize)
	c.Redis.MaxRetries = getEnvInt("TENANT_AUTH_REDIS_MAX_RETRIES", c.Redis.MaxRetries)

	c.Auth.AccessToken = getEnv("TENANT_AUTH_ACCESS_TOKEN", c.Auth.AccessToken)
	c.Auth.SessionTTL = getEnvDuration("TENANT_AUTH_SESSION_TTL", c.Auth.SessionTTL)
	c.Auth.RemoteTimeout = getEnvDuration("TENANT_AUTH_REMOTE_TIMEOUT", c.Auth.RemoteTimeout)
	c.Auth.PlatformAdminRoles = getEnvList("TENANT_AUTH_PLATFORM_ADMIN_ROLES", c.Auth.PlatformAdminRoles)
	// An explicitly empty value disables the seed admin, so presence matters here.
	if v, ok := os.LookupEnv("TENANT_AUTH_SEED_ADMIN_EMAIL"); ok {
		c.Auth.SeedAdminEmail = strings.TrimSpace(v)
	}
	c.Auth.PermissionCache = getEnv("TENANT_AUTH_PERMISSION_CACHE", c.Auth.PermissionCache)
	c.Auth.PermissionCacheSize = getEnvInt("TENANT_AUTH_PERMISSION_CACHE_SIZE", c.Auth.PermissionCacheSize)
	c.Auth.TenantStore = getEnv("TENANT_AUTH_TENANT_STORE", c.Auth.TenantStore)
	c.Auth.TenantStateFile = getEnv("TENANT_AUTH_TENANT_STATE_FILE", c.Auth.TenantStateFile)
	c.Auth.BulkCheckWorkers = getEnvInt("TENANT_AUTH_BULK_CHECK_WORKERS", c.Auth.BulkCheckWorkers)

	c.Audit.AsyncTimeout = getEnvDuration("TENANT_AUTH_AUDIT_ASYNC_TIMEOUT", c.Audit.AsyncTimeout)
	c.Audit.RetentionDays = getEnvInt("TENANT_AUTH_AUDIT_RETENTION_DAYS", c.Audit.RetentionDays)
	c.Audit.RetentionSchedule = getEnv("TENANT_AUTH_AUDIT_RETENTION_SCHEDULE", c.Audit.RetentionSchedule)

	c.Observability.LogLevelName = getEnv("TENANT_AUTH_LOG_LEVEL", c.Observability.LogLevelName)
	c.Observability.LogLevel = observability.ParseLogLevel(c.Observability.LogLevelName)
	c.Observability.MetricsEnabled = getEnvBool("TENANT_AUTH_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTelEnabled = getEnvBool("TENANT_AUTH_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("TENANT_AUTH_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("TENANT_AUTH_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("TENANT_AUTH_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("TENANT_AUTH_OTEL_INSECURE", c.Observability.OTelInsecure)
	c.Observability.OTelSampleRatio = getEnvFloat("TENANT_AUTH_OTEL_SAMPLE_RATIO", c.Observability.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Auth.RemoteTimeout < 0 {
		return fmt.Errorf("remote timeout must not be negative")
	}

	switch c.Auth.PermissionCache {
	case BackendMemory:
		if c.Auth.PermissionCacheSize <= 0 {
			return fmt.Errorf("permission cache size must be positive")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for the redis permission cache")
		}
	default:
		return fmt.Errorf("invalid permission cache: %s (must be memory or redis)", c.Auth.PermissionCache)
	}

	switch c.Auth.TenantStore {
	case BackendMemory:
	case BackendFile:
		if c.Auth.TenantStateFile == "" {
			return fmt.Errorf("tenant state file is required for the file tenant store")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for the redis tenant store")
		}
	default:
		return fmt.Errorf("invalid tenant store: %s (must be memory, file, or redis)", c.Auth.TenantStore)
	}

	if c.Server.RateLimitPerMinute < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}

	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit retention days must not be negative")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
