// Package config provides application configuration management.
//
// Configuration is layered: built-in defaults, then an optional YAML file
// named by TENANT_AUTH_CONFIG, then TENANT_AUTH_* environment variables. A
// .env file (or the file named by TENANT_AUTH_ENV_FILE) is loaded into the
// environment first without overriding variables that are already set.
//
// # Configuration Structure
//
// Session and authorization:
//
//	TENANT_AUTH_ACCESS_TOKEN="..."            # token of the logged-in user
//	TENANT_AUTH_SESSION_TTL="5s"
//	TENANT_AUTH_REMOTE_TIMEOUT="10s"          # 0 disables
//	TENANT_AUTH_PLATFORM_ADMIN_ROLES="platform_admin,super_admin"
//	TENANT_AUTH_SEED_ADMIN_EMAIL="admin@gemeos.ai"   # empty disables
//	TENANT_AUTH_PERMISSION_CACHE="memory"     # memory, redis
//	TENANT_AUTH_TENANT_STORE="file"           # memory, file, redis
//
// Remote data:
//
//	TENANT_AUTH_DATABASE_URL="postgres://localhost/gemeos?sslmode=disable"
//	TENANT_AUTH_REDIS_URL="redis://localhost:6379/0"
//
// Audit:
//
//	TENANT_AUTH_AUDIT_RETENTION_DAYS="90"     # 0 disables purging
//	TENANT_AUTH_AUDIT_RETENTION_SCHEDULE="@daily"
//
// Observability:
//
//	TENANT_AUTH_LOG_LEVEL="info"  # debug, info, warn, error
//	TENANT_AUTH_METRICS_ENABLED="true"
//	TENANT_AUTH_OTEL_ENABLED="true"
//	TENANT_AUTH_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
