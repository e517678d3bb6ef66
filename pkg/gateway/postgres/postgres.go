package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/gemeos/tenant-auth/pkg/gateway"
)

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	PingTimeout  time.Duration
}

// Open connects to Postgres, configures the pool, and verifies the connection
func Open(ctx context.Context, cfg ConnectionConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Gateway implements gateway.Gateway against the dashboard's Postgres schema.
// The logged-in identity is the holder of accessToken.
type Gateway struct {
	db          *sql.DB
	accessToken string
	now         func() time.Time
}

// New creates a Postgres gateway acting for the holder of accessToken.
// An empty token means nobody is logged in.
func New(db *sql.DB, accessToken string) *Gateway {
	return &Gateway{
		db:          db,
		accessToken: accessToken,
		now:         time.Now,
	}
}

var _ gateway.Gateway = (*Gateway)(nil)

// DB returns the underlying connection pool
func (g *Gateway) DB() *sql.DB {
	return g.db
}

// HashToken returns the hex SHA-256 digest stored in auth_sessions.token_hash
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
