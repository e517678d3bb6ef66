package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/gateway"
)

// UserHasPermission calls the user_has_permission procedure
func (g *Gateway) UserHasPermission(ctx context.Context, userID, tenantID string, resource auth.Resource, action auth.Action) (bool, error) {
	var allowed sql.NullBool
	err := g.db.QueryRowContext(ctx, `SELECT user_has_permission($1, $2, $3, $4)`,
		userID, tenantID, string(resource), string(action),
	).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return allowed.Valid && allowed.Bool, nil
}

// CreateAuditLog calls the create_audit_log procedure. Empty ids are sent as NULL.
func (g *Gateway) CreateAuditLog(ctx context.Context, entry gateway.AuditEntry) error {
	var changes interface{}
	if entry.Changes != nil {
		changesJSON, err := json.Marshal(entry.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal audit changes: %w", err)
		}
		changes = changesJSON
	}

	_, err := g.db.ExecContext(ctx, `SELECT create_audit_log($1, $2, $3, $4, $5)`,
		nullString(entry.TenantID), entry.Action, entry.ResourceType, nullString(entry.ResourceID), changes,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}
