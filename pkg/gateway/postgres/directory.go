package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/gemeos/tenant-auth/pkg/auth"
)

const tenantColumns = `id, name, slug, description, settings, status, subscription_tier, max_users, max_domains, created_at, updated_at`

const roleColumns = `id, name, display_name, description, hierarchy_level, is_system_role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*auth.Tenant, error) {
	t := &auth.Tenant{}
	var description sql.NullString
	var settings []byte
	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &description, &settings, &t.Status,
		&t.SubscriptionTier, &t.MaxUsers, &t.MaxDomains, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Description = description.String
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tenant settings: %w", err)
		}
	}
	return t, nil
}

func scanRole(row rowScanner) (*auth.Role, error) {
	r := &auth.Role{}
	var description sql.NullString
	err := row.Scan(
		&r.ID, &r.Name, &r.DisplayName, &description, &r.HierarchyLevel,
		&r.IsSystemRole, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Description = description.String
	return r, nil
}

// ListActiveMemberships returns the user's active memberships
func (g *Gateway) ListActiveMemberships(ctx context.Context, userID string) ([]auth.Membership, error) {
	query := `
		SELECT id, user_id, tenant_id, role_id, is_primary, status, invited_by, joined_at
		FROM user_tenants
		WHERE user_id = $1 AND status = $2
		ORDER BY joined_at NULLS LAST, id
	`
	rows, err := g.db.QueryContext(ctx, query, userID, string(auth.MembershipActive))
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []auth.Membership
	for rows.Next() {
		var m auth.Membership
		var invitedBy sql.NullString
		var joinedAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.UserID, &m.TenantID, &m.RoleID, &m.IsPrimary, &m.Status, &invitedBy, &joinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		m.InvitedBy = invitedBy.String
		if joinedAt.Valid {
			t := joinedAt.Time
			m.JoinedAt = &t
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return memberships, nil
}

// GetTenantsByIDs fetches all listed tenants in one query
func (g *Gateway) GetTenantsByIDs(ctx context.Context, ids []string) ([]auth.Tenant, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = ANY($1)`
	rows, err := g.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get tenants: %w", err)
	}
	defer rows.Close()

	var tenants []auth.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}

	return tenants, nil
}

// GetRolesByIDs fetches all listed roles in one query
func (g *Gateway) GetRolesByIDs(ctx context.Context, ids []string) ([]auth.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + roleColumns + ` FROM user_roles WHERE id = ANY($1)`
	rows, err := g.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	return roles, nil
}

// GetRoleByName returns the role with name, or nil when there is none
func (g *Gateway) GetRoleByName(ctx context.Context, name string) (*auth.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM user_roles WHERE name = $1`
	role, err := scanRole(g.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// FindUserIDByEmail returns the profile's user id, or "" when there is none
func (g *Gateway) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	var userID string
	err := g.db.QueryRowContext(ctx, `SELECT user_id FROM profiles WHERE email = $1`, email).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	return userID, nil
}

// CreateTenant inserts a tenant and returns the stored row
func (g *Gateway) CreateTenant(ctx context.Context, input auth.CreateTenantInput) (*auth.Tenant, error) {
	tier := input.SubscriptionTier
	if tier == "" {
		tier = auth.TierFree
	}

	query := `
		INSERT INTO tenants (name, slug, description, status, subscription_tier, max_users, max_domains)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + tenantColumns
	tenant, err := scanTenant(g.db.QueryRowContext(ctx, query,
		input.Name, input.Slug, nullString(input.Description), string(auth.TenantStatusActive),
		string(tier), input.MaxUsers, input.MaxDomains,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return tenant, nil
}

// GetTenant fetches one tenant
func (g *Gateway) GetTenant(ctx context.Context, tenantID string) (*auth.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	tenant, err := scanTenant(g.db.QueryRowContext(ctx, query, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &auth.TenantNotFoundError{TenantID: tenantID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return tenant, nil
}

// UpdateTenant applies the non-nil fields of update
func (g *Gateway) UpdateTenant(ctx context.Context, tenantID string, update auth.TenantUpdate) (*auth.Tenant, error) {
	sets := []string{}
	args := []interface{}{}
	argCount := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argCount))
		args = append(args, value)
		argCount++
	}

	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Settings != nil {
		settingsJSON, err := json.Marshal(update.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal settings: %w", err)
		}
		add("settings", settingsJSON)
	}
	if update.Status != nil {
		add("status", string(*update.Status))
	}
	if update.SubscriptionTier != nil {
		add("subscription_tier", string(*update.SubscriptionTier))
	}
	if update.MaxUsers != nil {
		add("max_users", *update.MaxUsers)
	}
	if update.MaxDomains != nil {
		add("max_domains", *update.MaxDomains)
	}

	if len(sets) == 0 {
		return g.GetTenant(ctx, tenantID)
	}
	add("updated_at", g.now())

	query := fmt.Sprintf(`UPDATE tenants SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), argCount, tenantColumns)
	args = append(args, tenantID)

	tenant, err := scanTenant(g.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &auth.TenantNotFoundError{TenantID: tenantID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	return tenant, nil
}

// UpsertMembership inserts or replaces the membership keyed by (user_id, tenant_id).
// An existing membership keeps its primary flag.
func (g *Gateway) UpsertMembership(ctx context.Context, m auth.Membership) error {
	var joinedAt sql.NullTime
	if m.JoinedAt != nil {
		joinedAt = sql.NullTime{Time: *m.JoinedAt, Valid: true}
	}

	query := `
		INSERT INTO user_tenants (user_id, tenant_id, role_id, is_primary, status, invited_by, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, tenant_id) DO UPDATE
		SET role_id = EXCLUDED.role_id, status = EXCLUDED.status, joined_at = EXCLUDED.joined_at
	`
	_, err := g.db.ExecContext(ctx, query,
		m.UserID, m.TenantID, m.RoleID, m.IsPrimary, string(m.Status), nullString(m.InvitedBy), joinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert membership: %w", err)
	}
	return nil
}

// SetMembershipStatus changes the status of a membership
func (g *Gateway) SetMembershipStatus(ctx context.Context, userID, tenantID string, status auth.MembershipStatus) error {
	query := `UPDATE user_tenants SET status = $3 WHERE user_id = $1 AND tenant_id = $2`
	if _, err := g.db.ExecContext(ctx, query, userID, tenantID, string(status)); err != nil {
		return fmt.Errorf("failed to update membership status: %w", err)
	}
	return nil
}

// ListRolePermissions returns permissions granted to the role globally or within tenantID
func (g *Gateway) ListRolePermissions(ctx context.Context, roleID, tenantID string) ([]auth.Permission, error) {
	query := `
		SELECT p.id, p.resource, p.action, p.description
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1 AND (rp.tenant_id = $2 OR rp.tenant_id IS NULL)
	`
	rows, err := g.db.QueryContext(ctx, query, roleID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}
	defer rows.Close()

	var permissions []auth.Permission
	for rows.Next() {
		var p auth.Permission
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action, &description); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		p.Description = description.String
		permissions = append(permissions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permissions: %w", err)
	}

	return permissions, nil
}

// ListAuditLogs returns a tenant's audit logs, newest first
func (g *Gateway) ListAuditLogs(ctx context.Context, tenantID string, filter auth.AuditFilter, limit int) ([]auth.AuditLog, error) {
	query := `
		SELECT id, tenant_id, user_id, action, resource_type, resource_id,
		       changes, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE tenant_id = $1
	`
	args := []interface{}{tenantID}
	argCount := 2

	if filter.ResourceType != "" {
		query += fmt.Sprintf(" AND resource_type = $%d", argCount)
		args = append(args, filter.ResourceType)
		argCount++
	}
	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argCount)
		args = append(args, filter.UserID)
		argCount++
	}
	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *filter.StartDate)
		argCount++
	}
	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *filter.EndDate)
		argCount++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, limit)
	}

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []auth.AuditLog
	for rows.Next() {
		var l auth.AuditLog
		var tenant, user, resourceID, ip, ua sql.NullString
		var changes []byte
		if err := rows.Scan(&l.ID, &tenant, &user, &l.Action, &l.ResourceType, &resourceID,
			&changes, &ip, &ua, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		l.TenantID = tenant.String
		l.UserID = user.String
		l.ResourceID = resourceID.String
		l.IPAddress = ip.String
		l.UserAgent = ua.String
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &l.Changes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit changes: %w", err)
			}
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}

	return logs, nil
}

// PurgeAuditLogs deletes logs created before the cutoff
func (g *Gateway) PurgeAuditLogs(ctx context.Context, before time.Time) (int64, error) {
	result, err := g.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit logs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged audit logs: %w", err)
	}
	return n, nil
}
