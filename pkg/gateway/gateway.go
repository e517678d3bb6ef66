package gateway

import (
	"context"
	"time"

	"github.com/gemeos/tenant-auth/pkg/auth"
)

// AuthUser is the identity returned by the auth subsystem
type AuthUser struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AuthSession is the auth subsystem's view of the logged-in session
type AuthSession struct {
	User      AuthUser  `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthClient is the remote auth subsystem.
// GetSession and GetUser return nil with a nil error when nobody is logged in.
type AuthClient interface {
	GetSession(ctx context.Context) (*AuthSession, error)
	GetUser(ctx context.Context) (*AuthUser, error)
	SignOut(ctx context.Context) error
	InviteUserByEmail(ctx context.Context, email string, metadata map[string]any) error
}

// Directory is the table-style query surface of the remote data store
type Directory interface {
	// ListActiveMemberships returns the user's memberships with status active.
	// Tenant and Role are not populated.
	ListActiveMemberships(ctx context.Context, userID string) ([]auth.Membership, error)
	GetTenantsByIDs(ctx context.Context, ids []string) ([]auth.Tenant, error)
	GetRolesByIDs(ctx context.Context, ids []string) ([]auth.Role, error)
	// GetRoleByName returns nil with a nil error when no role has that name
	GetRoleByName(ctx context.Context, name string) (*auth.Role, error)
	// FindUserIDByEmail returns "" with a nil error when no user has that email
	FindUserIDByEmail(ctx context.Context, email string) (string, error)

	CreateTenant(ctx context.Context, input auth.CreateTenantInput) (*auth.Tenant, error)
	GetTenant(ctx context.Context, tenantID string) (*auth.Tenant, error)
	UpdateTenant(ctx context.Context, tenantID string, update auth.TenantUpdate) (*auth.Tenant, error)

	// UpsertMembership inserts or replaces the membership keyed by (user_id, tenant_id)
	UpsertMembership(ctx context.Context, m auth.Membership) error
	SetMembershipStatus(ctx context.Context, userID, tenantID string, status auth.MembershipStatus) error

	// ListRolePermissions returns permissions granted to roleID either
	// globally or scoped to tenantID
	ListRolePermissions(ctx context.Context, roleID, tenantID string) ([]auth.Permission, error)

	// ListAuditLogs returns up to limit logs for tenantID, newest first
	ListAuditLogs(ctx context.Context, tenantID string, filter auth.AuditFilter, limit int) ([]auth.AuditLog, error)
	// PurgeAuditLogs deletes logs created before the cutoff and returns the count removed
	PurgeAuditLogs(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is the argument set of the create_audit_log procedure.
// An empty TenantID is passed through as NULL.
type AuditEntry struct {
	TenantID     string
	Action       string
	ResourceType string
	ResourceID   string
	Changes      map[string]any
}

// Procedures are the remote stored procedures
type Procedures interface {
	UserHasPermission(ctx context.Context, userID, tenantID string, resource auth.Resource, action auth.Action) (bool, error)
	CreateAuditLog(ctx context.Context, entry AuditEntry) error
}

// Gateway is the full remote data gateway
type Gateway interface {
	AuthClient
	Directory
	Procedures
}
