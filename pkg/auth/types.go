package auth

import "time"

// TenantStatus represents the lifecycle state of a tenant
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusTrial     TenantStatus = "trial"
	TenantStatusInactive  TenantStatus = "inactive"
)

// SubscriptionTier represents a tenant's plan
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierBasic      SubscriptionTier = "basic"
	TierPremium    SubscriptionTier = "premium"
	TierEnterprise SubscriptionTier = "enterprise"
)

// MembershipStatus represents the state of a user's membership in a tenant
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipInvited   MembershipStatus = "invited"
	MembershipSuspended MembershipStatus = "suspended"
	MembershipInactive  MembershipStatus = "inactive"
)

// Tenant represents an isolated customer unit, typically a school
type Tenant struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Slug             string           `json:"slug"`
	Description      string           `json:"description,omitempty"`
	Settings         map[string]any   `json:"settings,omitempty"`
	Status           TenantStatus     `json:"status"`
	SubscriptionTier SubscriptionTier `json:"subscription_tier"`
	MaxUsers         int              `json:"max_users"`
	MaxDomains       int              `json:"max_domains"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Role represents a named role that can be held within a tenant
type Role struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	DisplayName    string    `json:"display_name"`
	Description    string    `json:"description,omitempty"`
	HierarchyLevel int       `json:"hierarchy_level"`
	IsSystemRole   bool      `json:"is_system_role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// System role names
const (
	RolePlatformAdmin = "platform_admin"
	RoleSuperAdmin    = "super_admin"
	RoleTenantAdmin   = "tenant_admin"
	RoleTeacher       = "teacher"
	RoleStudent       = "student"
)

// Membership associates a user with a tenant and a role.
// Tenant and Role are populated when the membership is resolved into a session.
type Membership struct {
	ID        string           `json:"id,omitempty"`
	UserID    string           `json:"user_id"`
	TenantID  string           `json:"tenant_id"`
	RoleID    string           `json:"role_id"`
	IsPrimary bool             `json:"is_primary"`
	Status    MembershipStatus `json:"status"`
	InvitedBy string           `json:"invited_by,omitempty"`
	JoinedAt  *time.Time       `json:"joined_at,omitempty"`
	Tenant    *Tenant          `json:"tenant,omitempty"`
	Role      *Role            `json:"role,omitempty"`
}

// RoleName returns the resolved role name, or "" if the role is not populated
func (m *Membership) RoleName() string {
	if m == nil || m.Role == nil {
		return ""
	}
	return m.Role.Name
}

// Resource is an open enum of things permissions apply to
type Resource string

const (
	ResourceUsers         Resource = "users"
	ResourceDomains       Resource = "domains"
	ResourceConcepts      Resource = "concepts"
	ResourceLearningGoals Resource = "learning_goals"
	ResourceTenants       Resource = "tenants"
	ResourceReports       Resource = "reports"
)

// Action is an open enum of operations on a resource
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionInvite  Action = "invite"
	ActionAssign  Action = "assign"
	ActionPublish Action = "publish"
	ActionView    Action = "view"
	ActionExport  Action = "export"
)

// Permission is a (resource, action) grant
type Permission struct {
	ID          string   `json:"id,omitempty"`
	Resource    Resource `json:"resource"`
	Action      Action   `json:"action"`
	Description string   `json:"description,omitempty"`
}

// String returns the permission as "resource:action"
func (p Permission) String() string {
	return PermissionRef{Resource: p.Resource, Action: p.Action}.String()
}

// PermissionRef names a permission without its metadata
type PermissionRef struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns the reference as "resource:action"
func (r PermissionRef) String() string {
	return string(r.Resource) + ":" + string(r.Action)
}

// Session is the resolved identity of the current process: who is logged in
// and which tenants and roles they hold.
type Session struct {
	UserID          string       `json:"user_id"`
	Email           string       `json:"email"`
	Tenants         []Membership `json:"tenants"`
	CurrentTenant   *Membership  `json:"current_tenant,omitempty"`
	IsPlatformAdmin bool         `json:"is_platform_admin"`
}

// HasTenant reports whether tenantID is among the session's memberships
func (s *Session) HasTenant(tenantID string) bool {
	if s == nil {
		return false
	}
	for _, m := range s.Tenants {
		if m.TenantID == tenantID {
			return true
		}
	}
	return false
}

// Membership returns the membership for tenantID, or nil
func (s *Session) Membership(tenantID string) *Membership {
	if s == nil {
		return nil
	}
	for i := range s.Tenants {
		if s.Tenants[i].TenantID == tenantID {
			return &s.Tenants[i]
		}
	}
	return nil
}

// SelectCurrentTenant picks the primary membership, falling back to the first
func SelectCurrentTenant(memberships []Membership) *Membership {
	for i := range memberships {
		if memberships[i].IsPrimary {
			return &memberships[i]
		}
	}
	if len(memberships) > 0 {
		return &memberships[0]
	}
	return nil
}

// TenantContext bundles everything needed for authorization decisions within
// the current tenant.
type TenantContext struct {
	Tenant      *Tenant      `json:"tenant"`
	Role        *Role        `json:"user_role"`
	Permissions []Permission `json:"permissions"`
}

// Can reports whether the context grants resource/action
func (tc *TenantContext) Can(resource Resource, action Action) bool {
	if tc == nil {
		return false
	}
	for _, p := range tc.Permissions {
		if p.Resource == resource && p.Action == action {
			return true
		}
	}
	return false
}

// AuditLog is a recorded mutating action within a tenant
type AuditLog struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditFilter narrows an audit log query
type AuditFilter struct {
	ResourceType string     `json:"resource_type,omitempty"`
	UserID       string     `json:"user_id,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
}

// CreateTenantInput is the payload for creating a tenant
type CreateTenantInput struct {
	Name             string           `json:"name"`
	Slug             string           `json:"slug"`
	Description      string           `json:"description,omitempty"`
	SubscriptionTier SubscriptionTier `json:"subscription_tier,omitempty"`
	MaxUsers         int              `json:"max_users,omitempty"`
	MaxDomains       int              `json:"max_domains,omitempty"`
}

// TenantUpdate holds the mutable tenant fields; nil fields are left untouched
type TenantUpdate struct {
	Name             *string           `json:"name,omitempty"`
	Description      *string           `json:"description,omitempty"`
	Settings         map[string]any    `json:"settings,omitempty"`
	Status           *TenantStatus     `json:"status,omitempty"`
	SubscriptionTier *SubscriptionTier `json:"subscription_tier,omitempty"`
	MaxUsers         *int              `json:"max_users,omitempty"`
	MaxDomains       *int              `json:"max_domains,omitempty"`
}

// InviteUserInput is the payload for inviting a user into a tenant
type InviteUserInput struct {
	Email    string   `json:"email"`
	TenantID string   `json:"tenant_id"`
	Role     string   `json:"role"`
	Domains  []string `json:"domains,omitempty"`
}

// AssignRoleInput is the payload for granting a role in a tenant
type AssignRoleInput struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}
