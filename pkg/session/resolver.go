package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/gateway"
)

// Resolver builds a Session from an authenticated user by loading the user's
// active memberships and batch-resolving their tenants and roles.
type Resolver struct {
	dir            gateway.Directory
	adminRoles     map[string]struct{}
	seedAdminEmail string
}

// NewResolver creates a resolver. Any membership whose role name is in
// adminRoles marks the session as platform admin, as does a user whose
// email equals seedAdminEmail (ignored when empty).
func NewResolver(dir gateway.Directory, adminRoles []string, seedAdminEmail string) *Resolver {
	roles := make(map[string]struct{}, len(adminRoles))
	for _, r := range adminRoles {
		roles[r] = struct{}{}
	}
	return &Resolver{
		dir:            dir,
		adminRoles:     roles,
		seedAdminEmail: strings.TrimSpace(seedAdminEmail),
	}
}

// Resolve performs exactly three remote calls: memberships, tenants, roles.
// The latter two are skipped when the user has no memberships.
func (r *Resolver) Resolve(ctx context.Context, user gateway.AuthUser) (*auth.Session, error) {
	memberships, err := r.dir.ListActiveMemberships(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	if len(memberships) > 0 {
		if err := r.attachDetails(ctx, memberships); err != nil {
			return nil, err
		}
	}

	session := &auth.Session{
		UserID:  user.ID,
		Email:   user.Email,
		Tenants: memberships,
	}
	session.IsPlatformAdmin = r.isPlatformAdmin(session)
	session.CurrentTenant = auth.SelectCurrentTenant(session.Tenants)

	return session, nil
}

func (r *Resolver) attachDetails(ctx context.Context, memberships []auth.Membership) error {
	tenantIDs := make([]string, 0, len(memberships))
	roleIDs := make([]string, 0, len(memberships))
	seenTenant := make(map[string]bool)
	seenRole := make(map[string]bool)
	for _, m := range memberships {
		if !seenTenant[m.TenantID] {
			seenTenant[m.TenantID] = true
			tenantIDs = append(tenantIDs, m.TenantID)
		}
		if m.RoleID != "" && !seenRole[m.RoleID] {
			seenRole[m.RoleID] = true
			roleIDs = append(roleIDs, m.RoleID)
		}
	}

	tenants, err := r.dir.GetTenantsByIDs(ctx, tenantIDs)
	if err != nil {
		return fmt.Errorf("failed to resolve tenants: %w", err)
	}
	roles, err := r.dir.GetRolesByIDs(ctx, roleIDs)
	if err != nil {
		return fmt.Errorf("failed to resolve roles: %w", err)
	}

	tenantByID := make(map[string]auth.Tenant, len(tenants))
	for _, t := range tenants {
		tenantByID[t.ID] = t
	}
	roleByID := make(map[string]auth.Role, len(roles))
	for _, role := range roles {
		roleByID[role.ID] = role
	}

	// Each membership gets its own copy so sessions never share mutable detail.
	for i := range memberships {
		if t, ok := tenantByID[memberships[i].TenantID]; ok {
			memberships[i].Tenant = &t
		}
		if role, ok := roleByID[memberships[i].RoleID]; ok {
			memberships[i].Role = &role
		}
	}
	return nil
}

func (r *Resolver) isPlatformAdmin(s *auth.Session) bool {
	for i := range s.Tenants {
		if _, ok := r.adminRoles[s.Tenants[i].RoleName()]; ok {
			return true
		}
	}
	return r.seedAdminEmail != "" && strings.EqualFold(s.Email, r.seedAdminEmail)
}
