package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/gemeos/tenant-auth/pkg/auth"
)

// InviteUser adds an existing user to the tenant directly, or sends an
// invitation email carrying the tenant and role. Errors propagate.
func (e *Engine) InviteUser(ctx context.Context, input auth.InviteUserInput) error {
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return &auth.ValidationError{Field: "email", Message: "email is required"}
	}
	if input.TenantID == "" || input.Role == "" {
		return &auth.ValidationError{Field: "tenant_id", Message: "tenant and role are required"}
	}

	userID, err := e.gw.FindUserIDByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if userID != "" {
		return e.AssignRoleToUser(ctx, auth.AssignRoleInput{
			UserID:   userID,
			TenantID: input.TenantID,
			Role:     input.Role,
		})
	}

	metadata := map[string]any{
		"tenant_id": input.TenantID,
		"role":      input.Role,
	}
	if len(input.Domains) > 0 {
		metadata["domains"] = input.Domains
	}
	if err := e.gw.InviteUserByEmail(ctx, email, metadata); err != nil {
		return fmt.Errorf("failed to invite user: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"tenant_id": input.TenantID,
		"role":      input.Role,
	}).Info("Invitation sent")
	e.record(ctx, "invite", "user", email, metadata)
	return nil
}

// AssignRoleToUser grants role in the tenant, activating the membership.
// An unknown role name yields *auth.RoleNotFoundError.
func (e *Engine) AssignRoleToUser(ctx context.Context, input auth.AssignRoleInput) error {
	role, err := e.gw.GetRoleByName(ctx, input.Role)
	if err != nil {
		return fmt.Errorf("failed to look up role: %w", err)
	}
	if role == nil {
		return &auth.RoleNotFoundError{Role: input.Role}
	}

	joinedAt := e.clock.Now().UTC()
	err = e.gw.UpsertMembership(ctx, auth.Membership{
		UserID:   input.UserID,
		TenantID: input.TenantID,
		RoleID:   role.ID,
		Status:   auth.MembershipActive,
		JoinedAt: &joinedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	e.record(ctx, "assign_role", "user_tenant", input.UserID, map[string]any{
		"tenant_id": input.TenantID,
		"role":      role.Name,
	})
	return nil
}

// RemoveUserFromTenant deactivates the membership without deleting it.
// Errors propagate.
func (e *Engine) RemoveUserFromTenant(ctx context.Context, userID, tenantID string) error {
	if err := e.gw.SetMembershipStatus(ctx, userID, tenantID, auth.MembershipInactive); err != nil {
		return fmt.Errorf("failed to remove user from tenant: %w", err)
	}

	e.record(ctx, "remove", "user_tenant", userID, map[string]any{
		"tenant_id": tenantID,
		"status":    string(auth.MembershipInactive),
	})
	return nil
}
