package rbac

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gemeos/tenant-auth/pkg/auth"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidateCreateTenant checks the input before it reaches the backend
func ValidateCreateTenant(input auth.CreateTenantInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return &auth.ValidationError{Field: "name", Message: "tenant name is required"}
	}
	if !slugPattern.MatchString(input.Slug) {
		return &auth.ValidationError{Field: "slug", Message: "slug must contain only lowercase letters, numbers, and hyphens"}
	}
	if input.MaxUsers < 0 || input.MaxDomains < 0 {
		return &auth.ValidationError{Field: "max_users", Message: "tenant limits cannot be negative"}
	}
	return nil
}

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces  = regexp.MustCompile(`\s+`)
	slugHyphens = regexp.MustCompile(`-+`)
)

// GenerateSlug derives a slug suggestion from a tenant name
func GenerateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugInvalid.ReplaceAllString(slug, "")
	slug = slugSpaces.ReplaceAllString(slug, "-")
	slug = slugHyphens.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// CreateTenant creates a tenant. Errors propagate.
func (e *Engine) CreateTenant(ctx context.Context, input auth.CreateTenantInput) (*auth.Tenant, error) {
	if err := ValidateCreateTenant(input); err != nil {
		return nil, err
	}

	tenant, err := e.gw.CreateTenant(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"tenant_id": tenant.ID,
		"slug":      tenant.Slug,
	}).Info("Tenant created")
	e.record(ctx, "create", "tenant", tenant.ID, map[string]any{
		"name": tenant.Name,
		"slug": tenant.Slug,
	})
	return tenant, nil
}

// GetTenant returns the tenant, or nil when it cannot be loaded
func (e *Engine) GetTenant(ctx context.Context, tenantID string) *auth.Tenant {
	tenant, err := e.gw.GetTenant(ctx, tenantID)
	if err != nil {
		e.degrade(auth.OpGetTenant, err, map[string]interface{}{"tenant_id": tenantID})
		tenant, _ = auth.Fallback[*auth.Tenant](auth.OpGetTenant, nil, nil)
	}
	return tenant
}

// UpdateTenant applies the non-nil fields of update. Errors propagate.
func (e *Engine) UpdateTenant(ctx context.Context, tenantID string, update auth.TenantUpdate) (*auth.Tenant, error) {
	tenant, err := e.gw.UpdateTenant(ctx, tenantID, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}

	e.record(ctx, "update", "tenant", tenantID, updateChanges(update))
	return tenant, nil
}

// updateChanges flattens the set fields of update for the audit trail
func updateChanges(update auth.TenantUpdate) map[string]any {
	changes := make(map[string]any)
	if update.Name != nil {
		changes["name"] = *update.Name
	}
	if update.Description != nil {
		changes["description"] = *update.Description
	}
	if update.Settings != nil {
		changes["settings"] = update.Settings
	}
	if update.Status != nil {
		changes["status"] = string(*update.Status)
	}
	if update.SubscriptionTier != nil {
		changes["subscription_tier"] = string(*update.SubscriptionTier)
	}
	if update.MaxUsers != nil {
		changes["max_users"] = *update.MaxUsers
	}
	if update.MaxDomains != nil {
		changes["max_domains"] = *update.MaxDomains
	}
	return changes
}
