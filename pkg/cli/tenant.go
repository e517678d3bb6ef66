package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gemeos/tenant-auth/pkg/auth"
	"github.com/gemeos/tenant-auth/pkg/rbac"
)

func newTenantCommand(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant [tenant-id]",
		Short: "Show a tenant (the current one by default) and manage tenants",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.App(cmd.Context())
			if err != nil {
				return err
			}

			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			if id, err = tenantOrCurrent(app, cmd, id); err != nil {
				return err
			}

			tenant := app.Engine.GetTenant(cmd.Context(), id)
			if tenant == nil {
				return &auth.TenantNotFoundError{TenantID: id}
			}
			return printTenant(r, cmd, tenant)
		},
	}

	cmd.AddCommand(
		newTenantCreateCommand(r),
		newTenantUpdateCommand(r),
		newTenantInviteCommand(r),
		newTenantAssignCommand(r),
		newTenantRemoveCommand(r),
	)
	return cmd
}

func printTenant(r *root, cmd *cobra.Command, t *auth.Tenant) error {
	if r.jsonOutput {
		return printJSON(cmd.OutOrStdout(), t)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:           %s\n", t.ID)
	fmt.Fprintf(out, "Name:         %s\n", t.Name)
	fmt.Fprintf(out, "Slug:         %s\n", t.Slug)
	fmt.Fprintf(out, "Status:       %s\n", orDash(string(t.Status)))
	fmt.Fprintf(out, "Tier:         %s\n", orDash(string(t.SubscriptionTier)))
	fmt.Fprintf(out, "Max users:    %d\n", t.MaxUsers)
	fmt.Fprintf(out, "Max domains:  %d\n", t.MaxDomains)
	return nil
}

func newTenantCreateCommand(r *root) *cobra.Command {
	var input auth.CreateTenantInput
	var tier string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.App(cmd.Context())
			if err != nil {
				return err
			}
			if input.Slug == "" {
				input.Slug = rbac.GenerateSlug(input.Name)
			}
			input.SubscriptionTier = auth.SubscriptionTier(tier)

			tenant, err := app.Engine.CreateTenant(cmd.Context(), input)
			if err != nil {
				return err
			}
			return printTenant(r, cmd, tenant)
		},
	}

	cmd.Flags().StringVar(&input.Name, "name", "", "Tenant name (required)")
	cmd.Flags().StringVar(&input.Slug, "slug", "", "URL slug (derived from the name when omitted)")
	cmd.Flags().StringVar(&input.Description, "description", "", "Description")
	cmd.Flags().StringVar(&tier, "tier", "", "Subscription tier")
	cmd.Flags().IntVar(&input.MaxUsers, "max-users", 0, "Maximum number of users")
	cmd.Flags().IntVar(&input.MaxDomains, "max-domains", 0, "Maximum number of domains")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newTenantUpdateCommand(r *root) *cobra.Command {
	var (
		name, description, status, tier string
		maxUsers, maxDomains            int
	)

	cmd := &cobra.Command{
		Use:   "update <tenant-id>",
		Short: "Update a tenant's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.App(cmd.Context())
			if err != nil {
				return err
			}

			var update auth.TenantUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				update.Name = &name
			}
			if flags.Changed("description") {
				update.Description = &description
			}
			if flags.Changed("status") {
				s := auth.TenantStatus(status)
				update.Status = &s
			}
			if flags.Changed("tier") {
				t := auth.SubscriptionTier(tier)
				update.SubscriptionTier = &t
			}
			if flags.Changed("max-users") {
				update.MaxUsers = &maxUsers
			}
			if flags.Changed("max-domains") {
				update.MaxDomains = &maxDomains
			}

			tenant, err := app.Engine.UpdateTenant(cmd.Context(), args[0], update)
			if err != nil {
				return err
			}
			return printTenant(r, cmd, tenant)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Tenant name")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	cmd.Flags().StringVar(&status, "status", "", "Status (active, suspended, trial)")
	cmd.Flags().StringVar(&tier, "tier", "", "Subscription tier")
	cmd.Flags().IntVar(&maxUsers, "max-users", 0, "Maximum number of users")
	cmd.Flags().IntVar(&maxDomains, "max-domains", 0, "Maximum number of domains")
	return cmd
}

func newTenantInviteCommand(r *root) *cobra.Command {
	var input auth.InviteUserInput

	cmd := &cobra.Command{
		Use:   "invite <email>",
		Short: "Invite a user into a tenant with a role",
		Long: `Invite a user. Existing users are added to the tenant directly; anyone else
receives an invitation email carrying the tenant and role.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.App(cmd.Context())
			if err != nil {
				return err
			}
			if input.TenantID, err = tenantOrCurrent(app, cmd, input.TenantID); err != nil {
				return err
			}
			input.Email = args[0]

			if err := app.Engine.InviteUser(cmd.Context(), input); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Invited %s to %s as %s\n", input.Email, input.TenantID, input.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.TenantID, "tenant", "", "Tenant id (defaults to the current tenant)")
	cmd.Flags().StringVar(&input.Role, "role", "", "Role name (required)")
	cmd.Flags().StringSliceVar(&input.Domains, "domains", nil, "Domain ids to grant")
	cmd.MarkFlagRequired("role")
	return cmd
}

func newTenantAssignCommand(r *root) *cobra.Command {
	var input auth.AssignRoleInput

	cmd := &cobra.Command{
		Use:   "assign <user-id>",
		Short: "Give a user a role in a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.App(cmd.Context())
			if err != nil {
				return err
			}
			if input.TenantID, err = tenantOrCurrent(app, cmd, input.TenantID); err != nil {
				return err
			}
			input.UserID = args[0]

			if err := app.Engine.AssignRoleToUser(cmd.Context(), input); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to %s in %s\n", input.Role, input.UserID, input.TenantID)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.TenantID, "tenant", "", "Tenant id (defaults to the current tenant)")
	cmd.Flags().StringVar(&input.Role, "role", "", "Role name (required)")
	cmd.MarkFlagRequired("role")
	return cmd
}

func newTenantRemoveCommand(r *root) *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "remove <user-id>",
		Short: "Deactivate a user's membership in a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.App(cmd.Context())
			if err != nil {
				return err
			}
			if tenantID, err = tenantOrCurrent(app, cmd, tenantID); err != nil {
				return err
			}

			if err := app.Engine.RemoveUserFromTenant(cmd.Context(), args[0], tenantID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[0], tenantID)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id (defaults to the current tenant)")
	return cmd
}
