package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gemeos/tenant-auth/pkg/auth"
)

func newSessionCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the logged-in user and their tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.App(cmd.Context())
			if err != nil {
				return err
			}

			s := app.Engine.Session(cmd.Context())
			if s == nil {
				return auth.ErrNoSession
			}
			if r.jsonOutput {
				return printJSON(cmd.OutOrStdout(), s)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:            %s (%s)\n", s.Email, s.UserID)
			fmt.Fprintf(out, "Platform admin:  %t\n", s.IsPlatformAdmin)
			fmt.Fprintf(out, "State:           %s\n", app.Engine.State(cmd.Context()))
			fmt.Fprintf(out, "Current tenant:  %s\n\n", orDash(app.Engine.CurrentTenantID(cmd.Context())))

			tw := newTable(out, "TENANT", "NAME", "ROLE", "PRIMARY")
			for _, m := range s.Tenants {
				name := ""
				if m.Tenant != nil {
					name = m.Tenant.Name
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", m.TenantID, orDash(name), orDash(m.RoleName()), m.IsPrimary)
			}
			return tw.Flush()
		},
	}
}

func newSwitchCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <tenant-id>",
		Short: "Make a tenant the current tenant",
		Long: `Switch the current tenant. The tenant must be one the logged-in user is an
active member of. The choice is persisted and survives restarts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.App(cmd.Context())
			if err != nil {
				return err
			}

			switched, err := app.Engine.SwitchTenant(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !switched {
				return auth.ErrNoSession
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to tenant %s\n", args[0])
			return nil
		},
	}
}

func newLogoutCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear cached session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.App(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.Engine.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

// requireSession fails early for commands that need a logged-in user
func requireSession(app *App, cmd *cobra.Command) error {
	if app.Engine.Session(cmd.Context()) == nil {
		return auth.ErrNoSession
	}
	return nil
}

// tenantOrCurrent returns flagValue, or the current tenant when it is empty
func tenantOrCurrent(app *App, cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if id := app.Engine.CurrentTenantID(cmd.Context()); id != "" {
		return id, nil
	}
	return "", errors.New("no tenant selected: pass --tenant or run 'tenant-auth switch' first")
}
