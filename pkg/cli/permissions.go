package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gemeos/tenant-auth/pkg/auth"
)

func newCanCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "can <resource> <action> [<resource> <action>...]",
		Short: "Check permissions in the current tenant",
		Long: `Check one or more permissions in the current tenant. A single check prints
the reason for the decision. The command exits non-zero if any check is denied.

Examples:
  tenant-auth can users invite
  tenant-auth can users invite tenants update`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected resource/action pairs, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.App(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 2 {
				result := app.Engine.CheckAccess(cmd.Context(), auth.Resource(args[0]), auth.Action(args[1]))
				if r.jsonOutput {
					if err := printJSON(out, result); err != nil {
						return err
					}
				} else if result.Allowed {
					fmt.Fprintf(out, "allowed: %s\n", result.Reason)
				} else {
					fmt.Fprintf(out, "denied: %s\n", result.Reason)
				}
				if !result.Allowed {
					return ErrPermissionDenied
				}
				return nil
			}

			refs := make([]auth.PermissionRef, 0, len(args)/2)
			for i := 0; i < len(args); i += 2 {
				refs = append(refs, auth.PermissionRef{Resource: auth.Resource(args[i]), Action: auth.Action(args[i+1])})
			}
			results := app.Engine.CheckPermissions(cmd.Context(), refs)

			if r.jsonOutput {
				if err := printJSON(out, results); err != nil {
					return err
				}
			} else {
				tw := newTable(out, "PERMISSION", "ALLOWED")
				for _, ref := range refs {
					fmt.Fprintf(tw, "%s\t%t\n", ref, results[ref.String()])
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			for _, ok := range results {
				if !ok {
					return ErrPermissionDenied
				}
			}
			return nil
		},
	}
}

func newPermissionsCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "permissions",
		Short: "List the permissions granted by your role in the current tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.App(cmd.Context())
			if err != nil {
				return err
			}

			if err := requireSession(app, cmd); err != nil {
				return err
			}

			perms := app.Engine.UserPermissions(cmd.Context())
			if r.jsonOutput {
				return printJSON(cmd.OutOrStdout(), perms)
			}
			if len(perms) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No permissions.")
				return nil
			}

			tw := newTable(cmd.OutOrStdout(), "RESOURCE", "ACTION", "DESCRIPTION")
			for _, p := range perms {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Resource, p.Action, orDash(strings.TrimSpace(p.Description)))
			}
			return tw.Flush()
		},
	}
}
