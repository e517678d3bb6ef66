package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gemeos/tenant-auth/pkg/audit"
	"github.com/gemeos/tenant-auth/pkg/auth"
)

type auditFilterFlags struct {
	resourceType string
	userID       string
	since        string
	until        string
}

func (f *auditFilterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.resourceType, "resource-type", "", "Only entries for this resource type")
	cmd.Flags().StringVar(&f.userID, "user", "", "Only entries by this user id")
	cmd.Flags().StringVar(&f.since, "since", "", "Only entries at or after this RFC 3339 time")
	cmd.Flags().StringVar(&f.until, "until", "", "Only entries at or before this RFC 3339 time")
}

func (f *auditFilterFlags) filter() (auth.AuditFilter, error) {
	filter := auth.AuditFilter{ResourceType: f.resourceType, UserID: f.userID}
	if f.since != "" {
		t, err := time.Parse(time.RFC3339, f.since)
		if err != nil {
			return filter, fmt.Errorf("invalid --since: %w", err)
		}
		filter.StartDate = &t
	}
	if f.until != "" {
		t, err := time.Parse(time.RFC3339, f.until)
		if err != nil {
			return filter, fmt.Errorf("invalid --until: %w", err)
		}
		filter.EndDate = &t
	}
	return filter, nil
}

func newAuditCommand(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the current tenant's audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newAuditListCommand(r), newAuditExportCommand(r), newAuditPurgeCommand(r))
	return cmd
}

func newAuditListCommand(r *root) *cobra.Command {
	var flags auditFilterFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			app, err := r.App(cmd.Context())
			if err != nil {
				return err
			}

			logs := app.Audit.Logs(cmd.Context(), filter)
			if r.jsonOutput {
				return printJSON(cmd.OutOrStdout(), logs)
			}
			if len(logs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No audit entries.")
				return nil
			}

			tw := newTable(cmd.OutOrStdout(), "TIME", "USER", "ACTION", "RESOURCE", "ID")
			for _, l := range logs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					l.CreatedAt.UTC().Format(time.RFC3339), orDash(l.UserID), l.Action, l.ResourceType, orDash(l.ResourceID))
			}
			return tw.Flush()
		},
	}
	flags.register(cmd)
	return cmd
}

func newAuditExportCommand(r *root) *cobra.Command {
	var (
		flags  auditFilterFlags
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export audit entries as json, csv, or ndjson",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exportFormat, err := audit.ParseExportFormat(format)
			if err != nil {
				return err
			}
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			app, err := r.App(cmd.Context())
			if err != nil {
				return err
			}

			data, err := app.Audit.Export(cmd.Context(), filter, exportFormat)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "json", "Export format: json, csv, or ndjson")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newAuditPurgeCommand(r *root) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete audit entries older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := r.App(cmd.Context())
			if err != nil {
				return err
			}

			retention := app.Retention
			if cmd.Flags().Changed("days") {
				retention = audit.NewRetention(app.Gateway, days, "", audit.WithRetentionLogger(app.Logger), audit.WithRetentionMetrics(app.Metrics))
			}
			if !retention.Enabled() {
				return fmt.Errorf("audit retention is disabled: set TENANT_AUTH_AUDIT_RETENTION_DAYS or pass --days")
			}

			n, err := retention.PurgeOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d audit entries older than %s\n", n, retention.Cutoff().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Retention period in days (overrides configuration)")
	return cmd
}
