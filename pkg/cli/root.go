package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/gemeos/tenant-auth/pkg/config"
	"github.com/gemeos/tenant-auth/pkg/observability"
)

// ErrPermissionDenied is returned by "can" when the check fails, so scripts
// can branch on the exit status
var ErrPermissionDenied = errors.New("permission denied")

// AppFactory builds the App used by a command invocation
type AppFactory func(ctx context.Context) (*App, error)

// root carries state shared by every subcommand of one invocation
type root struct {
	factory    AppFactory
	app        *App
	jsonOutput bool
}

// NewRootCommand creates the root command backed by the configured Postgres gateway
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithFactory(loadApp)
}

// NewRootCommandWithFactory creates the root command around a custom App factory
func NewRootCommandWithFactory(factory AppFactory) *cobra.Command {
	r := &root{factory: factory}

	cmd := &cobra.Command{
		Use:   "tenant-auth",
		Short: "Tenant-aware session and authorization tool",
		Long: `tenant-auth resolves the logged-in user's session, switches between the
tenants they belong to, checks permissions, and reads the audit trail.

Configuration comes from TENANT_AUTH_* environment variables, an optional .env
file, and the YAML file named by TENANT_AUTH_CONFIG.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return r.close()
		},
	}
	cmd.PersistentFlags().BoolVar(&r.jsonOutput, "json", false, "Output in JSON format")

	cmd.AddCommand(
		newSessionCommand(r),
		newSwitchCommand(r),
		newTenantCommand(r),
		newCanCommand(r),
		newPermissionsCommand(r),
		newAuditCommand(r),
		newLogoutCommand(r),
		newServeCommand(r),
	)
	return cmd
}

// App returns the App for this invocation, building it on first use
func (r *root) App(ctx context.Context) (*App, error) {
	if r.app != nil {
		return r.app, nil
	}
	app, err := r.factory(ctx)
	if err != nil {
		return nil, err
	}
	r.app = app
	return app, nil
}

func (r *root) close() error {
	if r.app == nil {
		return nil
	}
	err := r.app.Close()
	r.app = nil
	return err
}

func loadApp(ctx context.Context) (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stderr)
	return NewApp(ctx, cfg, logger)
}
