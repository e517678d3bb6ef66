package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gemeos/tenant-auth/pkg/api"
	"github.com/gemeos/tenant-auth/pkg/httputil"
	"github.com/gemeos/tenant-auth/pkg/observability"
)

func newServeCommand(r *root) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local admin API",
		Long: `Serve the admin HTTP API for the configured identity, with /metrics and
/healthz. The scheduled audit retention job runs while the server is up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := r.App(ctx)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = app.Config.Server.Addr
			}
			return serve(ctx, app, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to TENANT_AUTH_API_ADDR)")
	return cmd
}

func serve(ctx context.Context, app *App, addr string) error {
	cfg := app.Config
	logger := app.Logger

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize OpenTelemetry, continuing without it")
	}

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithHealthChecker(app.Health),
	}
	if cfg.Observability.MetricsEnabled {
		opts = append(opts, api.WithMetrics(app.Metrics, app.Registry))
	}
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter := httputil.NewRateLimiter(httputil.RateLimitConfig{
			RequestsPerWindow: cfg.Server.RateLimitPerMinute,
			WindowDuration:    time.Minute,
			BurstSize:         cfg.Server.RateLimitBurst,
		}, nil)
		limiter.StartCleanup(ctx)
		opts = append(opts, api.WithRateLimiter(limiter))
	}
	server := api.NewServer(app.Engine, app.Audit, opts...)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if err := app.Retention.Start(ctx); err != nil {
		return err
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		app.Retention.Stop()
		return app.Audit.Flush(ctx)
	})
	if providers != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("Starting admin API")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		return shutdown.Shutdown()
	}
}
