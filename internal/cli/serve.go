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

	"github.com/example/charkeep/internal/ports/primary"
	"github.com/example/charkeep/internal/wire"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Persist records for a running host",
	Long: `Persist records for a running host.

Reads JSON-lines host events (connect, capture, disconnect, tick, save)
and admin requests (sessions, flush, migrations, restore) from stdin and
answers each on stdout. Flushes run on the configured interval. On EOF,
SIGINT or SIGTERM every buffered session is flushed before exit.

The data root is locked while serve runs, so a second serve or an
offline 'backups restore' on the same root is refused.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(NewContext(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		lock, err := lockRoot("another charkeep serve is running")
		if err != nil {
			return err
		}
		defer releaseRoot(lock)

		logger := wire.Logger()
		cfg := wire.Config()
		coordinator := wire.Coordinator()

		if cmd.Flags().Changed("no-migrations") {
			noMigrations, _ := cmd.Flags().GetBool("no-migrations")
			coordinator.SetMigrationsAllowed(!noMigrations)
		}

		if cfg.MetricsAddr != "" {
			srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
				}
			}()
			defer srv.Shutdown(context.Background())
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
		}

		go wire.Scheduler().Run(ctx)

		logger.Info("charkeep serving", "root", cfg.Root, "retention", cfg.Retention,
			"flush_interval", cfg.FlushInterval, "migrations_allowed", coordinator.MigrationsAllowed())
		err = wire.HostFeed(cmd.OutOrStdout()).Run(ctx, cmd.InOrStdin())
		stop()
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("host feed stopped", "error", err)
		}

		if flushErr := coordinator.FlushAll(context.WithoutCancel(ctx), primary.TriggerShutdown); flushErr != nil {
			logger.Error("final flush had failures", "error", flushErr)
			return flushErr
		}
		logger.Info("final flush complete")
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", wire.MetricsHandler())
	return mux
}

func init() {
	serveCmd.Flags().Bool("no-migrations", false, "Start with migrations disabled, overriding allow_migrations")
}

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	return serveCmd
}
