// Package wire provides dependency injection for the charkeep application.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	cliadapter "github.com/example/charkeep/internal/adapters/cli"
	"github.com/example/charkeep/internal/adapters/filesystem"
	"github.com/example/charkeep/internal/adapters/hostfeed"
	"github.com/example/charkeep/internal/adapters/sqlite"
	"github.com/example/charkeep/internal/app"
	"github.com/example/charkeep/internal/config"
	"github.com/example/charkeep/internal/db"
	"github.com/example/charkeep/internal/logging"
	"github.com/example/charkeep/internal/ports/primary"
)

var (
	cfg    *config.Config
	logger hclog.Logger
	fs     afero.Fs = afero.NewOsFs()

	database     *sql.DB
	registry     *prometheus.Registry
	coordinator  *app.LifecycleCoordinator
	adminService primary.AdminService
	once         sync.Once
)

// Configure sets the configuration services are built from. It must be
// called before any accessor. Services built from an earlier configuration
// are released.
func Configure(c *config.Config, logOut io.Writer) {
	_ = Close()
	cfg = c
	logger = logging.New(c.LogLevel, logOut)
}

// Config returns the active configuration.
func Config() *config.Config {
	return cfg
}

// Logger returns the root logger.
func Logger() hclog.Logger {
	return logger
}

// Coordinator returns the singleton LifecycleCoordinator instance.
func Coordinator() *app.LifecycleCoordinator {
	once.Do(initServices)
	return coordinator
}

// AdminService returns the singleton AdminService instance.
func AdminService() primary.AdminService {
	once.Do(initServices)
	return adminService
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	if cfg == nil {
		panic("wire: Configure must be called before use")
	}

	// Get database connection
	var err error
	database, err = db.Open(cfg.JournalFile())
	if err != nil {
		logger.Error("failed to initialize flush journal", "path", cfg.JournalFile(), "error", err)
		os.Exit(1)
	}

	// Create store adapters (secondary ports)
	layout := filesystem.NewLayout(cfg.Root)
	records := filesystem.NewRecordStore(fs, layout)
	backups := filesystem.NewBackupStore(fs, layout, filesystem.BackupStoreOptions{
		Retention: cfg.Retention,
		Logger:    logger.Named("backups"),
	})
	migrations := filesystem.NewMigrationRegistry(fs, layout)
	if err := migrations.Load(context.Background()); err != nil {
		logger.Error("failed to load migration registry", "path", layout.RegistryPath(), "error", err)
		os.Exit(1)
	}
	journal := sqlite.NewFlushJournal(database)

	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Create effect executor with injected stores
	executor := app.NewEffectExecutor(records, backups, migrations, logger.Named("executor"))

	// Create services (primary ports implementation)
	tracker := app.NewSessionTracker(logger.Named("sessions"), nil)
	coordinator = app.NewLifecycleCoordinator(tracker, records, migrations, executor, app.CoordinatorOptions{
		MigrationsAllowed: cfg.AllowMigrations,
		FlushConcurrency:  cfg.FlushConcurrency,
		Journal:           journal,
		Metrics:           app.NewMetrics(registry),
		Logger:            logger.Named("coordinator"),
	})
	adminService = app.NewAdminService(coordinator, records, backups, migrations, journal, logger.Named("admin"))
}

// Scheduler returns a new FlushScheduler ticking at the configured interval.
func Scheduler() *app.FlushScheduler {
	once.Do(initServices)
	return app.NewFlushScheduler(coordinator, cfg.FlushInterval, logger.Named("scheduler"))
}

// HostFeed returns a new Feed writing replies to out.
func HostFeed(out io.Writer) *hostfeed.Feed {
	once.Do(initServices)
	return hostfeed.NewFeed(coordinator, adminService, out, logger.Named("hostfeed"))
}

// MetricsHandler serves the Prometheus registry.
func MetricsHandler() http.Handler {
	once.Do(initServices)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// AdminAdapter returns a new AdminAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func AdminAdapter() *cliadapter.AdminAdapter {
	return AdminAdapterWithOutput(os.Stdout)
}

// AdminAdapterWithOutput returns a new AdminAdapter writing to the given output.
// This variant allows testing or alternate output destinations.
func AdminAdapterWithOutput(out io.Writer) *cliadapter.AdminAdapter {
	once.Do(initServices)
	return cliadapter.NewAdminAdapter(adminService, out)
}

// Close releases the journal database if it was opened and resets the
// singletons so the next accessor rebuilds them.
func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database, registry, coordinator, adminService = nil, nil, nil, nil
	once = sync.Once{}
	return err
}
