// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	router "tradedesk-ledger/internal/api"
	"tradedesk-ledger/internal/api/auth"
	"tradedesk-ledger/internal/api/handler"
	"tradedesk-ledger/internal/config"
	"tradedesk-ledger/internal/metrics"
	"tradedesk-ledger/internal/notify"
	"tradedesk-ledger/internal/repository"
	"tradedesk-ledger/internal/repository/memory"
	"tradedesk-ledger/internal/repository/postgres"
	"tradedesk-ledger/internal/scheduler"
	"tradedesk-ledger/internal/service"
	"tradedesk-ledger/internal/util"
	"tradedesk-ledger/pkg/db"
)

// Repositories bundles one implementation of every repository interface.
type Repositories struct {
	Balances    repository.BalanceRepository
	Entries     repository.LedgerEntryRepository
	Deposits    repository.DepositRepository
	Withdrawals repository.WithdrawalRepository
	Signals     repository.SignalRepository
	Usages      repository.SignalUsageRepository
	Adjustments repository.AdjustmentRepository
	Packages    repository.PackageRepository
}

// Application holds all the initialized components of the application.
type Application struct {
	Config   *config.AppConfig
	Logger   *slog.Logger
	DB       *sqlx.DB      // nil with the memory store
	Memory   *memory.Store // nil with the postgres store
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Notifier notify.Notifier

	Repositories Repositories

	// Services
	Ledger      *service.LedgerStore
	Deposits    service.DepositService
	Withdrawals service.WithdrawalService
	Signals     service.SignalService
	Settlement  *service.SettlementEngine
	Adjustments service.AdjustmentService
	Packages    service.PackageService

	Scheduler *scheduler.Scheduler

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize loads configuration from the environment and initializes all
// application components.
func (app *Application) Initialize(ctx context.Context) error {
	util.InitLogger()
	app.Logger = util.GetLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.InitializeWithConfig(ctx, cfg)
}

// InitializeWithConfig initializes all application components from cfg.
func (app *Application) InitializeWithConfig(ctx context.Context, cfg *config.AppConfig) error {
	app.Config = cfg
	util.InitLoggerWithFile(cfg.LogLevel, cfg.LogFile)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.", "store", cfg.StoreDriver)

	// 1. Store and transactions
	txRunner, reader, err := app.initStore(ctx)
	if err != nil {
		return err
	}

	// 2. Metrics and notifications
	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.New(app.Registry)

	if cfg.NATSURL != "" {
		n, err := notify.NewNATSNotifier(cfg.NATSURL, app.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect notification sink: %w", err)
		}
		app.Notifier = n
		app.Logger.Info("NATS notification sink connected.")
	} else {
		app.Notifier = notify.NewLogNotifier(app.Logger)
	}

	// 3. Services
	deps := service.Deps{
		Tx:       txRunner,
		Reader:   reader,
		Logger:   app.Logger,
		Metrics:  app.Metrics,
		Notifier: app.Notifier,
	}
	repos := app.Repositories
	app.Ledger = service.NewLedgerStore(deps, repos.Balances, repos.Entries)
	app.Deposits = service.NewDepositService(deps, app.Ledger, repos.Deposits)
	app.Withdrawals = service.NewWithdrawalService(deps, app.Ledger, repos.Withdrawals)
	app.Signals = service.NewSignalService(deps, service.SignalPolicy{
		MinStake: cfg.MinSignalStake,
		Currency: cfg.SignalCurrency,
	}, app.Ledger, repos.Signals, repos.Usages)
	app.Settlement = service.NewSettlementEngine(deps, app.Ledger, repos.Signals, repos.Usages)
	app.Settlement.SetSweepWorkers(cfg.SweepWorkers)
	app.Adjustments = service.NewAdjustmentService(deps, app.Ledger, repos.Adjustments)
	app.Packages = service.NewPackageService(deps, repos.Packages)
	app.Logger.Info("Services initialized.")

	// 4. Expiry scheduler
	app.Scheduler = scheduler.NewScheduler(app.Settlement, app.Metrics, app.Logger)
	if err := app.Scheduler.Register(cfg.ExpirySweepCron); err != nil {
		return err
	}

	// 5. HTTP Handlers and Router
	app.HTTPHandler = router.NewRouter(router.Handlers{
		Balances: handler.NewBalanceHandler(app.Ledger, app.Logger),
		Requests: handler.NewRequestHandler(app.Deposits, app.Withdrawals, app.Logger),
		Signals:  handler.NewSignalHandler(app.Signals, app.Settlement, app.Logger),
		Admin:    handler.NewAdminHandler(app.Adjustments, app.Packages, app.Logger),
	}, cfg.JWTSecret, auth.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), app.Registry, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

func (app *Application) initStore(ctx context.Context) (service.TxRunner, repository.DBExecutor, error) {
	if app.Config.StoreDriver == config.StoreMemory {
		app.Memory = memory.NewStore()
		app.Repositories = Repositories{
			Balances:    app.Memory.Balances(),
			Entries:     app.Memory.LedgerEntries(),
			Deposits:    app.Memory.Deposits(),
			Withdrawals: app.Memory.Withdrawals(),
			Signals:     app.Memory.Signals(),
			Usages:      app.Memory.SignalUsages(),
			Adjustments: app.Memory.Adjustments(),
			Packages:    app.Memory.Packages(),
		}
		app.Logger.Warn("Using the in-memory store; data is lost on restart.")
		return service.TxRunner{
			Begin:    app.Memory.BeginTx,
			Commit:   db.CommitTx,
			Rollback: db.RollbackTx,
		}, app.Memory, nil
	}

	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return service.TxRunner{}, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	if app.Config.AutoMigrate {
		if err := postgres.Migrate(ctx, app.DB); err != nil {
			return service.TxRunner{}, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		app.Logger.Info("Database schema is up to date.")
	}

	app.Repositories = Repositories{
		Balances:    postgres.NewBalanceRepository(),
		Entries:     postgres.NewLedgerEntryRepository(),
		Deposits:    postgres.NewDepositRepository(),
		Withdrawals: postgres.NewWithdrawalRepository(),
		Signals:     postgres.NewSignalRepository(),
		Usages:      postgres.NewSignalUsageRepository(),
		Adjustments: postgres.NewAdjustmentRepository(),
		Packages:    postgres.NewPackageRepository(),
	}
	return service.TxRunner{
		Beginner: app.DB,
		Begin:    db.BeginTx,
		Commit:   db.CommitTx,
		Rollback: db.RollbackTx,
	}, app.DB, nil
}

// Start launches background work.
func (app *Application) Start() {
	app.Scheduler.Start()
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Scheduler != nil {
		app.Scheduler.Stop(ctx)
	}
	if n, ok := app.Notifier.(*notify.NATSNotifier); ok {
		if err := n.Close(); err != nil {
			app.Logger.Warn("Failed to drain NATS connection", "error", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
