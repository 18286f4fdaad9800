package container

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/dispatcher"
	"github.com/garyjia/expense-workflow/internal/application/notification"
	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/application/service"
	"github.com/garyjia/expense-workflow/internal/application/workflow"
	"github.com/garyjia/expense-workflow/internal/infrastructure/cache"
	"github.com/garyjia/expense-workflow/internal/infrastructure/export"
	"github.com/garyjia/expense-workflow/internal/infrastructure/external/fxrate"
	infraLark "github.com/garyjia/expense-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/expense-workflow/internal/infrastructure/external/openai"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-workflow/internal/infrastructure/storage"
	"github.com/garyjia/expense-workflow/internal/infrastructure/worker"
	"github.com/garyjia/expense-workflow/migrations"
	"github.com/garyjia/expense-workflow/pkg/database"
	"github.com/garyjia/expense-workflow/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB        *database.DB
	TxManager *sqlite.TxManager
}

// ExternalBundle holds the adapters to systems outside the process.
type ExternalBundle struct {
	Rates     port.RateResolver
	RateCache *cache.RateCache
	Advisor   port.ExpenseAdvisor
	Sender    port.MessageSender
	Receiver  string
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := ensureParentDir(cfg.Path); err != nil {
		return nil, err
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if _, err := database.NewMigrator(db, logger).Run(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:        db,
		TxManager: sqlite.NewTxManager(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Expense:    repository.NewExpenseRepository(db.DB, logger),
		Audit:      repository.NewAuditRepository(db.DB, logger),
		User:       repository.NewUserRepository(db.DB, logger),
		Category:   repository.NewCategoryRepository(db.DB, logger),
		Department: repository.NewDepartmentRepository(db.DB, logger),
	}, nil
}

// ProvideExternal builds the rate resolver, the optional advisor and the
// notification sender. Lark is used when enabled, otherwise messages are logged.
func ProvideExternal(cfg *Config, logger *zap.Logger) (*ExternalBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &ExternalBundle{}

	var rateOpts []fxrate.Option
	if cfg.FX.CachePath != "" {
		if err := ensureParentDir(cfg.FX.CachePath); err != nil {
			return nil, err
		}
		rateCache, err := cache.NewRateCache(cfg.FX.CachePath)
		if err != nil {
			return nil, err
		}
		bundle.RateCache = rateCache
		rateOpts = append(rateOpts, fxrate.WithCache(rateCache))
	}
	bundle.Rates = fxrate.NewResolver(fxrate.Config{
		BaseURL: cfg.FX.BaseURL,
		Timeout: cfg.FX.Timeout,
	}, logger.Named("fxrate"), rateOpts...)

	if cfg.OpenAI.APIKey != "" {
		prompts, err := openai.LoadPrompts(cfg.OpenAI.PromptsPath)
		if err != nil {
			bundle.close()
			return nil, fmt.Errorf("failed to load prompts: %w", err)
		}
		bundle.Advisor = openai.NewAdvisor(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		}, prompts, logger.Named("advisor"))
	} else {
		logger.Info("OpenAI API key not set, expense review disabled")
	}

	if cfg.Lark.Enabled {
		client := infraLark.NewSDKClient(infraLark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
			ChatID:    cfg.Lark.ChatID,
			BaseURL:   cfg.Lark.BaseURL,
		}, logger.Named("lark"))
		bundle.Sender = infraLark.NewMessenger(client, logger.Named("lark"))
		bundle.Receiver = client.ChatID()
	} else {
		bundle.Sender = notification.NewLogSender(&zapLoggerAdapter{logger: logger.Named("notify")})
	}

	return bundle, nil
}

func (b *ExternalBundle) close() error {
	if b.RateCache == nil {
		return nil
	}
	return b.RateCache.Close()
}

// ProvideStorage creates the receipt store.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return storage.NewLocalFileStorage(cfg.ReceiptDir, logger)
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	Validator  service.StructValidator
	BcryptCost int
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	return &ServiceBundle{
		Audit:      service.NewAuditService(deps.Repos.Audit, serviceLogger),
		User:       service.NewUserService(deps.Repos.User, deps.Repos.Department, deps.Validator, deps.BcryptCost, serviceLogger),
		Category:   service.NewCategoryService(deps.Repos.Category, deps.Validator, serviceLogger),
		Department: service.NewDepartmentService(deps.Repos.Department, serviceLogger),
		Dashboard:  service.NewDashboardService(deps.Repos.Expense, deps.Repos.Department, deps.Repos.Category, nil, serviceLogger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *DispatcherConfig, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []dispatcher.Option{dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")})}
	if cfg != nil && cfg.HandlerTimeout > 0 {
		opts = append(opts, dispatcher.WithHandlerTimeout(cfg.HandlerTimeout))
	}
	return dispatcher.NewDispatcher(opts...), nil
}

// WorkflowDeps holds dependencies required for creating the lifecycle engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	Services   *ServiceBundle
	TxManager  port.TransactionManager
	External   *ExternalBundle
	Storage    port.FileStorage
	Validator  service.StructValidator
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the lifecycle engine and subscribes the
// notifier to its events.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.Engine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil || deps.Services == nil {
		return nil, fmt.Errorf("repositories and services are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.External == nil {
		return nil, fmt.Errorf("external adapters are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger}

	engine := workflow.NewEngine(workflow.Dependencies{
		Expenses:   deps.Repos.Expense,
		Audits:     deps.Repos.Audit,
		Users:      deps.Repos.User,
		Categories: deps.Repos.Category,
		Audit:      deps.Services.Audit,
		TxManager:  deps.TxManager,
		Rates:      deps.External.Rates,
		Validator:  deps.Validator,
		Logger:     logger,
	},
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithReceiptStorage(deps.Storage),
	)

	notifier := notification.NewNotifier(deps.External.Sender, deps.Repos.Expense, deps.External.Receiver, logger)
	notifier.Register(deps.Dispatcher)

	return engine, nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Repos     *RepositoryBundle
	Advisor   port.ExpenseAdvisor
	Recorder  worker.AnalysisRecorder
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideWorkers creates the worker manager. The review worker is only
// registered when an advisor is configured.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewManager(deps.Logger)

	if deps.Advisor != nil {
		manager.Register(worker.NewReviewWorker(worker.ReviewWorkerConfig{
			PollInterval:   deps.WorkerCfg.ReviewPollInterval,
			BatchSize:      deps.WorkerCfg.ReviewBatchSize,
			ProcessTimeout: deps.WorkerCfg.ReviewTimeout,
		}, deps.Repos.Expense, deps.Advisor, deps.Recorder, deps.Logger.Named("review")))
	}

	return manager, nil
}

// ProvideExporter creates the spreadsheet exporter.
func ProvideExporter(logger *zap.Logger) port.ExpenseExporter {
	return export.NewXLSXExporter(logger)
}

// ProvideValidator creates the struct validator shared by services and the engine.
func ProvideValidator() service.StructValidator {
	return utils.NewValidator()
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
