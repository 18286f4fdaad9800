package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/dispatcher"
	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/application/service"
	"github.com/garyjia/expense-workflow/internal/application/workflow"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-workflow/internal/infrastructure/worker"
	httpapi "github.com/garyjia/expense-workflow/internal/interfaces/http"
	"github.com/garyjia/expense-workflow/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	db           *database.DB
	txManager    *sqlite.TxManager
	repositories *RepositoryBundle

	// Infrastructure - External
	external *ExternalBundle
	storage  port.FileStorage
	exporter port.ExpenseExporter

	// Application
	validator  service.StructValidator
	services   *ServiceBundle
	dispatcher dispatcher.Dispatcher
	engine     workflow.Engine

	// Interfaces
	server *httpapi.Server

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Expense    port.ExpenseRepository
	Audit      port.AuditRepository
	User       port.UserRepository
	Category   port.CategoryRepository
	Department port.DepartmentRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Audit      service.AuditService
	User       service.UserService
	Category   service.CategoryService
	Department service.DepartmentService
	Dashboard  service.DashboardService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and starts the background workers.
// The HTTP server is built but not started; see HTTPServer.
// On failure the components built so far are released.
func (c *Container) Start(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	defer func() {
		if err != nil {
			c.logger.Error("Container start failed, releasing components", zap.Error(err))
			if closeErr := c.shutdown(); closeErr != nil {
				err = multierr.Append(err, closeErr)
			}
		}
	}()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"database", c.initDatabase},
		{"external clients", c.initExternal},
		{"storage", c.initStorage},
		{"services", c.initServices},
		{"dispatcher and engine", c.initDispatcherAndEngine},
		{"http server", c.initServer},
		{"workers", c.initWorkers},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Initialized " + step.name)
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.shutdown()
	c.closed.Store(true)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(multierr.Errors(err))), zap.Error(err))
		return err
	}

	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) shutdown() error {
	var errs error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		errs = multierr.Append(errs, wrap("stop workers", c.workers.StopAll()))
		c.workers = nil
	}

	if c.server != nil {
		errs = multierr.Append(errs, wrap("stop http server", c.server.Stop()))
		c.server = nil
	}

	// Dispatcher waits for in-flight notifications, which still read the database.
	if c.dispatcher != nil {
		errs = multierr.Append(errs, wrap("close dispatcher", c.dispatcher.Close()))
		c.dispatcher = nil
	}

	if c.external != nil {
		errs = multierr.Append(errs, wrap("close rate cache", c.external.close()))
		c.external = nil
	}

	if c.db != nil {
		errs = multierr.Append(errs, wrap("close database", c.db.Close()))
		c.db = nil
	}

	c.ready.Store(false)
	return errs
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.db == nil:
		set("database", false, "not initialized")
	default:
		if err := c.db.HealthCheck(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	if c.workers != nil {
		set("workers", true, fmt.Sprintf("running workers: %d", c.workers.Running()))
	} else {
		set("workers", false, "not initialized")
	}

	if c.dispatcher != nil {
		set("dispatcher", true, "")
	} else {
		set("dispatcher", false, "not initialized")
	}

	return status
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = bundle.DB
	c.txManager = bundle.TxManager

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initExternal() error {
	bundle, err := ProvideExternal(c.config, c.logger)
	if err != nil {
		return err
	}
	c.external = bundle
	return nil
}

func (c *Container) initStorage() error {
	fileStorage, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.storage = fileStorage
	c.exporter = ProvideExporter(c.logger)
	return nil
}

func (c *Container) initServices() error {
	c.validator = ProvideValidator()

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		Validator:  c.validator,
		BcryptCost: c.config.Auth.BcryptCost,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initDispatcherAndEngine() error {
	disp, err := ProvideDispatcher(&c.config.Dispatcher, c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		Services:   c.services,
		TxManager:  c.txManager,
		External:   c.external,
		Storage:    c.storage,
		Validator:  c.validator,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

func (c *Container) initServer() error {
	c.server = httpapi.NewServer(httpapi.ServerConfig{
		Host:           c.config.Server.Host,
		Port:           c.config.Server.Port,
		ReadTimeout:    c.config.Server.ReadTimeout,
		WriteTimeout:   c.config.Server.WriteTimeout,
		JWTSecret:      c.config.Auth.JWTSecret,
		TokenTTL:       c.config.Auth.TokenTTL,
		MaxUploadBytes: c.config.Server.MaxUploadBytes,
	}, httpapi.Services{
		Engine:      c.engine,
		Users:       c.services.User,
		Categories:  c.services.Category,
		Departments: c.services.Department,
		Dashboard:   c.services.Dashboard,
		Exporter:    c.exporter,
	}, &zapLoggerAdapter{logger: c.logger.Named("http")})
	return nil
}

func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Repos:     c.repositories,
		Advisor:   c.external.Advisor,
		Recorder:  c.engine,
		WorkerCfg: &c.config.Worker,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	return c.workers.StartAll(c.ctx)
}

// Getters for accessing container components

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Engine returns the expense lifecycle engine.
func (c *Container) Engine() workflow.Engine {
	return c.engine
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// HTTPServer returns the HTTP server, ready to Start.
func (c *Container) HTTPServer() *httpapi.Server {
	return c.server
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key/value Logger interfaces of
// the application and interface layers.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok && key == "error" {
			fields = append(fields, zap.Error(err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
