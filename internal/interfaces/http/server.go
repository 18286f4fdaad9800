// Package http provides the HTTP adapter for the application layer.
// Handlers translate requests into engine and service calls and map errors
// to status codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/application/service"
	"github.com/garyjia/expense-workflow/internal/application/workflow"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	JWTSecret      string
	TokenTTL       time.Duration
	MaxUploadBytes int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		TokenTTL:       24 * time.Hour,
		MaxUploadBytes: 10 << 20,
	}
}

// Services are the application entry points served over HTTP
type Services struct {
	Engine      workflow.Engine
	Users       service.UserService
	Categories  service.CategoryService
	Departments service.DepartmentService
	Dashboard   service.DashboardService
	Exporter    port.ExpenseExporter
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultServerConfig().MaxUploadBytes
	}

	router := gin.New()
	router.MaxMultipartMemory = config.MaxUploadBytes

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) setupRoutes() {
	expenses := newExpenseHandlers(s.services.Engine, s.services.Exporter, s.config.MaxUploadBytes, s.logger)
	admin := newAdminHandlers(s.services, s.logger)
	auth := newAuthHandlers(s.services.Users, s.config.JWTSecret, s.config.TokenTTL, s.logger)

	s.router.GET("/health", auth.HealthCheck)

	api := s.router.Group("/api")
	api.POST("/auth/login", auth.Login)

	secured := api.Group("")
	secured.Use(authMiddleware(s.config.JWTSecret))
	{
		secured.POST("/expenses", expenses.Create)
		secured.GET("/expenses", expenses.Search)
		secured.GET("/expenses/all", expenses.ListAll)
		secured.GET("/expenses/export", expenses.Export)
		secured.GET("/expenses/user/:userId", expenses.ListByOwner)
		secured.GET("/expenses/team/:managerId", expenses.ListByTeam)
		secured.POST("/expenses/delete-batch", expenses.DeleteBatch)
		secured.GET("/expenses/:id", expenses.Get)
		secured.GET("/expenses/:id/history", expenses.History)
		secured.PUT("/expenses/:id/submit", expenses.Submit)
		secured.PUT("/expenses/:id/approve", expenses.Approve)
		secured.PUT("/expenses/:id/reject", expenses.Reject)
		secured.POST("/expenses/:id/receipt", expenses.AttachReceipt)
		secured.DELETE("/expenses/:id", expenses.Delete)

		secured.GET("/categories", admin.ListCategories)
		secured.GET("/categories/all", requireRole(entity.RoleAdmin), admin.ListAllCategories)
		secured.POST("/categories", requireRole(entity.RoleAdmin), admin.CreateCategory)
		secured.PUT("/categories/:id", requireRole(entity.RoleAdmin), admin.UpdateCategory)
		secured.DELETE("/categories/:id", requireRole(entity.RoleAdmin), admin.DeactivateCategory)

		secured.GET("/departments", admin.ListDepartments)
		secured.GET("/departments/:id", admin.GetDepartment)
		secured.PUT("/departments/:id/budget", requireRole(entity.RoleAdmin), admin.UpdateBudget)

		secured.POST("/users", requireRole(entity.RoleAdmin), admin.CreateUser)
		secured.GET("/users/:id", admin.GetUser)
		secured.GET("/users/:id/team", admin.ListTeam)
		secured.GET("/admin/users", requireRole(entity.RoleAdmin), admin.ListUsers)
		secured.PUT("/admin/users/:id", requireRole(entity.RoleAdmin), admin.UpdateUser)

		secured.GET("/dashboard", admin.Dashboard)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
