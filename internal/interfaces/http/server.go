// Package http provides the HTTP adapter of the billing console.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/billing-console/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Version         string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Version:         "dev",
	}
}

// Services are the application services exposed over HTTP
type Services struct {
	Clients  service.ClientService
	Projects service.ProjectService
	Invoices service.InvoiceService
	Payments service.PaymentService
	History  service.HistoryService
	Reports  service.ReportService
	Audit    service.AuditService
}

// Option configures a Server
type Option func(*Server)

// WithMetricsHandler serves h at /metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithHealthCheck adds a dependency probe to /health
func WithHealthCheck(name string, check func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.checks = append(s.checks, healthCheck{name: name, check: check})
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	mu         sync.Mutex
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	metrics    http.Handler
	checks     []healthCheck
	logger     Logger
}

type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger, opts ...Option) *Server {
	// Set gin mode based on environment
	gin.SetMode(gin.ReleaseMode)

	if logger == nil {
		logger = nopLogger{}
	}

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(server)
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logging middleware
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		// Log request details
		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger)

	// Health check
	s.router.GET("/health", s.health)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := s.router.Group("/api")
	{
		clients := api.Group("/clients")
		clients.GET("", h.ListClients)
		clients.POST("", h.CreateClient)
		clients.GET("/:id", h.GetClient)
		clients.PUT("/:id", h.UpdateClient)
		clients.DELETE("/:id", h.DeleteClient)
		clients.POST("/:id/activate", h.ActivateClient)
		clients.POST("/:id/deactivate", h.DeactivateClient)
		clients.GET("/:id/projects", h.ClientProjects)
		clients.GET("/:id/invoices", h.ClientInvoices)
		clients.GET("/:id/payable-invoices", h.PayableInvoices)
		clients.GET("/:id/payments", h.ClientPayments)
		clients.GET("/:id/history", h.ClientHistory)

		projects := api.Group("/projects")
		projects.GET("", h.ListProjects)
		projects.POST("", h.CreateProject)
		projects.PUT("/:id", h.UpdateProject)
		projects.PATCH("/:id/status", h.SetProjectStatus)
		projects.DELETE("/:id", h.DeleteProject)

		invoices := api.Group("/invoices")
		invoices.GET("", h.ListInvoices)
		invoices.POST("", h.CreateInvoice)
		invoices.POST("/preview", h.PreviewInvoice)
		invoices.GET("/:id/pdf", h.InvoicePDF)
		invoices.POST("/:id/send", h.SendInvoice)

		api.POST("/payments", h.RegisterPayment)
		api.GET("/history", h.HistoryFeed)

		reports := api.Group("/reports")
		reports.GET("/aging", h.AgingReport)
		reports.GET("/on-time/summary", h.OnTimeSummary)
		reports.GET("/on-time/top", h.OnTimeTop)
		reports.GET("/monthly-revenue", h.MonthlyRevenue)
		reports.GET("/top-clients", h.TopClients)
		reports.GET("/portfolio", h.Portfolio)
		reports.GET("/export.xlsx", h.ExportReports)

		audit := api.Group("/audit")
		audit.GET("/mutations", h.ListMutations)
		audit.GET("/mutations/summary", h.MutationSummary)
		audit.GET("/mutations/:mutation_id", h.GetMutation)
	}
}

// health handles GET /health
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for _, hc := range s.checks {
		if err := hc.check(ctx); err != nil {
			s.logger.Error("Health check failed", "check", hc.name, "error", err)
			checks[hc.name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[hc.name] = "ok"
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.config.Version,
		Checks:    checks,
	}
	if status != http.StatusOK {
		response.Status = "degraded"
	}
	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("Starting HTTP server", "address", addr)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server. Stopping a server that is not
// running is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
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
