package container

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/billing-console/internal/application/dispatcher"
	"github.com/garyjia/billing-console/internal/application/service"
	"github.com/garyjia/billing-console/internal/cache"
	"github.com/garyjia/billing-console/internal/executor"
	"github.com/garyjia/billing-console/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/billing-console/internal/infrastructure/telemetry"
	"github.com/garyjia/billing-console/internal/infrastructure/worker"
	httpapi "github.com/garyjia/billing-console/internal/interfaces/http"
	"github.com/garyjia/billing-console/internal/remote"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in
// reverse order.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure
	db     *sqlite.DB
	remote *remote.Client

	// Consistency core
	core *CoreBundle

	// Application
	services *ServiceBundle

	// Workers
	workers *worker.Manager

	// Interfaces
	server *httpapi.Server

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Clients  service.ClientService
	Projects service.ProjectService
	Invoices service.InvoiceService
	Payments service.PaymentService
	History  service.HistoryService
	Reports  service.ReportService
	Audit    service.AuditService
}

// HTTP returns the services exposed by the HTTP surface
func (b *ServiceBundle) HTTP() httpapi.Services {
	return httpapi.Services{
		Clients:  b.Clients,
		Projects: b.Projects,
		Invoices: b.Invoices,
		Payments: b.Payments,
		History:  b.History,
		Reports:  b.Reports,
		Audit:    b.Audit,
	}
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

// Start initializes all components and begins background processing.
// Components are initialized in dependency order:
// 1. Database and migrations
// 2. Remote service client
// 3. Dispatcher, cache, invalidation graph and executor
// 4. Application services and audit subscription
// 5. Workers
// 6. HTTP server (not listening until Serve)
func (c *Container) Start(ctx context.Context) error {
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

	// Step 1: Initialize database
	db, err := ProvideDatabase(c.ctx, &c.config.Database, c.logger.Named("database"))
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize database: %w", err))
	}
	c.db = db
	c.logger.Info("Database initialized", zap.String("path", c.config.Database.Path))

	// Step 2: Initialize remote client
	client, err := ProvideRemote(&c.config.Remote, c.logger)
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize remote client: %w", err))
	}
	c.remote = client
	c.logger.Info("Remote client initialized", zap.String("base_url", c.config.Remote.BaseURL))

	// Step 3: Initialize consistency core
	core, err := ProvideCore(&c.config.Cache, c.config.Metrics, c.logger)
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize core: %w", err))
	}
	c.core = core
	c.logger.Info("Consistency core initialized", zap.Bool("metrics", core.Metrics != nil))

	// Step 4: Initialize application services
	services, err := ProvideServices(&ServiceDeps{
		Remote:  c.remote,
		Core:    c.core,
		DB:      c.db,
		Reports: c.config.Reports,
		Export:  c.config.ExportEnabled,
		Logger:  c.logger,
	})
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize services: %w", err))
	}
	c.services = services
	c.logger.Info("Application services initialized")

	// Step 5: Initialize and start workers
	workers, err := ProvideWorkers(&WorkerDeps{
		Cache:     c.core.Cache,
		Audit:     c.services.Audit,
		WorkerCfg: &c.config.Worker,
		Logger:    c.logger.Named("worker"),
	})
	if err != nil {
		return c.abort(fmt.Errorf("failed to initialize workers: %w", err))
	}
	c.workers = workers
	if c.workers.Count() > 0 {
		if err := c.workers.Start(c.ctx); err != nil {
			return c.abort(fmt.Errorf("failed to start workers: %w", err))
		}
	}
	c.logger.Info("Workers initialized", zap.Int("count", c.workers.Count()))

	// Step 6: Initialize HTTP server
	c.server = ProvideServer(c.config.Server, c.services, c.core, c.db, c.logger)

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// abort releases what a failed Start already acquired
func (c *Container) abort(err error) error {
	c.logger.Error("Container initialization failed", zap.Error(err))
	if c.workers != nil && c.workers.Running() {
		_ = c.workers.Stop()
	}
	if c.core != nil {
		_ = c.core.Dispatcher.Close()
	}
	if c.db != nil {
		_ = c.db.Close()
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.workers, c.core, c.db, c.remote = nil, nil, nil, nil
	return err
}

// Serve runs the HTTP server until ctx is cancelled
func (c *Container) Serve(ctx context.Context) error {
	c.mu.RLock()
	server := c.server
	c.mu.RUnlock()

	if server == nil || !c.ready.Load() {
		return fmt.Errorf("container not started")
	}
	return server.Start(ctx)
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Step 1: Stop HTTP server (reverse of step 6)
	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			c.logger.Error("Failed to stop HTTP server", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop server: %w", err))
		}
	}

	// Cancel context to signal all goroutines
	if c.cancel != nil {
		c.cancel()
	}

	// Step 2: Stop workers (reverse of step 5)
	if c.workers != nil && c.workers.Running() {
		if err := c.workers.Stop(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Step 3: Close dispatcher, waiting for queued audit and metric handlers
	// (reverse of steps 3 and 4)
	if c.core != nil {
		if err := c.core.Dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 4: Remote client holds no resources (reverse of step 2)

	// Step 5: Close database (reverse of step 1)
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if err := errors.Join(errs...); err != nil {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("close container: %w", err)
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

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

	// Check database
	switch {
	case c.db == nil:
		set("database", false, "not initialized")
	default:
		if err := c.db.PingContext(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	// Check workers
	switch {
	case c.workers == nil:
		set("workers", false, "not initialized")
	case c.workers.Count() == 0:
		set("workers", true, "no workers configured")
	case !c.workers.Running():
		set("workers", false, "stopped")
	default:
		msg := fmt.Sprintf("worker count: %d", c.workers.Count())
		if failing := c.workers.Failing(); len(failing) > 0 {
			msg += fmt.Sprintf(", last run failed: %s", strings.Join(failing, ", "))
		}
		set("workers", true, msg)
	}

	// Check cache
	if c.core == nil {
		set("cache", false, "not initialized")
	} else {
		stats := c.core.Cache.Stats()
		set("cache", true, fmt.Sprintf("fresh: %d, stale: %d, error: %d, optimistic: %d",
			stats[cache.StatusFresh], stats[cache.StatusStale], stats[cache.StatusError], c.core.Cache.Pending()))
	}

	// A full event queue stalls mutations that publish into it
	if c.core != nil && c.core.Dispatcher != nil {
		pending := c.core.Dispatcher.Pending()
		set("dispatcher", pending < dispatcher.DefaultQueueSize, fmt.Sprintf("pending events: %d", pending))
	}

	return status
}

// Getters for accessing container components

// DB returns the mutation log database.
func (c *Container) DB() *sqlite.DB {
	return c.db
}

// Remote returns the billing backend client.
func (c *Container) Remote() *remote.Client {
	return c.remote
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	if c.core == nil {
		return nil
	}
	return c.core.Dispatcher
}

// Cache returns the entity cache.
func (c *Container) Cache() *cache.Cache {
	if c.core == nil {
		return nil
	}
	return c.core.Cache
}

// Executor returns the mutation executor.
func (c *Container) Executor() *executor.Executor {
	if c.core == nil {
		return nil
	}
	return c.core.Executor
}

// Metrics returns the Prometheus collectors, nil when disabled.
func (c *Container) Metrics() *telemetry.Metrics {
	if c.core == nil {
		return nil
	}
	return c.core.Metrics
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Server returns the HTTP server.
func (c *Container) Server() *httpapi.Server {
	return c.server
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
// the services, the dispatcher and the HTTP server.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Info(msg, fields...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Error(msg, fields...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

// Verify interface compliance
var (
	_ service.Logger    = (*zapLoggerAdapter)(nil)
	_ dispatcher.Logger = (*zapLoggerAdapter)(nil)
	_ httpapi.Logger    = (*zapLoggerAdapter)(nil)
)
