package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/billing-console/internal/application/dispatcher"
	"github.com/garyjia/billing-console/internal/application/service"
	"github.com/garyjia/billing-console/internal/cache"
	"github.com/garyjia/billing-console/internal/executor"
	"github.com/garyjia/billing-console/internal/infrastructure/export"
	"github.com/garyjia/billing-console/internal/infrastructure/pdfdoc"
	"github.com/garyjia/billing-console/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/billing-console/internal/infrastructure/telemetry"
	"github.com/garyjia/billing-console/internal/infrastructure/worker"
	"github.com/garyjia/billing-console/internal/invalidation"
	httpapi "github.com/garyjia/billing-console/internal/interfaces/http"
	"github.com/garyjia/billing-console/internal/remote"
	"github.com/garyjia/billing-console/pkg/database"
)

// CoreBundle holds the consistency core shared by every service.
type CoreBundle struct {
	Dispatcher dispatcher.Dispatcher
	Metrics    *telemetry.Metrics
	Cache      *cache.Cache
	Graph      *invalidation.Graph
	Executor   *executor.Executor
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Remote  *remote.Client
	Core    *CoreBundle
	DB      *sqlite.DB
	Reports ReportsConfig
	Export  bool
	Logger  *zap.Logger
}

// WorkerDeps holds dependencies for creating workers.
type WorkerDeps struct {
	Cache     *cache.Cache
	Audit     service.AuditService
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideDatabase opens the mutation log database and applies pending
// migrations.
func ProvideDatabase(ctx context.Context, cfg *database.Config, logger *zap.Logger) (*sqlite.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return sqlite.Open(ctx, *cfg, logger)
}

// ProvideRemote creates the billing backend client.
func ProvideRemote(cfg *remote.Config, logger *zap.Logger) (*remote.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("remote config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return remote.NewClient(*cfg, logger.Named("remote"))
}

// ProvideCore creates the dispatcher, the entity cache, the invalidation
// graph and the mutation executor. metricsCfg may be nil.
func ProvideCore(cacheCfg *CacheConfig, metricsCfg *telemetry.Config, logger *zap.Logger) (*CoreBundle, error) {
	if cacheCfg == nil {
		return nil, fmt.Errorf("cache config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	bundle := &CoreBundle{
		Dispatcher: dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")})),
		Graph:      invalidation.Default(),
	}

	cacheOpts := []cache.Option{
		cache.WithLogger(logger.Named("cache")),
		cache.WithRefetchLimit(cacheCfg.RefetchConcurrency),
	}
	if metricsCfg != nil {
		bundle.Metrics = telemetry.New(*metricsCfg)
		cacheOpts = append(cacheOpts, cache.WithMetrics(bundle.Metrics))
	}
	bundle.Cache = cache.New(cacheOpts...)

	if bundle.Metrics != nil {
		bundle.Metrics.WatchCache(bundle.Cache)
		bundle.Metrics.Subscribe(bundle.Dispatcher)
	}

	bundle.Executor = executor.New(bundle.Cache, bundle.Graph,
		executor.WithDispatcher(bundle.Dispatcher),
		executor.WithLogger(logger.Named("executor")),
	)
	return bundle, nil
}

// ProvideServices creates all application services and subscribes the
// audit trail to settled mutations.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Remote == nil || deps.Core == nil || deps.DB == nil {
		return nil, fmt.Errorf("remote, core and database are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	log := &zapLoggerAdapter{logger: deps.Logger.Named("service")}
	c, ex := deps.Core.Cache, deps.Core.Executor

	clients := service.NewClientService(deps.Remote, c, ex, log)

	reportOpts := []service.ReportOption{service.WithTopClients(deps.Reports.TopClients)}
	if deps.Reports.Source != "" {
		reportOpts = append(reportOpts, service.WithReportSource(deps.Reports.Source))
	}
	if deps.Export {
		reportOpts = append(reportOpts, service.WithExporter(export.NewXLSXExporter(deps.Logger.Named("export"))))
	}

	bundle := &ServiceBundle{
		Clients:  clients,
		Projects: service.NewProjectService(deps.Remote, c, ex, log),
		Invoices: service.NewInvoiceService(deps.Remote, c, ex, pdfdoc.NewInspector(deps.Logger.Named("pdf")), log),
		Payments: service.NewPaymentService(deps.Remote, clients, c, ex, log),
		History:  service.NewHistoryService(deps.Remote, c),
		Reports:  service.NewReportService(deps.Remote, c, log, reportOpts...),
		Audit: service.NewAuditService(
			sqlite.NewMutationLogRepository(deps.DB, deps.Logger.Named("audit")), log),
	}
	bundle.Audit.Subscribe(deps.Core.Dispatcher)

	return bundle, nil
}

// ProvideWorkers creates the refresh and prune workers. Workers with a zero
// interval are not registered.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	cfg := deps.WorkerCfg
	manager := worker.NewManager(deps.Logger)

	if cfg.RefreshInterval > 0 {
		if deps.Cache == nil {
			return nil, fmt.Errorf("cache is required for the refresh worker")
		}
		if err := manager.Register(worker.NewRefreshWorker(deps.Cache, cfg.RefreshInterval, cfg.RefreshTimeout, deps.Logger)); err != nil {
			return nil, err
		}
	}
	if cfg.PruneInterval > 0 {
		if deps.Audit == nil {
			return nil, fmt.Errorf("audit service is required for the prune worker")
		}
		if err := manager.Register(worker.NewPruneWorker(deps.Audit, cfg.PruneInterval, cfg.AuditRetention, deps.Logger)); err != nil {
			return nil, err
		}
	}

	return manager, nil
}

// ProvideServer creates the HTTP surface over the services.
func ProvideServer(cfg httpapi.ServerConfig, services *ServiceBundle, core *CoreBundle, db *sqlite.DB, logger *zap.Logger) *httpapi.Server {
	opts := []httpapi.Option{
		httpapi.WithHealthCheck("database", db.PingContext),
	}
	if core.Metrics != nil {
		opts = append(opts, httpapi.WithMetricsHandler(core.Metrics.Handler()))
	}
	return httpapi.NewServer(cfg, services.HTTP(), &zapLoggerAdapter{logger: logger.Named("http")}, opts...)
}
