package config

import (
	"github.com/garyjia/billing-console/internal/application/service"
	"github.com/garyjia/billing-console/internal/container"
	"github.com/garyjia/billing-console/internal/infrastructure/telemetry"
	httpapi "github.com/garyjia/billing-console/internal/interfaces/http"
	"github.com/garyjia/billing-console/internal/remote"
	"github.com/garyjia/billing-console/pkg/database"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig(version string) *container.Config {
	cfg := &container.Config{
		Database: database.Config{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Remote: remote.Config{
			BaseURL:   c.Remote.BaseURL,
			Token:     c.Remote.Token,
			Timeout:   c.Remote.Timeout,
			RateLimit: c.Remote.RateLimit,
			Burst:     c.Remote.Burst,
			UserAgent: "billing-console/" + version,
		},
		Server: httpapi.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
			Version:         version,
		},
		Cache: container.CacheConfig{
			RefetchConcurrency: c.Cache.RefetchConcurrency,
		},
		Reports: container.ReportsConfig{
			Source:     service.ReportSource(c.Reports.Source),
			TopClients: c.Reports.TopClients,
		},
		Worker: container.WorkerConfig{
			RefreshInterval: c.Worker.RefreshInterval,
			RefreshTimeout:  c.Worker.RefreshTimeout,
			PruneInterval:   c.Worker.PruneInterval,
			AuditRetention:  c.Worker.AuditRetention,
		},
		ExportEnabled: c.Export.Enabled,
	}
	if c.Metrics.Enabled {
		cfg.Metrics = &telemetry.Config{
			Namespace:   c.Metrics.Namespace,
			GoCollector: c.Metrics.GoCollector,
		}
	}
	return cfg
}
