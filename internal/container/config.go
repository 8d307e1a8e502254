// Package container provides dependency injection and lifecycle management
// for the billing console.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/billing-console/internal/application/service"
	"github.com/garyjia/billing-console/internal/infrastructure/telemetry"
	httpapi "github.com/garyjia/billing-console/internal/interfaces/http"
	"github.com/garyjia/billing-console/internal/remote"
	"github.com/garyjia/billing-console/pkg/database"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database holds the mutation log connection
	Database database.Config

	// Remote is the billing backend
	Remote remote.Config

	// Server configuration
	Server httpapi.ServerConfig

	// Cache configuration
	Cache CacheConfig

	// Reports configuration
	Reports ReportsConfig

	// Worker configuration
	Worker WorkerConfig

	// Metrics configuration. Nil disables /metrics.
	Metrics *telemetry.Config

	// ExportEnabled serves the xlsx report export
	ExportEnabled bool
}

// CacheConfig holds entity cache settings.
type CacheConfig struct {
	// RefetchConcurrency bounds the refetches after one commit
	RefetchConcurrency int
}

// ReportsConfig holds report settings.
type ReportsConfig struct {
	// Source selects local or remote aggregation
	Source service.ReportSource

	// TopClients is the length of the top clients ranking
	TopClients int
}

// WorkerConfig holds background worker settings. A zero interval disables
// the worker.
type WorkerConfig struct {
	// Refresh worker settings
	RefreshInterval time.Duration
	RefreshTimeout  time.Duration

	// Mutation log pruning settings
	PruneInterval  time.Duration
	AuditRetention time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: database.Config{
			Path:         "data/console.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
			BusyTimeout:  5 * time.Second,
		},
		Remote: remote.Config{
			Timeout:   15 * time.Second,
			RateLimit: 20,
			Burst:     10,
		},
		Server: httpapi.DefaultServerConfig(),
		Cache: CacheConfig{
			RefetchConcurrency: 4,
		},
		Reports: ReportsConfig{
			Source:     service.SourceLocal,
			TopClients: 15,
		},
		Worker: WorkerConfig{
			RefreshInterval: time.Minute,
			RefreshTimeout:  30 * time.Second,
			PruneInterval:   time.Hour,
			AuditRetention:  30 * 24 * time.Hour,
		},
		Metrics:       &telemetry.Config{Namespace: "console", GoCollector: true},
		ExportEnabled: true,
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	// Validate remote service
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}

	// Validate database
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Validate reports
	if c.Reports.Source != "" && !c.Reports.Source.IsValid() {
		return fmt.Errorf("reports.source %q is not supported", c.Reports.Source)
	}

	return nil
}
