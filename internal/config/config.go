package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment override, e.g. CONSOLE_REMOTE_TOKEN
const EnvPrefix = "CONSOLE"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Reports  ReportsConfig  `mapstructure:"reports"`
	Database DatabaseConfig `mapstructure:"database"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Export   ExportConfig   `mapstructure:"export"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RemoteConfig holds the connection to the billing backend
type RemoteConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Token     string        `mapstructure:"token"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
}

// CacheConfig holds entity cache configuration
type CacheConfig struct {
	RefetchConcurrency int `mapstructure:"refetch_concurrency"`
}

// ReportsConfig holds report configuration
type ReportsConfig struct {
	Source     string `mapstructure:"source"` // local or remote
	TopClients int    `mapstructure:"top_clients"`
}

// DatabaseConfig holds the mutation log database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// WorkerConfig holds background worker configuration. A zero interval
// disables the worker.
type WorkerConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	RefreshTimeout  time.Duration `mapstructure:"refresh_timeout"`
	PruneInterval   time.Duration `mapstructure:"prune_interval"`
	AuditRetention  time.Duration `mapstructure:"audit_retention"`
}

// ExportConfig holds report export configuration
type ExportConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Namespace   string `mapstructure:"namespace"`
	GoCollector bool   `mapstructure:"go_collector"`
}

// Load loads configuration from an optional .env file, the config file and
// CONSOLE_* environment variables, in increasing order of precedence. An
// empty configPath skips the file.
func Load(configPath string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Keys without a default are only seen by Unmarshal once bound
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFiles exports the variables of each existing file. Variables that
// are already set win.
func loadEnvFiles(files ...string) error {
	for _, file := range files {
		if err := gotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Remote defaults
	v.SetDefault("remote.timeout", 15*time.Second)
	v.SetDefault("remote.rate_limit", 20.0)
	v.SetDefault("remote.burst", 10)

	// Cache defaults
	v.SetDefault("cache.refetch_concurrency", 4)

	// Report defaults
	v.SetDefault("reports.source", "local")
	v.SetDefault("reports.top_clients", 15)

	// Database defaults
	v.SetDefault("database.path", "data/console.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	// Worker defaults
	v.SetDefault("worker.refresh_interval", time.Minute)
	v.SetDefault("worker.refresh_timeout", 30*time.Second)
	v.SetDefault("worker.prune_interval", time.Hour)
	v.SetDefault("worker.audit_retention", 30*24*time.Hour)

	// Export defaults
	v.SetDefault("export.enabled", true)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "console")
	v.SetDefault("metrics.go_collector", true)
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	// Backend location and credentials from environment
	for _, key := range []string{"remote.base_url", "remote.token"} {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate remote service
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	if u, err := url.Parse(c.Remote.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("remote.base_url must be an absolute URL")
	}
	if c.Remote.RateLimit < 0 {
		return fmt.Errorf("remote.rate_limit must not be negative")
	}

	// Validate server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	// Validate reports
	switch c.Reports.Source {
	case "local", "remote":
	default:
		return fmt.Errorf("reports.source must be local or remote, got %q", c.Reports.Source)
	}

	// Validate database
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Validate workers
	if c.Worker.PruneInterval > 0 && c.Worker.AuditRetention <= 0 {
		return fmt.Errorf("worker.audit_retention is required when pruning is enabled")
	}

	return nil
}
