package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/billing-console/internal/application/service"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONSOLE_REMOTE_BASE_URL", "https://billing.example.com/api")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://billing.example.com/api", cfg.Remote.BaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "local", cfg.Reports.Source)
	assert.Equal(t, 15, cfg.Reports.TopClients)
	assert.Equal(t, 4, cfg.Cache.RefetchConcurrency)
	assert.Equal(t, time.Minute, cfg.Worker.RefreshInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.Worker.AuditRetention)
	assert.True(t, cfg.Export.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
server:
  port: 9090
  read_timeout: 5s
remote:
  base_url: https://file.example.com
  rate_limit: 5
reports:
  source: remote
worker:
  refresh_interval: 0s
metrics:
  enabled: false
`)
	env := writeFile(t, dir, ".env", "CONSOLE_REMOTE_TOKEN=from-dotenv\nCONSOLE_SERVER_PORT=7000\n")

	// The process environment wins over the .env file
	t.Setenv("CONSOLE_SERVER_PORT", "9191")
	// Registers the restore of the token that the .env file sets
	t.Setenv("CONSOLE_REMOTE_TOKEN", "")
	require.NoError(t, os.Unsetenv("CONSOLE_REMOTE_TOKEN"))

	cfg, err := Load(path, env, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "https://file.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, "from-dotenv", cfg.Remote.Token)
	assert.InDelta(t, 5.0, cfg.Remote.RateLimit, 1e-9)
	assert.Equal(t, "remote", cfg.Reports.Source)
	assert.Zero(t, cfg.Worker.RefreshInterval)
	assert.False(t, cfg.Metrics.Enabled)

	cc := cfg.ToContainerConfig("1.2.3")
	assert.Equal(t, service.SourceRemote, cc.Reports.Source)
	assert.Equal(t, "from-dotenv", cc.Remote.Token)
	assert.Equal(t, "billing-console/1.2.3", cc.Remote.UserAgent)
	assert.Equal(t, "1.2.3", cc.Server.Version)
	assert.Nil(t, cc.Metrics, "disabled metrics leave the container without collectors")
	assert.NoError(t, cc.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Port: 8080},
			Remote:   RemoteConfig{BaseURL: "http://localhost:8000/api"},
			Reports:  ReportsConfig{Source: "local"},
			Database: DatabaseConfig{Path: "console.db"},
			Worker:   WorkerConfig{PruneInterval: time.Hour, AuditRetention: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing base url", mutate: func(c *Config) { c.Remote.BaseURL = "" }, wantErr: "remote.base_url is required"},
		{name: "relative base url", mutate: func(c *Config) { c.Remote.BaseURL = "/api" }, wantErr: "absolute URL"},
		{name: "negative rate", mutate: func(c *Config) { c.Remote.RateLimit = -1 }, wantErr: "rate_limit"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "unknown report source", mutate: func(c *Config) { c.Reports.Source = "cloud" }, wantErr: "reports.source"},
		{name: "missing database", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "pruning without retention", mutate: func(c *Config) { c.Worker.AuditRetention = 0 }, wantErr: "audit_retention"},
		{name: "pruning disabled", mutate: func(c *Config) { c.Worker.PruneInterval, c.Worker.AuditRetention = 0, 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
