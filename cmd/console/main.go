package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/billing-console/internal/config"
	"github.com/garyjia/billing-console/internal/container"
	"github.com/garyjia/billing-console/pkg/utils"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "billing-console",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("Console exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Console exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting billing console",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("remote", cfg.Remote.BaseURL),
		zap.String("report_source", cfg.Reports.Source))

	c, err := container.NewContainer(cfg.ToContainerConfig(version), logger)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	// Wait for interrupt signal to gracefully shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	serveErr := c.Serve(ctx)
	logger.Info("Shutting down...")

	if err := c.Close(); err != nil {
		logger.Error("Failed to close container", zap.Error(err))
	}
	return serveErr
}
