package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/api"
	"github.com/yourusername/yt-fetch-go/api/handlers"
	"github.com/yourusername/yt-fetch-go/internal/app"
	"github.com/yourusername/yt-fetch-go/internal/domain"
	"github.com/yourusername/yt-fetch-go/internal/infrastructure"
	"github.com/yourusername/yt-fetch-go/pkg/logger"
)

var (
	configPath = flag.String("config", "", "Path to config file (default: ./configs/config.yaml or ~/.yt-fetch/config.yaml)")
	version    = "1.0.0"
)

const shutdownTimeout = 30 * time.Second

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "yt-fetch-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// YTFETCH_* overrides may come from a .env file in the working directory
	_ = godotenv.Load()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	general, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Category files are optional; without a logs dir everything goes to the general logger
	var multiLog *logger.MultiLogger
	if config.Logging.LogsDir != "" {
		multiLog, err = logger.NewMultiLogger(logger.MultiLoggerConfig{
			Level:   config.Logging.Level,
			LogsDir: config.Logging.LogsDir,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize category logs: %w", err)
		}
		defer multiLog.Close()
	}
	logAdapter := logger.NewLoggerAdapter(general, multiLog)
	defer logAdapter.Sync()
	log := logAdapter.General()

	handlers.Version = version
	log.Info("Starting yt-fetch server",
		zap.String("version", version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("scratch_dir", config.Fetch.BaseDir),
		zap.Int("workers", config.Fetch.Workers),
		zap.String("default_quality", string(config.Fetch.DefaultQuality)))

	if err := os.MkdirAll(config.Fetch.BaseDir, 0755); err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	if n, err := app.SweepScratch(config.Fetch.BaseDir); err != nil {
		log.Warn("Failed to sweep stale scratch directories", zap.Error(err))
	} else if n > 0 {
		log.Info("Removed stale scratch directories", zap.Int("count", n))
	}

	var history domain.HistoryRepository
	if config.Registry.DatabasePath != "" {
		repo, err := infrastructure.NewSQLiteHistoryRepository(config.Registry.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer repo.Close()
		history = repo
	}

	extractor := infrastructure.NewYTDLPExtractor(&config.Extractor, logAdapter.Fetch())
	orchestrator := app.NewOrchestrator(extractor, &config.Fetch, logAdapter.Fetch())
	registry := app.NewRegistry(config.Registry.Retention, logAdapter.Registry())
	notifier := infrastructure.NewNotificationService(&config.Notification, log)

	service := app.NewFetchService(
		orchestrator,
		registry,
		history,
		app.NewWorkerPool(config.Fetch.Workers),
		notifier,
		logAdapter.Fetch(),
		multiLog,
	)

	router, err := api.SetupRouter(service, logAdapter, api.RouterConfig{
		LogsDir:         config.Logging.LogsDir,
		ExtractorBinary: config.Extractor.Binary,
		DefaultQuality:  config.Fetch.DefaultQuality,
		RateLimit:       config.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to set up router: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := service.Close(shutdownCtx); err != nil {
		log.Warn("Background fetches cancelled during shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}
