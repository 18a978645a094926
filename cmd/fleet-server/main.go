package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fleet-monitor-backend/internal/chat"
	"fleet-monitor-backend/internal/config"
	"fleet-monitor-backend/internal/db"
	"fleet-monitor-backend/internal/eventlog"
	"fleet-monitor-backend/internal/fleet"
	"fleet-monitor-backend/internal/intent"
	"fleet-monitor-backend/internal/prompts"
	"fleet-monitor-backend/internal/server"
)

func main() {
	cfg := config.Load()
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	var (
		fleetStore fleet.Store
		dbHealth   server.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.RunMigrations(ctx, cfg.MigrationsDir); err != nil {
			return err
		}
		fleetStore = fleet.NewDBStore(database)
		dbHealth = database
		logger.Info("fleet data served from postgres")
	} else {
		fleetStore = fleet.NewFileStore(cfg.FlightsFile, cfg.OverridesDir)
		logger.Info("fleet data served from files",
			zap.String("listing", cfg.FlightsFile),
			zap.String("overrides", cfg.OverridesDir))
	}
	cache := fleet.NewCache(fleetStore, logger)

	if cfg.WatchData && cfg.DatabaseURL == "" {
		if err := os.MkdirAll(cfg.OverridesDir, 0o755); err != nil {
			logger.Warn("cannot create overrides dir", zap.Error(err))
		}
		if err := fleet.Watch(ctx, cache, logger, filepath.Dir(cfg.FlightsFile), cfg.OverridesDir); err != nil {
			logger.Warn("fleet data watcher not started", zap.Error(err))
		}
	}

	promptSet, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		logger.Warn("prompt templates unusable, using built-in default", zap.String("path", cfg.PromptsFile), zap.Error(err))
		promptSet = prompts.New(nil)
	}

	entityPattern := intent.DefaultEntityPattern
	if cfg.EntityIDPattern != "" {
		p, err := regexp.Compile(cfg.EntityIDPattern)
		if err != nil {
			logger.Warn("invalid ENTITY_ID_PATTERN, using default", zap.Error(err))
		} else {
			entityPattern = p
		}
	}

	llmSink := openSink(logger, filepath.Join(cfg.LogsDir, "ai.log"), "azure")
	defer llmSink.Close()
	agentSink := openSink(logger, filepath.Join(cfg.LogsDir, "ai_chat.log"), "neurosan")
	defer agentSink.Close()

	srv := server.NewServer(server.Options{
		Config: cfg,
		Logger: logger,
		Fleet:  cache,
		DB:     dbHealth,
		LLM: chat.NewLLMDispatcher(chat.LLMOptions{
			Config:     cfg.Azure,
			Fleet:      cache,
			Prompts:    promptSet,
			Classifier: intent.NewFleetSummary(entityPattern),
			Sink:       llmSink,
			Logger:     logger,
		}),
		Agent: chat.NewAgentDispatcher(chat.AgentOptions{
			Config: cfg.Neuro,
			Fleet:  cache,
			Sink:   agentSink,
			Logger: logger,
		}),
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fleet monitor listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// openSink opens a per-backend event log, degrading to a no-op sink.
func openSink(logger *zap.Logger, path, backend string) *eventlog.Sink {
	sink, err := eventlog.Open(path, backend)
	if err != nil {
		logger.Warn("event log disabled", zap.String("path", path), zap.Error(err))
	}
	return sink
}
