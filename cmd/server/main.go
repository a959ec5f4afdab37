package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/fridgely/pantry-scan-service/internal/config"
	"github.com/fridgely/pantry-scan-service/internal/engine"
	"github.com/fridgely/pantry-scan-service/internal/feedback"
	"github.com/fridgely/pantry-scan-service/internal/inventory"
	"github.com/fridgely/pantry-scan-service/internal/modelver"
	"github.com/fridgely/pantry-scan-service/internal/scanner"
	"github.com/fridgely/pantry-scan-service/internal/server"
	"github.com/fridgely/pantry-scan-service/internal/storage"
)

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	if err := engine.InitRuntime(cfg.Model.OrtLibrary); err != nil {
		logger.Error("onnx runtime init failed", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	// A broken database is not fatal: the service degrades to memory-only
	// inventory and feedback.
	var (
		pantryStore   inventory.Store
		feedbackStore feedback.Store
		stateStore    modelver.StateStore
	)
	if db, err := storage.Open(cfg.Storage.Path); err != nil {
		logger.Warn("database unavailable, running memory-only", "path", cfg.Storage.Path, "error", err)
	} else {
		if s, err := inventory.NewGormStore(db); err != nil {
			logger.Warn("pantry store init failed", "error", err)
		} else {
			pantryStore = s
		}
		if s, err := feedback.NewGormStore(db); err != nil {
			logger.Warn("feedback store init failed", "error", err)
		} else {
			feedbackStore = s
		}
		if s, err := modelver.NewGormStateStore(db); err != nil {
			logger.Warn("model state store init failed", "error", err)
		} else {
			stateStore = s
		}
	}

	// The engine asks the version manager for the active artifact path and
	// the manager invalidates the engine after a swap; the closure breaks
	// the construction cycle.
	var manager *modelver.Manager
	eng := engine.New(
		engine.NewORTLoader(engine.ORTOptions{
			InputName:  cfg.Model.InputName,
			OutputName: cfg.Model.OutputName,
		}),
		func() string { return manager.ActivePath() },
		logger,
	)
	defer eng.Close()

	managerOpts := modelver.Options{
		Store:       stateStore,
		Invalidator: eng,
		CacheDir:    cfg.Model.CacheDir,
		BundledPath: cfg.Model.BundledPath,
		Logger:      logger,
	}
	if cfg.Remote.BaseURL != "" {
		managerOpts.Source = modelver.NewHTTPVersionSource(cfg.Remote.BaseURL, cfg.Remote.Timeout)
		managerOpts.Resolver = modelver.NewStorageResolver(cfg.Remote.StorageURL)
		managerOpts.Downloader = modelver.NewHTTPDownloader(cfg.Remote.Timeout)
	}
	manager, err = modelver.NewManager(managerOpts)
	if err != nil {
		logger.Error("model version manager init failed", "error", err)
		os.Exit(1)
	}

	var recorder inventory.FeedbackRecorder
	var syncer *feedback.Syncer
	if feedbackStore != nil {
		fl := feedback.NewLogger(feedbackStore, logger)
		recorder = fl
		if cfg.Remote.BaseURL != "" {
			sink := feedback.NewHTTPSink(cfg.Remote.BaseURL, cfg.Remote.Timeout)
			syncer = feedback.NewSyncer(feedbackStore, sink, logger)
		}
	}

	reconciler := inventory.NewReconciler(pantryStore, recorder, logger)
	if err := reconciler.Load(); err != nil {
		logger.Warn("inventory restore failed", "error", err)
	}

	scan := scanner.New(eng, cfg.Model.InputSize, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Remote.BaseURL != "" && managerOpts.Source != nil {
		go manager.RunPeriodic(ctx, cfg.Schedule.ModelUpdateInterval)
	}
	if syncer != nil {
		go syncer.RunPeriodic(ctx, cfg.Schedule.FeedbackSyncInterval)
	}

	srv := server.New(scan, reconciler, syncOrNoop(syncer), manager, logger)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr, "model_version", manager.Version())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

// noopSyncer answers sync requests when no remote backend is configured.
type noopSyncer struct{}

func (noopSyncer) Sync(context.Context) feedback.SyncResult {
	return feedback.SyncResult{Success: true}
}

func syncOrNoop(s *feedback.Syncer) server.FeedbackSyncer {
	if s == nil {
		return noopSyncer{}
	}
	return s
}
