package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"scorecast/config"
	"scorecast/db"
	shttp "scorecast/http"
	"scorecast/logging"
	"scorecast/ml"
	"scorecast/monitoring"
)

func main() {
	configPath := flag.String("config", "", "config file (default config.yaml or configs/config.yaml)")
	flag.Parse()

	if *configPath == "" {
		*configPath = config.Find()
	}

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, logger.Logger, func(next *config.Config) {
				if err := logger.SetLevel(next.Log.Level); err != nil {
					logger.Warn("ignoring log level", zap.String("level", next.Log.Level), zap.Error(err))
				}
			})
			if err != nil {
				logger.Warn("config watch stopped", zap.Error(err))
			}
		}()
	}

	// 2. Initialize database
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer store.Close()
	logger.Info("database initialized", zap.String("path", cfg.Database.Path))

	recent, err := monitoring.NewRecentPredictions(cfg.Monitoring.RecentCacheSize)
	if err != nil {
		logger.Fatal("failed to build prediction cache", zap.Error(err))
	}
	hub := monitoring.NewHub(logger.Logger)
	go hub.Run(ctx)

	pipeline := &ml.PredictPipeline{
		PreprocessorPath: cfg.Artifacts.PreprocessorPath(),
		ModelPath:        cfg.Artifacts.ModelPath(),
	}
	if err := pipeline.Ready(); err != nil {
		logger.Warn("artifacts not found, predictions fail until training runs", zap.Error(err))
	}

	// 3. Start HTTP server
	server, err := shttp.NewServer(shttp.Options{
		Config:    cfg.HTTP,
		Logger:    logger.Logger,
		Predictor: pipeline,
		Schema:    ml.DefaultSchema().Without(cfg.Training.Target),
		Store:     store,
		Recent:    recent,
		Hub:       hub,
		Stats:     monitoring.NewStats(),
	})
	if err != nil {
		logger.Fatal("failed to build server", zap.Error(err))
	}

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	// 4. Handle graceful shutdown
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}
