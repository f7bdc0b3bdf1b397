package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"scorecast/config"
	"scorecast/db"
	"scorecast/logging"
	"scorecast/training"
)

func main() {
	configPath := flag.String("config", "", "config file (default config.yaml or configs/config.yaml)")
	datasetPath := flag.String("dataset", "", "training CSV, overrides training.dataset")
	target := flag.String("target", "", "target column, overrides training.target")
	artifactsDir := flag.String("artifacts", "", "artifact directory, overrides artifacts.dir")
	noLog := flag.Bool("no-log", false, "skip writing the training log to the database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *datasetPath != "" {
		cfg.Training.Dataset = *datasetPath
	}
	if *target != "" {
		cfg.Training.Target = *target
	}
	if *artifactsDir != "" {
		cfg.Artifacts.Dir = *artifactsDir
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store training.LogStore
	if !*noLog {
		s, err := db.Open(cfg.Database.Path)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer s.Close()
		store = s
	}

	result, err := training.NewModelTrainer(cfg, store, logger.Logger).Run(ctx)
	if err != nil {
		logger.Error("training failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	for _, r := range result.Results {
		fmt.Printf("%-20s test_r2=%.4f cv=%.4f params=%v\n", r.Model, r.TestR2, r.CVScore, r.BestParams)
	}
	fmt.Printf("best model %s (%s) saved to %s\n", result.Best.Model, result.Best.Kind, result.ModelPath)
}
