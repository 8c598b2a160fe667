package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sammy/rankgrid/internal/config"
	"github.com/sammy/rankgrid/internal/logger"
	"github.com/sammy/rankgrid/internal/repository"
	"github.com/sammy/rankgrid/internal/serp"
	"github.com/sammy/rankgrid/internal/service"
)

// One-shot queue invocation, the same work the HTTP endpoint triggers. Meant
// for system cron and for operating the queue when the API is down.
func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "rankgrid-queue",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	budgetMs := flag.Int("budget", 0, "Override invocation budget in milliseconds")
	batchLimit := flag.Int("batch", 0, "Override batch limit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *budgetMs > 0 {
		cfg.Queue.InvocationBudgetMs = *budgetMs
	}
	if *batchLimit > 0 {
		cfg.Queue.BatchLimit = *batchLimit
	}

	appLogger.WithFields(logger.Fields{
		"budget_ms": cfg.Queue.InvocationBudgetMs,
		"batch":     cfg.Queue.BatchLimit,
	}).Info("Starting queue invocation")

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	ledgerRepo := repository.NewLedgerRepository(db)
	jobRepo := repository.NewJobRepository(db)
	trackingRepo := repository.NewTrackingRepository(db)

	serpClient := serp.NewClient(&serp.Config{
		BaseURL:      cfg.Serp.BaseURL,
		APIKey:       cfg.Serp.APIKey,
		CostPerCheck: cfg.Serp.CostPerCheck,
	}, appLogger)

	summaryService := serp.NewSummaryService(&serp.SummaryConfig{
		Enabled: cfg.Summary.Enabled,
		Model:   cfg.Summary.Model,
		APIKey:  cfg.Summary.APIKey,
		BaseURL: cfg.Summary.BaseURL,
	})

	dispatcher := service.NewDispatcherService(
		jobRepo,
		ledgerRepo,
		trackingRepo,
		serpClient,
		summaryService,
		appLogger,
		service.DispatcherConfig{
			InvocationBudget: cfg.Queue.InvocationBudget(),
			JobBudget:        cfg.Queue.JobBudget(),
			StaleThreshold:   cfg.Queue.StaleThreshold(),
			BatchLimit:       cfg.Queue.BatchLimit,
			ReapLimit:        cfg.Queue.ReapLimit,
		},
	)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	start := time.Now()
	summary, err := dispatcher.Run(ctx)
	if err != nil {
		appLogger.WithError(err).Fatal("Queue invocation failed")
	}

	appLogger.WithFields(logger.Fields{
		"processed":   summary.Processed,
		"failed":      summary.Failed,
		"stale":       summary.StaleCleanedUp,
		"pending":     summary.Pending,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Queue invocation completed")
}
