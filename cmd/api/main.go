package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sammy/rankgrid/internal/api"
	"github.com/sammy/rankgrid/internal/config"
	"github.com/sammy/rankgrid/internal/logger"
	"github.com/sammy/rankgrid/internal/repository"
	"github.com/sammy/rankgrid/internal/serp"
	"github.com/sammy/rankgrid/internal/service"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	ledgerRepo := repository.NewLedgerRepository(db)
	jobRepo := repository.NewJobRepository(db)
	trackingRepo := repository.NewTrackingRepository(db)

	// Initialize the SERP executor and summary generator
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
	if summaryService.IsEnabled() {
		appLogger.WithField("model", cfg.Summary.Model).Info("Daily summaries enabled")
	}

	// Initialize services
	rankCheckService := service.NewRankCheckService(
		jobRepo,
		ledgerRepo,
		trackingRepo,
		appLogger,
		cfg.Credits.CreditsPerCheck,
	)

	creditService := service.NewCreditService(ledgerRepo, appLogger)
	trackingService := service.NewTrackingService(trackingRepo, appLogger)

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

	// Setup router
	router := api.SetupRouter(rankCheckService, creditService, trackingService, dispatcher, api.RouterConfig{
		Mode:            cfg.Server.Mode,
		CronSecret:      cfg.Queue.CronSecret,
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
