package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmau0/riobutcher/internal/api"
	"github.com/jmau0/riobutcher/internal/automation"
	"github.com/jmau0/riobutcher/internal/config"
	"github.com/jmau0/riobutcher/internal/core"
	"github.com/jmau0/riobutcher/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	if cfg.LogLevel == "DEBUG" {
		logger.Debug("service starting in DEBUG mode")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL, store.NewChangeFeed(logger))
	if err != nil {
		logger.Error("failed to initialize database", "err", err)
		os.Exit(1)
	}
	defer dbStore.Close()

	automationClient, err := automation.NewClient(automation.Config{
		BaseURL:    cfg.WebhookBaseURL,
		PausePath:  cfg.WebhookPausePath,
		DeletePath: cfg.WebhookDeletePath,
		SendPath:   cfg.WebhookSendPath,
		QRPath:     cfg.WebhookQRPath,
		Timeout:    cfg.WebhookTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize automation client", "err", err)
		os.Exit(1)
	}

	leadService := core.NewLeadService(dbStore, automationClient, logger)
	conversationService := core.NewConversationService(dbStore, automationClient, leadService, logger)
	metricsService := core.NewMetricsService(dbStore, time.Local)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := leadService.Refresh(ctx); err != nil {
		logger.Warn("initial lead refresh failed", "err", err)
	}
	go leadService.Watch(ctx)

	apiHandler := api.NewAPIHandler(dbStore, leadService, conversationService, metricsService, api.Options{
		JWTSecret:             cfg.JWTSecret,
		DashboardUser:         cfg.DashboardUser,
		DashboardPasswordHash: cfg.DashboardPasswordHash,
		IngestSecret:          cfg.IngestSecret,
		WhatsAppInstance:      cfg.WhatsAppInstance,
		DedupeWindow:          cfg.DedupeWindow,
	}, logger)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // webhook calls are bounded by WEBHOOK_TIMEOUT_SECONDS
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("starting server", "addr", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("could not listen", "addr", serverAddr, "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Hijacked websocket connections are not tracked by Shutdown; they end
	// when the process exits.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}

	logger.Info("server exiting gracefully")
}
