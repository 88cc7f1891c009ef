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

	"github.com/enerbat/bacs-engine/internal/api"
	"github.com/enerbat/bacs-engine/internal/assessment"
	"github.com/enerbat/bacs-engine/internal/catalog"
	"github.com/enerbat/bacs-engine/internal/config"
	"github.com/enerbat/bacs-engine/internal/reconcile"
	"github.com/enerbat/bacs-engine/internal/services"
	"github.com/enerbat/bacs-engine/internal/storage"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting bacs-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations")
	if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Initialize service registry
	registry := services.NewRegistry()

	// Register service providers
	postgresProvider, err := services.NewPostgresProvider(initCtx, cfg.Database.DSN)
	if err != nil {
		slog.Error("failed to create postgres provider", "error", err)
		os.Exit(1)
	}
	registry.Register("postgres", postgresProvider)

	redisProvider, err := services.NewRedisProvider(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Error("failed to create redis provider", "error", err)
		os.Exit(1)
	}
	registry.Register("redis", redisProvider)

	// Load the reference catalog. Without it no assessment can be
	// validated, so failure here is fatal.
	catalogLoader := catalog.NewLoader()
	if err := catalogLoader.LoadFromDir(cfg.Catalog.Dir); err != nil {
		slog.Error("failed to load catalog", "dir", cfg.Catalog.Dir, "error", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded", "categories", len(catalogLoader.CategoryIDs()))

	// Initialize assessment service with the Redis result cache
	cache := assessment.NewResultCache(redisProvider.Client(), 24*time.Hour)
	service := assessment.NewService(catalogLoader, repo, cache)

	// Initialize reconcile worker
	reconciler := reconcile.NewReconciler(service, repo, cfg.Reconcile.Interval)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start reconcile worker
	reconciler.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, service, catalogLoader, repo, registry)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Close backing services
	if err := registry.CloseAll(); err != nil {
		slog.Error("service close error", "error", err)
	}
	if err := repo.Close(); err != nil {
		slog.Error("repository close error", "error", err)
	}

	slog.Info("bacs-engine stopped")
}
