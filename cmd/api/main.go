// Package main provides the entry point for the Sentinela API server
// @title Sentinela API
// @version 1.0
// @description Access control and account security API server.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token authentication
// @Security BearerAuth
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"sentinela/internal/api/routes"
	"sentinela/internal/audit"
	"sentinela/internal/config"
	"sentinela/internal/database"
	"sentinela/internal/logger"
	"sentinela/internal/maintenance"
	"sentinela/internal/repository/postgres"
	"sentinela/internal/validation"

	"github.com/joho/godotenv"
)

func main() {
	// Parse command line flags
	envFile := flag.String("env", ".env", "Path to env file")
	flag.Parse()

	// Load environment file
	if err := godotenv.Load(*envFile); err != nil && *envFile == ".env" {
		log.Printf("Warning: %v", err)
	}

	// Load configuration
	cfg := &config.Config{}
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog := logger.New()
	defer func() { _ = zlog.Sync() }()

	// Initialize database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		zlog.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.Database); err != nil {
		zlog.Fatalw("failed to run migrations", "error", err)
	}

	// Initialize validators
	validation.Initialize()

	// Wire the maintenance jobs against their own repositories; the HTTP layer
	// builds its own set in routes.SetupRoutes.
	userRepo := postgres.NewUserRepository(db)
	attemptRepo := postgres.NewLoginAttemptRepository(db)
	auditRepo := postgres.NewAuditLogRepository(db)
	alertRepo := postgres.NewSecurityAlertRepository(db)
	auditService := audit.NewService(auditRepo, alertRepo, attemptRepo, userRepo, cfg, zlog)

	jobs := maintenance.NewManager(zlog)
	jobs.Register(maintenance.NewAuditLogPruneJob(auditRepo, auditService, cfg, zlog), "30 3 * * *")
	jobs.Register(maintenance.NewLoginAttemptPruneJob(attemptRepo, auditService, cfg, zlog), "40 3 * * *")
	jobs.Register(maintenance.NewResolvedAlertPruneJob(alertRepo, auditService, cfg, zlog), "50 3 * * *")
	jobs.Register(maintenance.NewInactiveUserJob(userRepo, auditService, cfg, zlog), "0 4 * * *")

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go func() {
		if err := jobs.StartScheduler(schedulerCtx); err != nil {
			zlog.Errorw("maintenance scheduler stopped", "error", err)
		}
	}()

	// Setup routes
	router := routes.SetupRoutes(cfg, db, zlog, jobs)

	// Convert port string to int
	port, err := strconv.Atoi(cfg.API.Port)
	if err != nil {
		zlog.Fatalw("invalid port number", "error", err)
	}

	// Create server with graceful shutdown
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		zlog.Infow("starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatalw("failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down server")
	stopScheduler()

	// Give outstanding requests 5 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Fatalw("server forced to shutdown", "error", err)
	}

	zlog.Info("server exiting")
}
