package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/courseloop/backend/internal/database"
	"github.com/courseloop/backend/internal/tasks"
	"github.com/courseloop/backend/pkg/config"
	"github.com/courseloop/backend/pkg/queue"
	"github.com/courseloop/backend/pkg/util"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting courseloop worker")

	if err := util.ValidateCronExpr(cfg.Worker.SweepCron); err != nil {
		logger.Error("invalid sweep schedule", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Create Asynq server
	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency)

	// Create task handler
	handler := tasks.NewHandler(db, logger, cfg.Referral.TTL())

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Periodic maintenance: enqueue the referral sweep and token purge on
	// the configured cron schedule.
	client := queue.NewClient(&cfg.Redis)
	go runScheduler(ctx, client, cfg.Worker.SweepCron, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	// Start the server
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	<-ctx.Done()

	client.Close()
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}

func runScheduler(ctx context.Context, client *asynq.Client, cronExpr string, logger *slog.Logger) {
	for {
		next, err := util.NextCronTime(cronExpr, time.Now())
		if err != nil {
			logger.Error("scheduler stopped: bad cron expression", "error", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		if _, err := client.Enqueue(tasks.NewReferralSweepTask()); err != nil {
			logger.Error("failed to enqueue referral sweep", "error", err)
		}
		if _, err := client.Enqueue(tasks.NewTokenPurgeTask()); err != nil {
			logger.Error("failed to enqueue token purge", "error", err)
		}
	}
}
