package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kitea/hunt-backend/internal/app"
	"github.com/kitea/hunt-backend/internal/cron"
	"github.com/kitea/hunt-backend/pkg/config"
	"github.com/kitea/hunt-backend/pkg/db"
	"github.com/kitea/hunt-backend/pkg/instance"
	"github.com/kitea/hunt-backend/pkg/logger"
	"github.com/kitea/hunt-backend/pkg/metrics"
	"github.com/kitea/hunt-backend/pkg/migrate"
	"github.com/kitea/hunt-backend/pkg/outbox"
	"github.com/kitea/hunt-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stack, err := app.NewMintStack(context.Background(), app.MintStackParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build mint stack", err)
		os.Exit(1)
	}
	defer stack.Close()

	lock, err := cron.NewCycleLock(redisClient, cfg.App.Env)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewPendingMintSweepJob(cron.PendingMintSweepJobParams{
		Logger:   logg,
		Profiles: stack.Profiles,
		Wallets:  stack.Wallets,
		Batch:    cfg.Cron.PendingSweepBatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pending mint sweep job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(dbClient.DB()),
		Retention:   cfg.Cron.OutboxRetentionDays,
		MinAttempts: cfg.Cron.OutboxRetentionFloor,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	reconcileJob, err := cron.NewStaleMintReconcileJob(cron.StaleMintReconcileJobParams{
		Logger:         logg,
		Mints:          stack.Mints,
		Metrics:        cronMetrics,
		ReceiptTimeout: cfg.Chain.ReceiptTimeout,
		Batch:          cfg.Cron.StaleMintBatch,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stale mint reconcile job", err)
		os.Exit(1)
	}

	dlqJob, err := cron.NewOutboxDLQReportJob(cron.OutboxDLQReportJobParams{
		Logger:     logg,
		Repository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:    cronMetrics,
		Lookback:   cfg.Cron.DLQLookback,
		Sample:     cfg.Cron.DLQSample,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox dlq report job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   cron.NewRegistry(reconcileJob, sweepJob, retentionJob, dlqJob),
		Lock:       lock,
		Metrics:    cronMetrics,
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"instance":    instance.GetID(),
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
