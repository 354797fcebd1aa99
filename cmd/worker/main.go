package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledger-core/internal/accounting"
	"github.com/odyssey-erp/ledger-core/internal/app"
	jobmetrics "github.com/odyssey-erp/ledger-core/internal/jobs"
	"github.com/odyssey-erp/ledger-core/internal/observability"
	"github.com/odyssey-erp/ledger-core/internal/platform/cache"
	"github.com/odyssey-erp/ledger-core/internal/platform/db"
	"github.com/odyssey-erp/ledger-core/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("odyssey-ledger-worker"))
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	moduleOpts, err := cfg.ModuleOptions()
	if err != nil {
		logger.Error("load chart template", slog.Any("error", err))
		os.Exit(1)
	}
	metrics := observability.NewMetrics()
	module := accounting.NewModule(pool, redisClient, logger, metrics, moduleOpts)
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	branches := jobs.NewPgBranches(pool)
	locker := cache.NewLocker(redisClient)

	integrityJob := jobs.NewLedgerIntegrityJob(module.Ledger, module.Balances, branches, locker, logger, jobMetrics)
	warmupJob := jobs.NewReportWarmupJob(module.Reports, branches, locker, logger, jobMetrics)
	creditJob := jobs.NewCreditExposureJob(module.Balances, branches, logger, jobMetrics)

	integrityTask, err := jobs.NewIntegrityTask(jobs.IntegrityPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewReportWarmupTask(jobs.ScopePayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	creditTask, err := jobs.NewCreditExposureTask(jobs.CreditExposurePayload{})
	if err != nil {
		logger.Error("build credit task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.RedisClientOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    jobs.LedgerHandlers(integrityJob, warmupJob, creditJob),
		Cron: []jobs.CronRegistration{
			{Spec: cfg.IntegrityCron, Task: integrityTask},
			{Spec: cfg.WarmupCron, Task: warmupTask},
			{Spec: cfg.CreditScanCron, Task: creditTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	client := asynq.NewClient(cfg.RedisClientOpt())
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	if module.ReportCache != nil {
		if err := jobs.EnqueueOnBump(ctx, module.ReportCache, client, logger); err != nil {
			logger.Warn("subscribe cache bumps", slog.Any("error", err))
		}
	}

	logger.Info("worker started", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
	}
}
