package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/billflow-erp/billflow/internal/app"
	"github.com/billflow-erp/billflow/internal/billing"
	"github.com/billflow-erp/billflow/internal/invoice"
	jobmetrics "github.com/billflow-erp/billflow/internal/jobs"
	"github.com/billflow-erp/billflow/internal/notify"
	"github.com/billflow-erp/billflow/internal/platform/cache"
	"github.com/billflow-erp/billflow/internal/platform/db"
	"github.com/billflow-erp/billflow/internal/shared"
	"github.com/billflow-erp/billflow/internal/tenant"
	"github.com/billflow-erp/billflow/internal/transfer"
	"github.com/billflow-erp/billflow/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	billingRepo := billing.NewRepository(pool)
	invoiceRepo := invoice.NewRepository(pool)
	tenantRepo := tenant.NewRepository(pool)

	configs, err := invoiceRepo.Configs(ctx)
	if err != nil {
		logger.Error("load invoice file configs", slog.Any("error", err))
		os.Exit(1)
	}

	s3Uploader, err := transfer.NewS3Uploader(transfer.S3Config{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		logger.Error("init s3 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	sftpUploader := transfer.NewSFTPUploader(cfg.SFTPConnectTimeout, cfg.SFTPIOTimeout)
	defer sftpUploader.Close()

	dispatcher := transfer.NewDispatcher(invoiceRepo, tenantRepo, map[string]transfer.Uploader{
		"sftp": sftpUploader,
		"s3":   s3Uploader,
	}, time.Now, logger)

	reporter := notify.NewReporter(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, tenantRepo, logger)

	locks := shared.NewRunLock(redisClient, cfg.RunLockMaxHold)
	store := invoice.NewPipelineStore(billingRepo, invoiceRepo)
	builders := invoice.NewBuilders(configs, time.Now)
	pipeline := invoice.NewPipeline(store, builders, configs, dispatcher, reporter, locks, time.Now, logger)

	tenants, err := tenantRepo.FindAll(ctx)
	if err != nil {
		logger.Error("load tenants", slog.Any("error", err))
		os.Exit(1)
	}

	var cron []jobs.CronRegistration
	for _, t := range tenants {
		if t.GenerateCron != "" {
			task, err := jobs.NewGenerateFilesTask(t.ID)
			if err != nil {
				logger.Error("build generate task", slog.Int64("tenant", t.ID), slog.Any("error", err))
				os.Exit(1)
			}
			cron = append(cron, jobs.CronRegistration{Spec: t.GenerateCron, Task: task})
		}
		if t.TransferCron != "" {
			task, err := jobs.NewTransferFilesTask(t.ID)
			if err != nil {
				logger.Error("build transfer task", slog.Int64("tenant", t.ID), slog.Any("error", err))
				os.Exit(1)
			}
			cron = append(cron, jobs.CronRegistration{Spec: t.TransferCron, Task: task})
		}
	}

	metrics := jobmetrics.NewMetrics(nil)
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeGenerateFiles, Handler: jobs.NewGenerateFilesHandler(pipeline, metrics, logger)},
			{Type: jobs.TaskTypeTransferFiles, Handler: jobs.NewTransferFilesHandler(pipeline, metrics, logger)},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting", slog.Int("tenants", len(tenants)), slog.Int("cron_entries", len(cron)))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
