package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/billflow-erp/billflow/internal/app"
	"github.com/billflow-erp/billflow/internal/billing"
	"github.com/billflow-erp/billflow/internal/invoice"
	"github.com/billflow-erp/billflow/internal/notify"
	"github.com/billflow-erp/billflow/internal/observability"
	"github.com/billflow-erp/billflow/internal/platform/cache"
	"github.com/billflow-erp/billflow/internal/platform/db"
	"github.com/billflow-erp/billflow/internal/shared"
	"github.com/billflow-erp/billflow/internal/tenant"
	"github.com/billflow-erp/billflow/internal/transfer"
	"github.com/billflow-erp/billflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Metrics:        metrics,
		InvoiceHandler: invoice.NewHandler(logger, pipeline, jobsClient, invoiceRepo),
		BillingHandler: billing.NewHandler(logger, billingRepo),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
