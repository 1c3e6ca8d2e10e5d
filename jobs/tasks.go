package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/billflow-erp/billflow/internal/jobs"
	"github.com/billflow-erp/billflow/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeGenerateFiles triggers one invoice file generation run.
	TaskTypeGenerateFiles = "invoice:generate"
	// TaskTypeTransferFiles triggers one file transfer run.
	TaskTypeTransferFiles = "invoice:transfer"
)

// RunPayload identifies the tenant a pipeline task runs for.
type RunPayload struct {
	TenantID int64 `json:"tenant_id"`
}

// NewGenerateFilesTask constructs the generation task for a tenant.
func NewGenerateFilesTask(tenantID int64) (*asynq.Task, error) {
	data, err := json.Marshal(RunPayload{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGenerateFiles, data), nil
}

// NewTransferFilesTask constructs the transfer task for a tenant.
func NewTransferFilesTask(tenantID int64) (*asynq.Task, error) {
	data, err := json.Marshal(RunPayload{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeTransferFiles, data), nil
}

// PipelinePort is what the job handlers need from the invoice pipeline.
type PipelinePort interface {
	CreateFiles(ctx context.Context, tenantID int64) error
	TransferFiles(ctx context.Context, tenantID int64) error
}

// NewGenerateFilesHandler processes TaskTypeGenerateFiles tasks. Failed runs
// are not retried by the queue; the next cron firing picks the records up
// again.
func NewGenerateFilesHandler(pipeline PipelinePort, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		return runPipelineTask(ctx, t, "invoice_generate", pipeline.CreateFiles, metrics, logger)
	}
}

// NewTransferFilesHandler processes TaskTypeTransferFiles tasks.
func NewTransferFilesHandler(pipeline PipelinePort, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		return runPipelineTask(ctx, t, "invoice_transfer", pipeline.TransferFiles, metrics, logger)
	}
}

func runPipelineTask(ctx context.Context, t *asynq.Task, job string, run func(context.Context, int64) error, metrics *jobmetrics.Metrics, logger *slog.Logger) error {
	var payload RunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	// Background runs mint their own correlation ID.
	ctx = shared.ContextWithCorrelationID(ctx, "")
	tracker := metrics.Track(job)
	err := run(ctx, payload.TenantID)
	if errors.Is(err, shared.ErrRunInProgress) {
		// Another instance holds the lock; the overlapping firing is dropped.
		logger.Info("run skipped, lock held", slog.String("job", job), slog.Int64("tenant", payload.TenantID))
		_ = tracker.End(nil)
		return nil
	}
	if err := tracker.End(err); err != nil {
		logger.Error("pipeline run failed", slog.String("job", job), slog.Int64("tenant", payload.TenantID), slog.Any("error", err))
		return fmt.Errorf("%s tenant %d: %v: %w", job, payload.TenantID, err, asynq.SkipRetry)
	}
	return nil
}
