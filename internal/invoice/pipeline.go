package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/billflow-erp/billflow/internal/billing"
	"github.com/billflow-erp/billflow/internal/shared"
)

// Lock operation names. The run lock keys on (operation, tenant).
const (
	OpCreateFiles   = "createfiles"
	OpTransferFiles = "transferfiles"
)

// RecordStore is the persistence boundary the pipeline depends on.
type RecordStore interface {
	FindByStatus(ctx context.Context, tenantID int64, status billing.RecordStatus) ([]billing.Record, error)
	// SaveFile persists the file and flips the listed records to INVOICED in
	// one transaction.
	SaveFile(ctx context.Context, file *File, invoicedRecordIDs []int64) (*File, error)
	FindFilesByStatus(ctx context.Context, tenantID int64, statuses []FileStatus) ([]File, error)
}

// Dispatcher delivers one file to its tenant destination and updates the
// file status according to the outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, file *File) error
}

// Notifier reports aggregated failures to tenant operators.
type Notifier interface {
	CreationErrors(ctx context.Context, tenantID int64, errs []CreationError)
	TransferErrors(ctx context.Context, tenantID int64, errs []CreationError)
}

// Locker guards against concurrent same-operation runs for a tenant.
type Locker interface {
	Acquire(ctx context.Context, operation string, tenantID int64) (func(context.Context), error)
}

// Pipeline selects eligible records, routes them through the registered
// builders and hands produced files to the dispatcher.
type Pipeline struct {
	store    RecordStore
	builders []Builder
	patterns map[Pair]string
	dispatch Dispatcher
	notifier Notifier
	locks    Locker
	clock    func() time.Time
	logger   *slog.Logger
}

// NewPipeline constructs a Pipeline. Builders run in registration order;
// patterns map each registered pair to its filename pattern.
func NewPipeline(store RecordStore, builders []Builder, configs []FileConfig, dispatch Dispatcher, notifier Notifier, locks Locker, clock func() time.Time, logger *slog.Logger) *Pipeline {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	patterns := make(map[Pair]string, len(configs))
	for _, cfg := range configs {
		patterns[cfg.Pair] = cfg.Pattern
	}
	return &Pipeline{
		store:    store,
		builders: builders,
		patterns: patterns,
		dispatch: dispatch,
		notifier: notifier,
		locks:    locks,
		clock:    clock,
		logger:   logger,
	}
}

// CreateFiles runs one generation pass for the tenant. Per-record failures
// never abort the run; only failing to read the working set or to persist a
// produced file ends the invocation early, and both are reported rather than
// retried within the same call.
func (p *Pipeline) CreateFiles(ctx context.Context, tenantID int64) error {
	release, err := p.locks.Acquire(ctx, OpCreateFiles, tenantID)
	if err != nil {
		return err
	}
	defer release(ctx)
	logger := p.runLogger(ctx)

	working, err := p.store.FindByStatus(ctx, tenantID, billing.StatusApproved)
	if err != nil {
		logger.Error("read approved records", slog.Int64("tenant", tenantID), slog.Any("error", err))
		p.notifier.CreationErrors(ctx, tenantID, []CreationError{CommonError("read approved records: %v", err)})
		return fmt.Errorf("invoice: read approved records: %w", err)
	}

	var errs []CreationError
	for _, builder := range p.builders {
		for _, pair := range builder.Pairs() {
			var batch []billing.Record
			batch, working = splitByPair(working, pair)
			if len(batch) == 0 {
				continue
			}

			content, buildErrs := builder.Build(batch)
			errs = append(errs, buildErrs...)
			if content == nil {
				// Fully failed batch: no file, records stay APPROVED.
				continue
			}

			name, nameErr := p.resolveFilename(pair)
			if nameErr != nil {
				errs = append(errs, CommonError("%v", nameErr))
				continue
			}

			file := &File{
				TenantID: tenantID,
				Name:     name,
				Type:     pair.Type,
				Content:  content,
				Status:   FileGenerated,
				Created:  p.clock(),
			}
			saved, saveErr := p.store.SaveFile(ctx, file, succeededIDs(batch, buildErrs))
			if errors.Is(saveErr, ErrDuplicateFile) {
				// A file with this name was already generated today. The
				// batch stays APPROVED and is picked up once the resolved
				// name changes.
				logger.Warn("invoice file already exists, batch deferred", slog.String("file", name))
				errs = append(errs, CommonError("file %s already exists, batch deferred: %v", name, saveErr))
				continue
			}
			if saveErr != nil {
				logger.Error("persist invoice file", slog.String("file", name), slog.Any("error", saveErr))
				errs = append(errs, CommonError("persist file %s: %v", name, saveErr))
				p.notifier.CreationErrors(ctx, tenantID, errs)
				return fmt.Errorf("invoice: persist file %s: %w", name, saveErr)
			}
			logger.Info("invoice file generated",
				slog.Int64("tenant", tenantID),
				slog.String("file", saved.Name),
				slog.Int("records", len(batch)),
				slog.Int("failed", len(buildErrs)))
		}
	}

	// Whatever is left matched no registered builder pair.
	for _, rec := range working {
		errs = append(errs, RecordError(rec.ID, "no invoice file configuration found for %s", Pair{Type: rec.Type, Category: rec.Category}))
	}

	p.notifier.CreationErrors(ctx, tenantID, errs)
	return nil
}

// TransferFiles delivers every file still pending for the tenant. One file's
// failure does not block the rest.
func (p *Pipeline) TransferFiles(ctx context.Context, tenantID int64) error {
	release, err := p.locks.Acquire(ctx, OpTransferFiles, tenantID)
	if err != nil {
		return err
	}
	defer release(ctx)
	logger := p.runLogger(ctx)

	files, err := p.store.FindFilesByStatus(ctx, tenantID, []FileStatus{FileGenerated, FileSendFailed})
	if err != nil {
		logger.Error("read pending files", slog.Int64("tenant", tenantID), slog.Any("error", err))
		p.notifier.TransferErrors(ctx, tenantID, []CreationError{CommonError("read pending files: %v", err)})
		return fmt.Errorf("invoice: read pending files: %w", err)
	}

	var errs []CreationError
	for i := range files {
		if err := p.dispatch.Dispatch(ctx, &files[i]); err != nil {
			logger.Warn("transfer invoice file", slog.String("file", files[i].Name), slog.Any("error", err))
			errs = append(errs, CommonError("transfer %s: %v", files[i].Name, err))
		}
	}

	p.notifier.TransferErrors(ctx, tenantID, errs)
	return nil
}

// runLogger stamps the run's correlation ID onto the pipeline logger so the
// whole invocation can be traced across services.
func (p *Pipeline) runLogger(ctx context.Context) *slog.Logger {
	if id := shared.CorrelationIDFromContext(ctx); id != "" {
		return p.logger.With(slog.String("correlation_id", id))
	}
	return p.logger
}

func (p *Pipeline) resolveFilename(pair Pair) (string, error) {
	pattern, ok := p.patterns[pair]
	if !ok {
		return "", fmt.Errorf("no filename pattern configured for %s", pair)
	}
	return ResolveFilename(pattern, p.clock())
}

// splitByPair extracts the records matching the pair, preserving store
// iteration order in both halves. Extracted records are attempted by at most
// one builder.
func splitByPair(records []billing.Record, pair Pair) (batch, rest []billing.Record) {
	for _, rec := range records {
		if rec.Type == pair.Type && rec.Category == pair.Category {
			batch = append(batch, rec)
		} else {
			rest = append(rest, rec)
		}
	}
	return batch, rest
}

// succeededIDs lists the batch records that are absent from the error list.
func succeededIDs(batch []billing.Record, errs []CreationError) []int64 {
	failed := make(map[int64]struct{}, len(errs))
	for _, e := range errs {
		if e.RecordID != nil {
			failed[*e.RecordID] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(batch))
	for _, rec := range batch {
		if _, ok := failed[rec.ID]; !ok {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}
