package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/billflow-erp/billflow/internal/invoice"
)

// Destination describes where one tenant's files are delivered.
type Destination struct {
	Kind      string // "sftp" or "s3"
	Host      string
	Port      int
	Username  string
	Password  string
	RemoteDir string
	Bucket    string
	Prefix    string
}

// Uploader pushes file bytes to a destination.
type Uploader interface {
	Upload(ctx context.Context, dest Destination, name string, content []byte) error
}

// DestinationResolver maps a tenant to its delivery destination.
type DestinationResolver interface {
	Destination(ctx context.Context, tenantID int64) (Destination, error)
}

// FileStore is the slice of persistence the dispatcher needs.
type FileStore interface {
	UpdateFileStatus(ctx context.Context, fileID int64, status invoice.FileStatus, sent *time.Time) error
}

// Dispatcher pushes pending invoice files to tenant destinations and records
// the outcome. A failed send leaves the file SEND_FAILED for the next
// scheduled retry; there is no immediate re-attempt.
type Dispatcher struct {
	store     FileStore
	dests     DestinationResolver
	uploaders map[string]Uploader
	clock     func() time.Time
	logger    *slog.Logger
}

// NewDispatcher constructs a Dispatcher. Uploaders are keyed by destination
// kind.
func NewDispatcher(store FileStore, dests DestinationResolver, uploaders map[string]Uploader, clock func() time.Time, logger *slog.Logger) *Dispatcher {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, dests: dests, uploaders: uploaders, clock: clock, logger: logger}
}

// Dispatch delivers one file and updates its status based on the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, file *invoice.File) error {
	dest, err := d.dests.Destination(ctx, file.TenantID)
	if err != nil {
		d.markFailed(ctx, file)
		return fmt.Errorf("transfer: resolve destination for tenant %d: %w", file.TenantID, err)
	}

	uploader, ok := d.uploaders[dest.Kind]
	if !ok {
		d.markFailed(ctx, file)
		return fmt.Errorf("transfer: no uploader for destination kind %q", dest.Kind)
	}

	if err := uploader.Upload(ctx, dest, file.Name, file.Content); err != nil {
		d.markFailed(ctx, file)
		return fmt.Errorf("transfer: upload %s: %w", file.Name, err)
	}

	now := d.clock()
	if err := d.store.UpdateFileStatus(ctx, file.ID, invoice.FileSendSuccessful, &now); err != nil {
		return fmt.Errorf("transfer: mark %s sent: %w", file.Name, err)
	}
	file.Status = invoice.FileSendSuccessful
	file.Sent = &now
	return nil
}

func (d *Dispatcher) markFailed(ctx context.Context, file *invoice.File) {
	if err := d.store.UpdateFileStatus(ctx, file.ID, invoice.FileSendFailed, nil); err != nil {
		d.logger.Error("mark file send failed", slog.String("file", file.Name), slog.Any("error", err))
	}
	file.Status = invoice.FileSendFailed
}
