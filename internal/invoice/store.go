package invoice

import (
	"context"

	"github.com/billflow-erp/billflow/internal/billing"
)

// RecordFinder is the billing-record side of the pipeline store.
type RecordFinder interface {
	FindByStatus(ctx context.Context, tenantID int64, status billing.RecordStatus) ([]billing.Record, error)
}

// FileStore is the invoice-file side of the pipeline store.
type FileStore interface {
	SaveFile(ctx context.Context, file *File, invoicedRecordIDs []int64) (*File, error)
	FindFilesByStatus(ctx context.Context, tenantID int64, statuses []FileStatus) ([]File, error)
}

type pipelineStore struct {
	records RecordFinder
	files   FileStore
}

// NewPipelineStore composes the record and file repositories into the store
// boundary the pipeline depends on.
func NewPipelineStore(records RecordFinder, files FileStore) RecordStore {
	return &pipelineStore{records: records, files: files}
}

func (s *pipelineStore) FindByStatus(ctx context.Context, tenantID int64, status billing.RecordStatus) ([]billing.Record, error) {
	return s.records.FindByStatus(ctx, tenantID, status)
}

func (s *pipelineStore) SaveFile(ctx context.Context, file *File, invoicedRecordIDs []int64) (*File, error) {
	return s.files.SaveFile(ctx, file, invoicedRecordIDs)
}

func (s *pipelineStore) FindFilesByStatus(ctx context.Context, tenantID int64, statuses []FileStatus) ([]File, error) {
	return s.files.FindFilesByStatus(ctx, tenantID, statuses)
}
