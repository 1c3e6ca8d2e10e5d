package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billflow-erp/billflow/internal/shared"
)

// Repository provides PostgreSQL backed persistence for billing records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `id, tenant_id, record_type, category, status, issuer, recipient, rows, due_at, created_at, updated_at`

// FindByStatus returns all records for the tenant with the given status in
// stable id order.
func (r *Repository) FindByStatus(ctx context.Context, tenantID int64, status RecordStatus) ([]Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM billing_records
		WHERE tenant_id = $1 AND status = $2
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, tenantID, status)
	if err != nil {
		return nil, fmt.Errorf("billing: find by status: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec                    Record
			issuer, recipient, rws []byte
		)
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Type, &rec.Category, &rec.Status,
			&issuer, &recipient, &rws, &rec.DueAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("billing: scan record: %w", err)
		}
		if err := json.Unmarshal(issuer, &rec.Issuer); err != nil {
			return nil, fmt.Errorf("billing: decode issuer for record %d: %w", rec.ID, err)
		}
		if err := json.Unmarshal(recipient, &rec.Recipient); err != nil {
			return nil, fmt.Errorf("billing: decode recipient for record %d: %w", rec.ID, err)
		}
		if err := json.Unmarshal(rws, &rec.Rows); err != nil {
			return nil, fmt.Errorf("billing: decode rows for record %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Find returns a single record.
func (r *Repository) Find(ctx context.Context, id int64) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM billing_records WHERE id = $1`

	var (
		rec                    Record
		issuer, recipient, rws []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.TenantID, &rec.Type, &rec.Category,
		&rec.Status, &issuer, &recipient, &rws, &rec.DueAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("billing: find record %d: %w", id, err)
	}
	if err := json.Unmarshal(issuer, &rec.Issuer); err != nil {
		return nil, fmt.Errorf("billing: decode issuer for record %d: %w", id, err)
	}
	if err := json.Unmarshal(recipient, &rec.Recipient); err != nil {
		return nil, fmt.Errorf("billing: decode recipient for record %d: %w", id, err)
	}
	if err := json.Unmarshal(rws, &rec.Rows); err != nil {
		return nil, fmt.Errorf("billing: decode rows for record %d: %w", id, err)
	}
	return &rec, nil
}

// Save updates an existing record. Invoiced records are immutable; attempting
// to save one returns shared.ErrRecordImmutable.
func (r *Repository) Save(ctx context.Context, rec *Record) error {
	issuer, err := json.Marshal(rec.Issuer)
	if err != nil {
		return fmt.Errorf("billing: encode issuer: %w", err)
	}
	recipient, err := json.Marshal(rec.Recipient)
	if err != nil {
		return fmt.Errorf("billing: encode recipient: %w", err)
	}
	rws, err := json.Marshal(rec.Rows)
	if err != nil {
		return fmt.Errorf("billing: encode rows: %w", err)
	}

	query := `UPDATE billing_records
		SET record_type = $2, category = $3, status = $4, issuer = $5, recipient = $6,
		    rows = $7, due_at = $8, updated_at = NOW()
		WHERE id = $1 AND status <> 'INVOICED'`

	tag, err := r.pool.Exec(ctx, query, rec.ID, rec.Type, rec.Category, rec.Status,
		issuer, recipient, rws, rec.DueAt)
	if err != nil {
		return fmt.Errorf("billing: save record %d: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var status RecordStatus
		err := r.pool.QueryRow(ctx, `SELECT status FROM billing_records WHERE id = $1`, rec.ID).Scan(&status)
		if err == nil && status == StatusInvoiced {
			return shared.ErrRecordImmutable
		}
		return shared.ErrNotFound
	}
	return nil
}
