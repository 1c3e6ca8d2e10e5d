package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billflow-erp/billflow/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for invoice files and
// their filename configuration.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ErrDuplicateFile indicates a file with the same tenant and name already
// exists.
var ErrDuplicateFile = errors.New("invoice: duplicate file")

// SaveFile persists the file and transitions the listed records from
// APPROVED to INVOICED in one transaction. The transaction fails when any
// listed record is no longer APPROVED, so a record can never be invoiced
// twice.
func (r *Repository) SaveFile(ctx context.Context, file *File, invoicedRecordIDs []int64) (*File, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `INSERT INTO invoice_files (tenant_id, name, file_type, content, status, created)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`
		if err := tx.QueryRow(ctx, query,
			file.TenantID, file.Name, file.Type, file.Content, file.Status, file.Created,
		).Scan(&file.ID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("%w: %s", ErrDuplicateFile, file.Name)
			}
			return fmt.Errorf("invoice: insert file: %w", err)
		}

		if len(invoicedRecordIDs) == 0 {
			return nil
		}
		tag, err := tx.Exec(ctx,
			`UPDATE billing_records SET status = 'INVOICED', updated_at = NOW()
			 WHERE id = ANY($1) AND status = 'APPROVED'`, invoicedRecordIDs)
		if err != nil {
			return fmt.Errorf("invoice: transition records: %w", err)
		}
		if int(tag.RowsAffected()) != len(invoicedRecordIDs) {
			return fmt.Errorf("invoice: transitioned %d of %d records", tag.RowsAffected(), len(invoicedRecordIDs))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

const fileColumns = `id, tenant_id, name, file_type, content, status, created, sent`

// FindFilesByStatus returns the tenant's files in any of the given statuses
// in creation order.
func (r *Repository) FindFilesByStatus(ctx context.Context, tenantID int64, statuses []FileStatus) ([]File, error) {
	query := `SELECT ` + fileColumns + `
		FROM invoice_files
		WHERE tenant_id = $1 AND status = ANY($2)
		ORDER BY id`

	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	rows, err := r.pool.Query(ctx, query, tenantID, values)
	if err != nil {
		return nil, fmt.Errorf("invoice: find files by status: %w", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

// FindFilesCreatedBetween returns the tenant's files created in [start, end).
func (r *Repository) FindFilesCreatedBetween(ctx context.Context, tenantID int64, start, end time.Time) ([]File, error) {
	query := `SELECT ` + fileColumns + `
		FROM invoice_files
		WHERE tenant_id = $1 AND created >= $2 AND created < $3
		ORDER BY created`

	rows, err := r.pool.Query(ctx, query, tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("invoice: find files created between: %w", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

// UpdateFileStatus updates delivery status and the sent timestamp.
func (r *Repository) UpdateFileStatus(ctx context.Context, fileID int64, status FileStatus, sent *time.Time) error {
	var sentVal pgtype.Timestamptz
	if sent != nil {
		sentVal = pgtype.Timestamptz{Time: *sent, Valid: true}
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoice_files SET status = $2, sent = COALESCE($3, sent) WHERE id = $1`,
		fileID, status, sentVal)
	if err != nil {
		return fmt.Errorf("invoice: update file %d status: %w", fileID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice: update file %d status: no such file", fileID)
	}
	return nil
}

// Configs loads the (type, category) to filename-pattern mapping.
func (r *Repository) Configs(ctx context.Context) ([]FileConfig, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT record_type, category, pattern FROM invoice_file_configs ORDER BY record_type, category`)
	if err != nil {
		return nil, fmt.Errorf("invoice: load file configs: %w", err)
	}
	defer rows.Close()

	var configs []FileConfig
	for rows.Next() {
		var cfg FileConfig
		if err := rows.Scan(&cfg.Pair.Type, &cfg.Pair.Category, &cfg.Pattern); err != nil {
			return nil, fmt.Errorf("invoice: scan file config: %w", err)
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

func scanFiles(rows pgx.Rows) ([]File, error) {
	var files []File
	for rows.Next() {
		var (
			f    File
			sent pgtype.Timestamptz
		)
		if err := rows.Scan(&f.ID, &f.TenantID, &f.Name, &f.Type, &f.Content, &f.Status, &f.Created, &sent); err != nil {
			return nil, fmt.Errorf("invoice: scan file: %w", err)
		}
		if sent.Valid {
			t := sent.Time
			f.Sent = &t
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
