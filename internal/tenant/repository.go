package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billflow-erp/billflow/internal/shared"
	"github.com/billflow-erp/billflow/internal/transfer"
)

// Repository provides PostgreSQL backed access to the tenant registry.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const tenantColumns = `id, name, dest_kind, dest_host, dest_port, dest_username, dest_password,
	dest_remote_dir, dest_bucket, dest_prefix, recipients, generate_cron, transfer_cron`

// FindAll returns every registered tenant.
func (r *Repository) FindAll(ctx context.Context) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("tenant: find all: %w", err)
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

// Find returns one tenant.
func (r *Repository) Find(ctx context.Context, id int64) (*Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("tenant: find %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("tenant: find %d: %w", id, err)
		}
		return nil, shared.ErrNotFound
	}
	return scanTenant(rows)
}

// Destination resolves the tenant's delivery destination.
func (r *Repository) Destination(ctx context.Context, tenantID int64) (transfer.Destination, error) {
	t, err := r.Find(ctx, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return transfer.Destination{}, fmt.Errorf("tenant %d: %w", tenantID, shared.ErrNotFound)
		}
		return transfer.Destination{}, err
	}
	return t.Destination, nil
}

// Recipients resolves the tenant's notification recipients.
func (r *Repository) Recipients(ctx context.Context, tenantID int64) ([]string, error) {
	t, err := r.Find(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return t.Recipients, nil
}

func scanTenant(rows pgx.Rows) (*Tenant, error) {
	var t Tenant
	if err := rows.Scan(&t.ID, &t.Name,
		&t.Destination.Kind, &t.Destination.Host, &t.Destination.Port,
		&t.Destination.Username, &t.Destination.Password,
		&t.Destination.RemoteDir, &t.Destination.Bucket, &t.Destination.Prefix,
		&t.Recipients, &t.GenerateCron, &t.TransferCron); err != nil {
		return nil, fmt.Errorf("tenant: scan: %w", err)
	}
	return &t, nil
}
