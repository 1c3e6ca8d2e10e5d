package tenant

import "github.com/billflow-erp/billflow/internal/transfer"

// Tenant is one organisational unit with its own record set, delivery
// destination and scheduling cadence.
type Tenant struct {
	ID           int64
	Name         string
	Destination  transfer.Destination
	Recipients   []string
	GenerateCron string
	TransferCron string
}
