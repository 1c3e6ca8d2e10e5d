package billing

import "time"

// RecordType classifies which invoice file variant a record belongs to.
type RecordType string

const (
	TypeExternal RecordType = "EXTERNAL"
	TypeInternal RecordType = "INTERNAL"
)

// RecordStatus enumerates billing record lifecycle states.
type RecordStatus string

const (
	StatusNew      RecordStatus = "NEW"
	StatusApproved RecordStatus = "APPROVED"
	StatusInvoiced RecordStatus = "INVOICED"
	StatusRejected RecordStatus = "REJECTED"
)

// Party identifies one side of a billing record.
type Party struct {
	Name       string `json:"name"`
	OrgNumber  string `json:"org_number"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	CustomerNo string `json:"customer_no"`
}

// AccountAllocation distributes a row amount across ledger dimensions.
type AccountAllocation struct {
	Account  string  `json:"account"`
	Function string  `json:"function"`
	Project  string  `json:"project"`
	Amount   float64 `json:"amount"`
}

// InvoiceRow is one billable line on a record. A row with allocations is
// expanded into one file line per allocation at encoding time.
type InvoiceRow struct {
	Description string              `json:"description"`
	Quantity    float64             `json:"quantity"`
	UnitCost    float64             `json:"unit_cost"`
	VATCode     *string             `json:"vat_code,omitempty"`
	Allocations []AccountAllocation `json:"allocations,omitempty"`
}

// Record is an accumulated billing record awaiting invoicing.
type Record struct {
	ID        int64
	TenantID  int64
	Type      RecordType
	Category  string
	Status    RecordStatus
	Issuer    Party
	Recipient Party
	Rows      []InvoiceRow
	DueAt     time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Amount returns the record total over all rows.
func (r Record) Amount() float64 {
	var total float64
	for _, row := range r.Rows {
		total += row.UnitCost * row.Quantity
	}
	return total
}
