package invoice

import (
	"math"
	"time"

	"github.com/billflow-erp/billflow/internal/billing"
)

const fileDateLayout = "20060102"

// externalCodec lays out the file format expected by the external economy
// system. Record types: 10 header, 20 invoice line, 90 footer.
var externalCodec = MustCodec(
	RowLayout{Name: layoutHeader, Fields: []Field{
		{Name: "record_type", Offset: 0, Width: 2, Kind: KindString},
		{Name: "created", Offset: 2, Width: 8, Kind: KindString},
		{Name: "file_type", Offset: 10, Width: 8, Kind: KindString},
	}},
	RowLayout{Name: layoutLine, Fields: []Field{
		{Name: "record_type", Offset: 0, Width: 2, Kind: KindString},
		{Name: "record_id", Offset: 2, Width: 10, Kind: KindInteger, Pattern: "0000000000"},
		{Name: "customer_no", Offset: 12, Width: 10, Kind: KindString},
		{Name: "description", Offset: 22, Width: 30, Kind: KindString},
		{Name: "quantity", Offset: 52, Width: 9, Kind: KindDecimal, Pattern: "00000.000"},
		{Name: "unit_cost", Offset: 61, Width: 12, Kind: KindDecimal, Pattern: "+00000000.00"},
		{Name: "amount", Offset: 73, Width: 12, Kind: KindDecimal, Pattern: "+00000000.00"},
		{Name: "vat_code", Offset: 85, Width: 2, Kind: KindString},
		{Name: "account", Offset: 87, Width: 6, Kind: KindString},
		{Name: "function", Offset: 93, Width: 6, Kind: KindString},
		{Name: "project", Offset: 99, Width: 8, Kind: KindString},
		{Name: "due_date", Offset: 107, Width: 8, Kind: KindString},
	}},
	RowLayout{Name: layoutFooter, Fields: []Field{
		{Name: "record_type", Offset: 0, Width: 2, Kind: KindString},
		{Name: "line_count", Offset: 2, Width: 6, Kind: KindInteger, Pattern: "000000"},
		{Name: "total", Offset: 8, Width: 14, Kind: KindDecimal, Pattern: "+0000000000.00"},
	}},
)

// ExternalVariant renders invoices destined for the external economy system.
// Amounts carry two decimals; allocation lines split the row amount across
// ledger dimensions.
func ExternalVariant() Variant {
	return Variant{
		Type:  billing.TypeExternal,
		Codec: externalCodec,
		Header: func(now time.Time) map[string]any {
			return map[string]any{
				"record_type": "10",
				"created":     now.Format(fileDateLayout),
				"file_type":   "EXTERNAL",
			}
		},
		Line: func(rec billing.Record, row billing.InvoiceRow, alloc *billing.AccountAllocation) map[string]any {
			values := map[string]any{
				"record_type": "20",
				"record_id":   rec.ID,
				"customer_no": rec.Recipient.CustomerNo,
				"description": row.Description,
				"quantity":    row.Quantity,
				"unit_cost":   row.UnitCost,
				"amount":      row.UnitCost * row.Quantity,
				"vat_code":    row.VATCode,
				"due_date":    rec.DueAt.Format(fileDateLayout),
			}
			if alloc != nil {
				values["amount"] = alloc.Amount
				values["account"] = alloc.Account
				values["function"] = alloc.Function
				values["project"] = alloc.Project
			}
			return values
		},
		Footer: func(total float64, lineCount int) map[string]any {
			return map[string]any{
				"record_type": "90",
				"line_count":  lineCount,
				"total":       total,
			}
		},
	}
}

// internalCodec lays out the internal clearing format. Amount fields hold
// whole currency units.
var internalCodec = MustCodec(
	RowLayout{Name: layoutHeader, Fields: []Field{
		{Name: "record_type", Offset: 0, Width: 2, Kind: KindString},
		{Name: "created", Offset: 2, Width: 8, Kind: KindString},
		{Name: "file_type", Offset: 10, Width: 8, Kind: KindString},
	}},
	RowLayout{Name: layoutLine, Fields: []Field{
		{Name: "record_type", Offset: 0, Width: 2, Kind: KindString},
		{Name: "record_id", Offset: 2, Width: 10, Kind: KindInteger, Pattern: "0000000000"},
		{Name: "description", Offset: 12, Width: 30, Kind: KindString},
		{Name: "quantity", Offset: 42, Width: 6, Kind: KindDecimal, Pattern: "000.00"},
		{Name: "amount", Offset: 48, Width: 11, Kind: KindInteger, Pattern: "+0000000000"},
		{Name: "account", Offset: 59, Width: 6, Kind: KindString},
		{Name: "function", Offset: 65, Width: 6, Kind: KindString},
		{Name: "project", Offset: 71, Width: 8, Kind: KindString},
	}},
	RowLayout{Name: layoutFooter, Fields: []Field{
		{Name: "record_type", Offset: 0, Width: 2, Kind: KindString},
		{Name: "line_count", Offset: 2, Width: 6, Kind: KindInteger, Pattern: "000000"},
		{Name: "total", Offset: 8, Width: 11, Kind: KindInteger, Pattern: "+0000000000"},
	}},
)

// InternalVariant renders internal clearing invoices between units of the
// same tenant. Amounts are narrowed to whole currency units.
func InternalVariant() Variant {
	return Variant{
		Type:  billing.TypeInternal,
		Codec: internalCodec,
		Header: func(now time.Time) map[string]any {
			return map[string]any{
				"record_type": "10",
				"created":     now.Format(fileDateLayout),
				"file_type":   "INTERNAL",
			}
		},
		Line: func(rec billing.Record, row billing.InvoiceRow, alloc *billing.AccountAllocation) map[string]any {
			amount := row.UnitCost * row.Quantity
			values := map[string]any{
				"record_type": "20",
				"record_id":   rec.ID,
				"description": row.Description,
				"quantity":    row.Quantity,
			}
			if alloc != nil {
				amount = alloc.Amount
				values["account"] = alloc.Account
				values["function"] = alloc.Function
				values["project"] = alloc.Project
			}
			values["amount"] = wholeUnits(amount)
			return values
		},
		Footer: func(total float64, lineCount int) map[string]any {
			return map[string]any{
				"record_type": "90",
				"line_count":  lineCount,
				"total":       wholeUnits(total),
			}
		},
	}
}

// wholeUnits narrows a double-precision total to whole currency units,
// rounding halves away from zero.
func wholeUnits(amount float64) int64 {
	return int64(math.Round(amount))
}

// NewBuilders groups configured pairs by record type and constructs the
// matching variant builder for each type that has at least one pair.
func NewBuilders(configs []FileConfig, clock func() time.Time) []Builder {
	byType := make(map[billing.RecordType][]Pair)
	order := make([]billing.RecordType, 0, 2)
	for _, cfg := range configs {
		if _, seen := byType[cfg.Pair.Type]; !seen {
			order = append(order, cfg.Pair.Type)
		}
		byType[cfg.Pair.Type] = append(byType[cfg.Pair.Type], cfg.Pair)
	}

	var builders []Builder
	for _, typ := range order {
		switch typ {
		case billing.TypeExternal:
			builders = append(builders, NewBuilder(ExternalVariant(), byType[typ], clock))
		case billing.TypeInternal:
			builders = append(builders, NewBuilder(InternalVariant(), byType[typ], clock))
		}
	}
	return builders
}
