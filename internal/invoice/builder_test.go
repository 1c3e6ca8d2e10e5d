package invoice

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/billflow-erp/billflow/internal/billing"
)

var testClock = func() time.Time {
	return time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
}

func externalTestBuilder() Builder {
	return NewBuilder(ExternalVariant(), []Pair{{Type: billing.TypeExternal, Category: "WATER"}}, testClock)
}

func waterRecord(id int64, rows ...billing.InvoiceRow) billing.Record {
	return billing.Record{
		ID:       id,
		TenantID: 1,
		Type:     billing.TypeExternal,
		Category: "WATER",
		Status:   billing.StatusApproved,
		Recipient: billing.Party{
			Name:       "Acme Works",
			CustomerNo: "10042",
		},
		Rows:  rows,
		DueAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildAllRecordsSucceed(t *testing.T) {
	builder := externalTestBuilder()

	records := []billing.Record{
		waterRecord(1,
			billing.InvoiceRow{Description: "Water usage", Quantity: 2, UnitCost: 150.25},
			billing.InvoiceRow{Description: "Meter rent", Quantity: 1, UnitCost: 49.75},
		),
		waterRecord(2,
			billing.InvoiceRow{Description: "Water usage", Quantity: 3, UnitCost: 100},
		),
	}

	content, errs := builder.Build(records)
	require.Empty(t, errs)
	require.NotNil(t, content)

	lines := strings.Split(string(content), "\n")
	// header + 3 body rows + footer
	require.Len(t, lines, 5)
	require.True(t, strings.HasPrefix(lines[0], "10"))
	require.True(t, strings.HasPrefix(lines[1], "20"))
	require.True(t, strings.HasPrefix(lines[4], "90"))

	// footer total: 2*150.25 + 49.75 + 3*100 = 650.25 over 3 body lines
	codec := ExternalVariant().Codec
	footer, err := codec.Decode(layoutFooter, lines[4])
	require.NoError(t, err)
	require.Equal(t, "000003", footer["line_count"])
	require.Equal(t, "+0000000650.25", footer["total"])
}

func TestBuildExpandsAllocationsIntoLines(t *testing.T) {
	builder := externalTestBuilder()

	records := []billing.Record{
		waterRecord(1, billing.InvoiceRow{
			Description: "Water usage",
			Quantity:    1,
			UnitCost:    300,
			Allocations: []billing.AccountAllocation{
				{Account: "3000", Function: "360", Amount: 180},
				{Account: "3001", Function: "360", Amount: 120},
			},
		}),
	}

	content, errs := builder.Build(records)
	require.Empty(t, errs)

	lines := strings.Split(string(content), "\n")
	// header + one line per allocation + footer
	require.Len(t, lines, 4)

	codec := ExternalVariant().Codec
	first, err := codec.Decode(layoutLine, lines[1])
	require.NoError(t, err)
	require.Equal(t, "3000", first["account"])
	require.Equal(t, "+00000180.00", first["amount"])

	second, err := codec.Decode(layoutLine, lines[2])
	require.NoError(t, err)
	require.Equal(t, "3001", second["account"])
	require.Equal(t, "+00000120.00", second["amount"])

	// The footer total counts the row once, not per allocation line.
	footer, err := codec.Decode(layoutFooter, lines[3])
	require.NoError(t, err)
	require.Equal(t, "+0000000300.00", footer["total"])
}

func TestBuildFailingRecordIsIsolated(t *testing.T) {
	builder := externalTestBuilder()

	records := []billing.Record{
		waterRecord(1, billing.InvoiceRow{Description: "Water usage", Quantity: 1, UnitCost: 100}),
		waterRecord(2, billing.InvoiceRow{Description: strings.Repeat("X", 40), Quantity: 1, UnitCost: 50}),
		waterRecord(3, billing.InvoiceRow{Description: "Meter rent", Quantity: 1, UnitCost: 25}),
	}

	content, errs := builder.Build(records)
	require.NotNil(t, content)
	require.Len(t, errs, 1)
	require.NotNil(t, errs[0].RecordID)
	require.Equal(t, int64(2), *errs[0].RecordID)

	lines := strings.Split(string(content), "\n")
	// header + 2 surviving rows + footer; no partial output of record 2
	require.Len(t, lines, 4)

	codec := ExternalVariant().Codec
	footer, err := codec.Decode(layoutFooter, lines[3])
	require.NoError(t, err)
	require.Equal(t, "+0000000125.00", footer["total"])
}

func TestBuildMultiRowRecordFailsAtomically(t *testing.T) {
	builder := externalTestBuilder()

	// Second row fails; the first row's output must be discarded with it.
	records := []billing.Record{
		waterRecord(1,
			billing.InvoiceRow{Description: "Good row", Quantity: 1, UnitCost: 10},
			billing.InvoiceRow{Description: strings.Repeat("Y", 40), Quantity: 1, UnitCost: 20},
		),
		waterRecord(2, billing.InvoiceRow{Description: "Survivor", Quantity: 1, UnitCost: 5}),
	}

	content, errs := builder.Build(records)
	require.Len(t, errs, 1)
	require.Equal(t, int64(1), *errs[0].RecordID)

	lines := strings.Split(string(content), "\n")
	require.Len(t, lines, 3)
	require.NotContains(t, string(content), "Good row")
}

func TestBuildAllRecordsFailYieldsNoFile(t *testing.T) {
	builder := externalTestBuilder()

	records := []billing.Record{
		waterRecord(1), // no rows
		waterRecord(2, billing.InvoiceRow{Description: strings.Repeat("Z", 40)}),
	}

	content, errs := builder.Build(records)
	require.Nil(t, content)
	require.Len(t, errs, 2)
}

func TestBuildInternalVariantNarrowsToWholeUnits(t *testing.T) {
	builder := NewBuilder(InternalVariant(), []Pair{{Type: billing.TypeInternal, Category: "IT"}}, testClock)

	rec := billing.Record{
		ID:       9,
		TenantID: 1,
		Type:     billing.TypeInternal,
		Category: "IT",
		Status:   billing.StatusApproved,
		Rows: []billing.InvoiceRow{
			{Description: "Service charge", Quantity: 1, UnitCost: 1337.49},
		},
	}

	content, errs := builder.Build([]billing.Record{rec})
	require.Empty(t, errs)

	lines := strings.Split(string(content), "\n")
	require.Len(t, lines, 3)

	codec := InternalVariant().Codec
	line, err := codec.Decode(layoutLine, lines[1])
	require.NoError(t, err)
	require.Equal(t, "+0000001337", line["amount"])

	footer, err := codec.Decode(layoutFooter, lines[2])
	require.NoError(t, err)
	require.Equal(t, "+0000001337", footer["total"])
}
