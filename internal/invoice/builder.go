package invoice

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/billflow-erp/billflow/internal/billing"
)

// Layout names shared by all variants.
const (
	layoutHeader = "header"
	layoutLine   = "line"
	layoutFooter = "footer"
)

// Builder produces one invoice file per (type, category) batch.
type Builder interface {
	// Pairs declares the (type, category) pairs this builder processes.
	Pairs() []Pair
	// Build encodes the batch into file content plus per-record failures.
	// Content is nil when no record encoded successfully.
	Build(records []billing.Record) ([]byte, []CreationError)
}

// Variant wires a codec to the value mapping for one invoice file flavor.
type Variant struct {
	Type   billing.RecordType
	Codec  *Codec
	Header func(now time.Time) map[string]any
	Line   func(rec billing.Record, row billing.InvoiceRow, alloc *billing.AccountAllocation) map[string]any
	Footer func(total float64, lineCount int) map[string]any
}

type variantBuilder struct {
	variant Variant
	pairs   []Pair
	clock   func() time.Time
}

// NewBuilder constructs a builder for the variant and its registered pairs.
func NewBuilder(v Variant, pairs []Pair, clock func() time.Time) Builder {
	if clock == nil {
		clock = time.Now
	}
	return &variantBuilder{variant: v, pairs: pairs, clock: clock}
}

func (b *variantBuilder) Pairs() []Pair {
	return b.pairs
}

// Build renders header, body rows and footer. Each record encodes
// independently: a failing record contributes a record-specific error and its
// partial output is discarded, the rest of the batch continues.
func (b *variantBuilder) Build(records []billing.Record) ([]byte, []CreationError) {
	header, err := b.variant.Codec.Encode(layoutHeader, b.variant.Header(b.clock()))
	if err != nil {
		return nil, []CreationError{CommonError("encode header: %v", err)}
	}

	lines := []string{header}
	var errs []CreationError
	var total float64
	lineCount := 0

	for _, rec := range records {
		recLines, recTotal, err := b.encodeRecord(rec)
		if err != nil {
			errs = append(errs, RecordError(rec.ID, "%v", err))
			continue
		}
		lines = append(lines, recLines...)
		total += recTotal
		lineCount += len(recLines)
	}

	if lineCount == 0 {
		return nil, errs
	}

	footer, err := b.variant.Codec.Encode(layoutFooter, b.variant.Footer(total, lineCount))
	if err != nil {
		return nil, append(errs, CommonError("encode footer: %v", err))
	}
	lines = append(lines, footer)

	content, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(strings.Join(lines, "\n")))
	if err != nil {
		return nil, append(errs, CommonError("encode file content: %v", err))
	}
	return content, errs
}

// encodeRecord renders all lines for one record, expanding rows with account
// allocations into one line per allocation. All-or-nothing per record.
func (b *variantBuilder) encodeRecord(rec billing.Record) ([]string, float64, error) {
	if len(rec.Rows) == 0 {
		return nil, 0, fmt.Errorf("record has no invoice rows")
	}

	var out []string
	var total float64
	for i, row := range rec.Rows {
		if len(row.Allocations) == 0 {
			line, err := b.variant.Codec.Encode(layoutLine, b.variant.Line(rec, row, nil))
			if err != nil {
				return nil, 0, fmt.Errorf("row %d: %w", i+1, err)
			}
			out = append(out, line)
		} else {
			for j := range row.Allocations {
				line, err := b.variant.Codec.Encode(layoutLine, b.variant.Line(rec, row, &row.Allocations[j]))
				if err != nil {
					return nil, 0, fmt.Errorf("row %d allocation %d: %w", i+1, j+1, err)
				}
				out = append(out, line)
			}
		}
		total += row.UnitCost * row.Quantity
	}
	return out, total, nil
}
