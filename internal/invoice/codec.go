package invoice

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FieldKind declares the value family a field renders.
type FieldKind int

const (
	KindString FieldKind = iota
	// KindInteger renders whole-unit amounts.
	KindInteger
	// KindDecimal renders fractional amounts rounded half-up.
	KindDecimal
)

// Field describes one fixed slot within a positional row.
type Field struct {
	Name    string
	Offset  int
	Width   int
	Kind    FieldKind
	Pattern string
}

// RowLayout is the ordered field list for one row type.
type RowLayout struct {
	Name   string
	Fields []Field
}

// Codec renders positional rows for one invoice file variant. Each row type
// is interpreted from its layout; no reflection, no annotations.
type Codec struct {
	layouts map[string]RowLayout
	widths  map[string]int
}

// NewCodec builds a codec from layouts. Numeric patterns are validated here
// so a bad layout fails at construction, not per record.
func NewCodec(layouts ...RowLayout) (*Codec, error) {
	c := &Codec{
		layouts: make(map[string]RowLayout, len(layouts)),
		widths:  make(map[string]int, len(layouts)),
	}
	for _, l := range layouts {
		width := 0
		for _, f := range l.Fields {
			if f.Width <= 0 {
				return nil, fmt.Errorf("invoice: layout %s field %s: width must be positive", l.Name, f.Name)
			}
			p, err := ParseNumericPattern(f.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invoice: layout %s field %s: %w", l.Name, f.Name, err)
			}
			if p != nil && p.Width() > f.Width {
				return nil, fmt.Errorf("invoice: layout %s field %s: pattern wider than field", l.Name, f.Name)
			}
			if end := f.Offset + f.Width; end > width {
				width = end
			}
		}
		c.layouts[l.Name] = l
		c.widths[l.Name] = width
	}
	return c, nil
}

// MustCodec builds a codec and panics on layout errors. Layouts are static
// per variant, so a failure here is a programming error.
func MustCodec(layouts ...RowLayout) *Codec {
	c, err := NewCodec(layouts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Encode renders one row of the named layout. Missing values render as
// spaces; a value longer than its field width is an encoding error.
func (c *Codec) Encode(layout string, values map[string]any) (string, error) {
	l, ok := c.layouts[layout]
	if !ok {
		return "", fmt.Errorf("invoice: unknown row layout %q", layout)
	}

	buf := make([]byte, c.widths[layout])
	for i := range buf {
		buf[i] = ' '
	}

	for _, f := range l.Fields {
		rendered, err := renderField(f, values[f.Name])
		if err != nil {
			return "", fmt.Errorf("field %s: %w", f.Name, err)
		}
		if len(rendered) > f.Width {
			return "", fmt.Errorf("field %s: value %q exceeds width %d", f.Name, rendered, f.Width)
		}
		switch f.Kind {
		case KindString:
			copy(buf[f.Offset:], rendered)
		default:
			// Numeric fields are right aligned within their slot.
			copy(buf[f.Offset+f.Width-len(rendered):], rendered)
		}
	}
	return string(buf), nil
}

// Decode slices a positional line back into trimmed field values.
func (c *Codec) Decode(layout, line string) (map[string]string, error) {
	l, ok := c.layouts[layout]
	if !ok {
		return nil, fmt.Errorf("invoice: unknown row layout %q", layout)
	}
	if len(line) < c.widths[layout] {
		return nil, fmt.Errorf("invoice: line shorter than layout %s: %d < %d", layout, len(line), c.widths[layout])
	}
	values := make(map[string]string, len(l.Fields))
	for _, f := range l.Fields {
		values[f.Name] = strings.TrimSpace(line[f.Offset : f.Offset+f.Width])
	}
	return values, nil
}

// renderField formats a single value. A runtime type that does not match the
// field's declared numeric kind renders empty rather than failing; existing
// file consumers depend on that behaviour.
func renderField(f Field, value any) (string, error) {
	if value == nil {
		return "", nil
	}
	switch f.Kind {
	case KindString:
		switch v := value.(type) {
		case string:
			return v, nil
		case *string:
			if v == nil {
				return "", nil
			}
			return *v, nil
		default:
			return "", nil
		}
	case KindInteger:
		pattern, err := ParseNumericPattern(f.Pattern)
		if err != nil {
			return "", err
		}
		switch v := value.(type) {
		case int:
			return FormatInteger(int64(v), pattern)
		case int32:
			return FormatInteger(int64(v), pattern)
		case int64:
			return FormatInteger(v, pattern)
		default:
			return "", nil
		}
	case KindDecimal:
		pattern, err := ParseNumericPattern(f.Pattern)
		if err != nil {
			return "", err
		}
		switch v := value.(type) {
		case float64:
			return FormatDecimal(decimal.NewFromFloat(v), pattern)
		case float32:
			return FormatDecimal(decimal.NewFromFloat32(v), pattern)
		case decimal.Decimal:
			return FormatDecimal(v, pattern)
		default:
			return "", nil
		}
	default:
		return "", fmt.Errorf("unknown field kind %d", f.Kind)
	}
}
