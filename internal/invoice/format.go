package invoice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NumericPattern describes zero-padded, optionally signed rendering of a
// numeric field, parsed from patterns such as "+0000000000" or "000000.00".
type NumericPattern struct {
	Signed     bool
	IntDigits  int
	FracDigits int
}

// Width returns the rendered width of the pattern.
func (p NumericPattern) Width() int {
	w := p.IntDigits
	if p.Signed {
		w++
	}
	if p.FracDigits > 0 {
		w += 1 + p.FracDigits
	}
	return w
}

var errBadPattern = errors.New("malformed numeric pattern")

// ParseNumericPattern parses a zero-padding pattern. An empty pattern returns
// nil, meaning the minimal decimal form is rendered.
func ParseNumericPattern(pattern string) (*NumericPattern, error) {
	if pattern == "" {
		return nil, nil
	}
	p := &NumericPattern{}
	rest := pattern
	if strings.HasPrefix(rest, "+") {
		p.Signed = true
		rest = rest[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(rest, ".")
	if intPart == "" || strings.Trim(intPart, "0") != "" {
		return nil, fmt.Errorf("invoice: %w: %q", errBadPattern, pattern)
	}
	p.IntDigits = len(intPart)
	if hasFrac {
		if fracPart == "" || strings.Trim(fracPart, "0") != "" {
			return nil, fmt.Errorf("invoice: %w: %q", errBadPattern, pattern)
		}
		p.FracDigits = len(fracPart)
	}
	return p, nil
}

// FormatInteger renders a whole-unit amount. Without a pattern the value is
// rendered with two decimal places even though no stored decimal exists, for
// compatibility with consumers of the legacy files.
func FormatInteger(v int64, p *NumericPattern) (string, error) {
	d := decimal.NewFromInt(v)
	if p == nil {
		return d.StringFixed(2), nil
	}
	return renderNumber(d, p)
}

// FormatDecimal renders a decimal amount rounded half-up to the pattern's
// fractional digits. Without a pattern the minimal decimal form is rendered.
func FormatDecimal(d decimal.Decimal, p *NumericPattern) (string, error) {
	if p == nil {
		return d.String(), nil
	}
	// decimal.Round rounds half away from zero, matching half-up on the
	// magnitudes these files carry.
	return renderNumber(d.Round(int32(p.FracDigits)), p)
}

func renderNumber(d decimal.Decimal, p *NumericPattern) (string, error) {
	neg := d.IsNegative()
	if neg && !p.Signed {
		return "", fmt.Errorf("invoice: negative value %s for unsigned pattern", d)
	}

	digits := d.Abs().StringFixed(int32(p.FracDigits))
	intLen := len(digits)
	if idx := strings.IndexByte(digits, '.'); idx >= 0 {
		intLen = idx
	}
	if intLen > p.IntDigits {
		return "", fmt.Errorf("invoice: value %s exceeds %d integer digits", d, p.IntDigits)
	}

	var b strings.Builder
	if p.Signed {
		if neg {
			b.WriteByte('-')
		} else {
			b.WriteByte('+')
		}
	}
	b.WriteString(strings.Repeat("0", p.IntDigits-intLen))
	b.WriteString(digits)
	return b.String(), nil
}
