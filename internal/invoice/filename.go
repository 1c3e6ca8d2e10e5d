package invoice

import (
	"fmt"
	"strings"
	"time"
)

// dateTokens maps the stored pattern tokens onto Go reference layouts.
var dateTokens = []struct {
	token  string
	layout string
}{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MM", "01"},
	{"dd", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

// ResolveFilename replaces the pattern's single bracketed date specifier with
// now formatted accordingly, e.g. "INVOICES_{yyyyMMdd}.TXT" for 2024-03-05
// becomes "INVOICES_20240305.TXT". A pattern without a specifier, with more
// than one, or with unknown format text is a configuration error.
func ResolveFilename(pattern string, now time.Time) (string, error) {
	open := strings.IndexByte(pattern, '{')
	if open < 0 {
		return "", fmt.Errorf("invoice: filename pattern %q has no date placeholder", pattern)
	}
	end := strings.IndexByte(pattern[open:], '}')
	if end < 0 {
		return "", fmt.Errorf("invoice: filename pattern %q has an unterminated placeholder", pattern)
	}
	end += open
	if strings.ContainsAny(pattern[end+1:], "{}") {
		return "", fmt.Errorf("invoice: filename pattern %q has more than one placeholder", pattern)
	}

	spec := pattern[open+1 : end]
	layout, err := dateLayout(spec)
	if err != nil {
		return "", fmt.Errorf("invoice: filename pattern %q: %w", pattern, err)
	}
	return pattern[:open] + now.Format(layout) + pattern[end+1:], nil
}

// dateLayout translates a yyyyMMdd-family specifier into a Go time layout.
func dateLayout(spec string) (string, error) {
	if spec == "" {
		return "", fmt.Errorf("empty date format")
	}
	var b strings.Builder
	rest := spec
	for len(rest) > 0 {
		matched := false
		for _, t := range dateTokens {
			if strings.HasPrefix(rest, t.token) {
				b.WriteString(t.layout)
				rest = rest[len(t.token):]
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		ch := rest[0]
		if ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' {
			return "", fmt.Errorf("unsupported date format token at %q", rest)
		}
		// Literal separators pass through.
		b.WriteByte(ch)
		rest = rest[1:]
	}
	return b.String(), nil
}
