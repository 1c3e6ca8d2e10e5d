package invoice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveFilename(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)

	got, err := ResolveFilename("INV_{yyyyMMdd}.TXT", now)
	require.NoError(t, err)
	require.Equal(t, "INV_20240305.TXT", got)

	got, err = ResolveFilename("INVOICES_{yyyy-MM-dd}.TXT", now)
	require.NoError(t, err)
	require.Equal(t, "INVOICES_2024-03-05.TXT", got)

	got, err = ResolveFilename("{yyMMdd}_CLEARING.DAT", now)
	require.NoError(t, err)
	require.Equal(t, "240305_CLEARING.DAT", got)
}

func TestResolveFilenameWithoutPlaceholderFails(t *testing.T) {
	_, err := ResolveFilename("INVOICES.TXT", time.Now())
	require.Error(t, err)
}

func TestResolveFilenameMalformed(t *testing.T) {
	now := time.Now()
	for _, pattern := range []string{
		"INV_{}.TXT",        // empty specifier
		"INV_{qqq}.TXT",     // unknown tokens
		"INV_{yyyyMMdd.TXT", // unterminated
		"{yyyy}_{MMdd}.TXT", // more than one placeholder
		"INV_{yyyy2}.TXT",   // literal digits would corrupt the layout
	} {
		_, err := ResolveFilename(pattern, now)
		require.Error(t, err, "pattern %q", pattern)
	}
}
