package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTranslateNumberFormat tests accepted number formats.
func TestTranslateNumberFormat(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"0.00", "0.00"},
		{"#.##", "#.##"},
		{"$ 0.0", "$ 0.0"},
		{"(0)", "(0)"},
		{`0 "kg"`, `0 \k\g`},
		{`\#0`, `\#0`},
		{`"n/a"`, `\n\/\a`},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := translateNumberFormat(tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestTranslateNumberFormat_Rejected tests the reasons formats fail.
func TestTranslateNumberFormat_Rejected(t *testing.T) {
	tests := []struct {
		format string
		reason string
	}{
		{"[$-de-DE]0", "locale and color tags are not supported"},
		{"#,##0", "thousands separators are not supported"},
		{"0;-0", "conditional sections are not supported"},
		{"0.0.0", "more than one decimal point"},
		{"hh:mm", `date and time placeholder 'h' is not supported`},
		{"0/0", "date and time separators are not supported"},
		{`0 "open`, "unterminated quoted literal"},
		{`0\`, "trailing escape"},
		{"0*", `character '*' is not supported`},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			_, err := translateNumberFormat(tt.format)
			require.Error(t, err)

			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.format, fe.Format)
			assert.Equal(t, tt.reason, fe.Reason)
		})
	}
}
