package compiler

import (
	"fmt"
	"strings"
)

// Default number formats used when Text has no format argument.
const (
	decimalDefaultFormat = "0.##########"
	floatDefaultFormat   = "G15"
)

// literalPunctuation passes through a number format unchanged.
const literalPunctuation = " -+()$€£¥%"

// FormatError explains why a number format was rejected.
type FormatError struct {
	Format string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format %q: %s", e.Format, e.Reason)
}

// translateNumberFormat converts a formula number format into a FORMAT()
// pattern.
//
// Only digit placeholders, a single decimal point, quoted literals,
// backslash escapes and simple punctuation are accepted. Quoted literals
// are re-emitted one escaped character at a time, because FORMAT mishandles
// some quoted segments.
func translateNumberFormat(format string) (string, error) {
	fail := func(reason string, args ...any) (string, error) {
		return "", &FormatError{Format: format, Reason: fmt.Sprintf(reason, args...)}
	}

	var (
		b      strings.Builder
		runes  = []rune(format)
		points int
	)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '0' || r == '#':
			b.WriteRune(r)
		case r == '.':
			points++
			if points > 1 {
				return fail("more than one decimal point")
			}
			b.WriteRune(r)
		case r == '"':
			end := i + 1
			for end < len(runes) && runes[end] != '"' {
				end++
			}
			if end == len(runes) {
				return fail("unterminated quoted literal")
			}
			for _, q := range runes[i+1 : end] {
				b.WriteRune('\\')
				b.WriteRune(q)
			}
			i = end
		case r == '\\':
			if i+1 == len(runes) {
				return fail("trailing escape")
			}
			i++
			b.WriteRune('\\')
			b.WriteRune(runes[i])
		case r == '[':
			return fail("locale and color tags are not supported")
		case r == ',':
			return fail("thousands separators are not supported")
		case r == ';':
			return fail("conditional sections are not supported")
		case r == '/' || r == ':':
			return fail("date and time separators are not supported")
		case strings.ContainsRune(literalPunctuation, r):
			b.WriteRune(r)
		case isLetter(r):
			return fail("date and time placeholder %q is not supported", r)
		default:
			return fail("character %q is not supported", r)
		}
	}
	return b.String(), nil
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
