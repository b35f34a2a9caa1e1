package sync

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes the input and drops the combining marks, so that
// accented letters reduce to their ASCII base form.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName turns a client display name into a registry-safe facility
// or group short name: diacritics stripped, every run of characters outside
// [A-Za-z0-9] replaced with a single underscore. Idempotent.
func NormalizeName(name string) string {
	stripped, _, err := transform.String(stripMarks, name)
	if err != nil {
		stripped = name
	}
	var b strings.Builder
	b.Grow(len(stripped))
	inRun := false
	for _, r := range stripped {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			inRun = false
		case !inRun:
			b.WriteByte('_')
			inRun = true
		}
	}
	return b.String()
}
