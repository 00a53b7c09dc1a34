package roster

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxNormalisedLen bounds normalised names so they fit the indexed column.
const maxNormalisedLen = 64

// diacritics decomposes characters and drops their combining marks, so
// "José" and "Jose" normalise to the same key.
var diacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormaliseName produces the canonical comparison key for an RSN. The
// hiscores export and the RuneMetrics API disagree on spacing characters
// (no-break spaces, underscores) and casing, so both sides are folded
// through this before any lookup.
func NormaliseName(name string) string {
	folded, _, err := transform.String(diacritics, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		switch {
		case r == '_' || r == '\u00a0' || unicode.IsSpace(r):
			pendingSpace = true
		case r == '\u200b' || r == '\u200c' || r == '\u200d' || r == '\ufeff':
			// zero-width characters carry no identity
		default:
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
		}
	}

	out := b.String()
	if n := []rune(out); len(n) > maxNormalisedLen {
		out = strings.TrimSpace(string(n[:maxNormalisedLen]))
	}
	return out
}
