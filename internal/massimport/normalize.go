package massimport

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// strippedPunctuation is removed entirely during normalization. Hyphens and
// apostrophes inside names are kept so "Jean-Paul" and "O'Brien" survive.
const strippedPunctuation = ".,;:!?\"()[]{}#/\\|@*«»“”„"

// NormalizeText canonicalizes a string for comparison: lowercase, diacritics
// stripped via NFKD decomposition, punctuation removed, internal whitespace
// collapsed to single spaces. Total over arbitrary input; blank input yields "".
func NormalizeText(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}

	stripper := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripper, trimmed)
	if err != nil {
		folded = trimmed
	}

	var b strings.Builder
	b.Grow(len(folded))
	lastSpace := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsControl(r):
			continue
		case strings.ContainsRune(strippedPunctuation, r):
			continue
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// SplitArtists splits a compound artist credit ("A & B", "A, B and C") into
// individual names. Empty tokens are discarded after trimming.
func SplitArtists(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	parts := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ',' || r == '&' || r == ';'
	})

	var names []string
	for _, part := range parts {
		for _, name := range splitOnWordAnd(part) {
			name = strings.TrimSpace(name)
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// NormalizeArtists cleans an already-split artist list, re-splitting any
// entry that is itself a compound credit.
func NormalizeArtists(names []string) []string {
	var out []string
	for _, name := range names {
		out = append(out, SplitArtists(name)...)
	}
	return out
}

// splitOnWordAnd breaks on the standalone word "and" so names like
// "Alexander" are left intact.
func splitOnWordAnd(s string) []string {
	fields := strings.Fields(s)
	var parts []string
	var current []string
	for _, f := range fields {
		if strings.EqualFold(f, "and") {
			if len(current) > 0 {
				parts = append(parts, strings.Join(current, " "))
				current = nil
			}
			continue
		}
		current = append(current, f)
	}
	if len(current) > 0 {
		parts = append(parts, strings.Join(current, " "))
	}
	return parts
}
