package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CleanToponym strips possessives, surrounding punctuation and whitespace
func CleanToponym(name string) string {
	name = strings.TrimSpace(name)
	for _, suffix := range []string{"'s", "’s"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return strings.Trim(strings.TrimSpace(name), ".,;:")
}

// NormalizeName produces a case- and diacritic-insensitive key for name comparison.
// Casers and transformers are stateful, so each call builds its own.
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, CleanToponym(name))
	if err != nil {
		stripped = CleanToponym(name)
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}

// SameName compares two place names by their normalized form
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
