// Package normalizer turns raw scraped pellet listings into typed, comparable
// listings: currency codes, weights in kilograms, packaging classes, structured
// specifications and the canonical name used as the product identity key.
//
// Every function here is pure. Unparsable input never panics; it degrades to
// a documented sentinel instead.
package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents removes combining marks, so "Staļi" and "Stali" compare equal.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldText lower-cases s and strips diacritics.
func foldText(s string) string {
	folded, _, err := transform.String(stripAccents, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}

// wordTokens splits folded text into letter/digit runs.
func wordTokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsPhrase reports whether the space-joined token list contains
// keyword as a whole-token sequence.
func containsPhrase(joined, keyword string) bool {
	return strings.Contains(joined, " "+keyword+" ")
}

func joinTokens(tokens []string) string {
	return " " + strings.Join(tokens, " ") + " "
}
