package normalizer

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/navid-fn/pelletradar/internal/models"
)

// qualityTiers are marketing and grade tokens that do not change product
// identity when they lead or trail a name.
var qualityTiers = map[string]bool{
	"premium":    true,
	"premiums":   true,
	"premium+":   true,
	"standard":   true,
	"standarta":  true,
	"economy":    true,
	"ekonomiska": true,
	"quality":    true,
	"kvalitate":  true,
	"kvalitates": true,
	"grade":      true,
	"class":      true,
	"klase":      true,
	"klases":     true,
	"enplus":     true,
	"dinplus":    true,
	"a1":         true,
	"a1+":        true,
	"a2":         true,
	"b":          true,
}

var (
	certificationPhrase = regexp.MustCompile(`\b(en|din)[\s-]*plus\b`)
	decimalComma        = regexp.MustCompile(`(\d),(\d)`)
	separatorPattern    = regexp.MustCompile(`[-_/\\|,;:+()\[\]{}]+`)
	nonAlnumPattern     = regexp.MustCompile(`[^\p{L}\p{N}\s.]+`)
	strayDotPattern     = regexp.MustCompile(`(^|\D)\.+|\.+(\D|$)`)
)

// NormalizeName builds the canonical identity key of a product from its
// display name and specifications:
//
//  1. lower-case, fold diacritics, trim and collapse whitespace
//  2. drop quality-tier tokens ("premium", "A1", "ENplus", ...) at the start
//     and end of the name; tier words in the middle are kept
//  3. turn separator punctuation into spaces
//  4. drop remaining non-alphanumerics (decimal points between digits survive)
//  5. append the weight token unless unknown, and the packaging token unless
//     unknown or "bags"
//  6. join with "_"
//
// Keys longer than models.MaxNormalizedNameLength runes are cut and end in a
// sha1 of the full key.
//
// Example: ("6 mm kokskaidu granulas 15KG MAISOS", {Weight: "15kg", Packaging: "bags"})
// -> "6_mm_kokskaidu_granulas_15kg_maisos_15kg"
func NormalizeName(name string, specs models.Specifications) string {
	s := strings.Join(strings.Fields(foldText(name)), " ")
	s = certificationPhrase.ReplaceAllString(s, "${1}plus")
	s = strings.Join(trimQualityTiers(strings.Fields(s)), " ")

	s = decimalComma.ReplaceAllString(s, "$1.$2")
	s = separatorPattern.ReplaceAllString(s, " ")
	s = nonAlnumPattern.ReplaceAllString(s, "")
	s = removeStrayDots(s)

	tokens := strings.Fields(s)
	if w := specs.Weight; w != "" && w != models.Unknown {
		tokens = append(tokens, w)
	}
	if p := specs.Packaging; p != "" && p != models.Unknown && p != PackagingBags {
		tokens = append(tokens, p)
	}
	return capKey(strings.Join(tokens, "_"))
}

func isQualityTier(token string) bool {
	return qualityTiers[strings.Trim(token, ".,;:()[]")]
}

// trimQualityTiers drops leading and trailing runs of tier tokens.
func trimQualityTiers(tokens []string) []string {
	start, end := 0, len(tokens)
	for start < end && isQualityTier(tokens[start]) {
		start++
	}
	for end > start && isQualityTier(tokens[end-1]) {
		end--
	}
	return tokens[start:end]
}

func capKey(key string) string {
	if utf8.RuneCountInString(key) <= models.MaxNormalizedNameLength {
		return key
	}
	sum := sha1.Sum([]byte(key))
	suffix := hex.EncodeToString(sum[:])
	runes := []rune(key)[:models.MaxNormalizedNameLength-len(suffix)-1]
	return strings.TrimRight(string(runes), "_") + "_" + suffix
}

// removeStrayDots drops every '.' that is not between two digits.
func removeStrayDots(s string) string {
	for strayDotPattern.MatchString(s) {
		s = strayDotPattern.ReplaceAllString(s, "$1$2")
	}
	return s
}
