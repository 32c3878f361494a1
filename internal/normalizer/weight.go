package normalizer

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/navid-fn/pelletradar/internal/models"
)

var (
	// nameWeightPattern finds "<number> kg|kilogram|ton" anywhere in a product name.
	nameWeightPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(kilograms?|kilogramm|kilos?|kgs?|tonnes?|tons?)\b`)

	// leadingWeightPattern reads the leading number and optional unit of a weight value.
	leadingWeightPattern = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)\s*([\p{L}]*)`)
)

// weightUnitFactors converts a unit to kilograms. The empty unit means kilograms.
var weightUnitFactors = map[string]float64{
	"":          1,
	"kg":        1,
	"kgs":       1,
	"kilo":      1,
	"kilos":     1,
	"kilogram":  1,
	"kilograms": 1,
	"kilogramm": 1,
	"g":         0.001,
	"gr":        0.001,
	"gram":      0.001,
	"grams":     0.001,
	"t":         1000,
	"ton":       1000,
	"tons":      1000,
	"tonne":     1000,
	"tonnes":    1000,
}

// NormalizeWeight parses a raw weight value such as "15 kg", "1.5t" or "20"
// into "<n>kg". Unit-less numbers are kilograms. Anything unparsable,
// non-positive or in an unknown unit becomes "unknown".
func NormalizeWeight(raw string) string {
	m := leadingWeightPattern.FindStringSubmatch(raw)
	if m == nil {
		return models.Unknown
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || value <= 0 || math.IsInf(value, 0) {
		return models.Unknown
	}

	factor, ok := weightUnitFactors[strings.ToLower(m[2])]
	if !ok {
		return models.Unknown
	}

	return formatKilograms(value * factor)
}

// ExtractWeight determines the package weight of a listing.
// Priority: specs.Weight when it parses, then a "<n> kg|kilogram|ton" mention
// in the name, else "unknown". Tons are converted to kilograms.
// Example: ("6 mm kokskaidu granulas 15KG MAISOS", {}) -> "15kg"
func ExtractWeight(name string, specs models.Specifications) string {
	if specs.Weight != "" && specs.Weight != models.Unknown {
		if w := NormalizeWeight(specs.Weight); w != models.Unknown {
			return w
		}
	}

	m := nameWeightPattern.FindStringSubmatch(name)
	if m == nil {
		return models.Unknown
	}
	return NormalizeWeight(m[1] + " " + m[2])
}

func formatKilograms(kg float64) string {
	rounded := math.Round(kg*1000) / 1000
	if rounded <= 0 {
		return models.Unknown
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64) + "kg"
}
