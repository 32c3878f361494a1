package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/navid-fn/pelletradar/internal/models"
)

// Wood types.
const (
	TypeSoftwood = "softwood"
	TypeHardwood = "hardwood"
	TypeMixed    = "mixed"
)

var (
	diameterPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*mm\b`)
	bareNumber      = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)\s*(mm)?\s*$`)
)

// specKeyAliases maps structured-spec keys (lower-cased) to Specifications fields.
var specKeyAliases = map[string]string{
	"weight":        "weight",
	"net_weight":    "weight",
	"svars":         "weight",
	"packaging":     "packaging",
	"package":       "packaging",
	"iepakojums":    "packaging",
	"diameter":      "diameter",
	"diametrs":      "diameter",
	"type":          "type",
	"wood_type":     "type",
	"tips":          "type",
	"material":      "material",
	"raw_material":  "material",
	"grade":         "grade",
	"class":         "grade",
	"certificate":   "grade",
	"certification": "grade",
}

var softwoodKeywords = []string{"softwood", "skuju", "skujkoku", "spruce", "pine", "egle", "egles", "priede", "priedes", "fichte", "kiefer", "nadelholz", "conifer"}
var hardwoodKeywords = []string{"hardwood", "lapu koku", "lapukoku", "birch", "berzs", "berza", "oak", "ozols", "beech", "buche", "laubholz"}

// ExtractSpecifications builds the structured attributes of a listing.
// Structured specs seed the record; diameter, type and grade are backfilled
// from the description and then the name; weight and packaging come from
// ExtractWeight and ExtractPackaging. Present fields are never overwritten.
func ExtractSpecifications(listing models.RawListing) models.Specifications {
	specs := seedSpecifications(listing.Specifications)
	texts := []string{listing.Description, listing.ProductName}

	if specs.Diameter != "" {
		specs.Diameter = normalizeDiameter(specs.Diameter)
	}
	for _, text := range texts {
		if specs.Diameter != "" {
			break
		}
		if m := diameterPattern.FindStringSubmatch(text); m != nil {
			specs.Diameter = normalizeDiameter(m[1])
		}
	}

	for _, text := range texts {
		if specs.Type != "" {
			break
		}
		specs.Type = detectWoodType(text)
	}

	for _, text := range texts {
		if specs.Grade != "" {
			break
		}
		specs.Grade = detectGrade(text)
	}

	specs.Weight = ExtractWeight(listing.ProductName, specs)

	if specs.Packaging != "" {
		specs.Packaging = ExtractPackaging(specs.Packaging)
	}
	if specs.Packaging == "" || specs.Packaging == models.Unknown {
		specs.Packaging = ExtractPackaging(listing.ProductName)
	}
	if specs.Packaging == models.Unknown {
		if p := ExtractPackaging(listing.Description); p != models.Unknown {
			specs.Packaging = p
		}
	}

	return specs
}

func seedSpecifications(raw map[string]any) models.Specifications {
	var specs models.Specifications
	for key, value := range raw {
		field, ok := specKeyAliases[strings.ToLower(strings.TrimSpace(key))]
		if !ok || value == nil {
			continue
		}
		text := strings.TrimSpace(stringify(value))
		if text == "" {
			continue
		}
		switch field {
		case "weight":
			specs.Weight = text
		case "packaging":
			specs.Packaging = text
		case "diameter":
			specs.Diameter = text
		case "type":
			specs.Type = strings.ToLower(text)
		case "material":
			specs.Material = text
		case "grade":
			specs.Grade = text
		}
	}
	return specs
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// normalizeDiameter turns "6", "6 mm" or "6,5mm" into "6mm" / "6.5mm".
// Values that are not a bare millimetre number are kept as given.
func normalizeDiameter(raw string) string {
	m := bareNumber.FindStringSubmatch(raw)
	if m == nil {
		return strings.TrimSpace(raw)
	}
	return strings.ReplaceAll(m[1], ",", ".") + "mm"
}

func detectWoodType(text string) string {
	joined := joinTokens(wordTokens(foldText(text)))
	soft := matchesAny(joined, softwoodKeywords)
	hard := matchesAny(joined, hardwoodKeywords)
	switch {
	case soft && hard:
		return TypeMixed
	case soft:
		return TypeSoftwood
	case hard:
		return TypeHardwood
	}
	return ""
}

func detectGrade(text string) string {
	tokens := wordTokens(foldText(text))
	joined := joinTokens(tokens)
	enplus := containsPhrase(joined, "enplus") || containsPhrase(joined, "en plus")
	switch {
	case enplus && containsPhrase(joined, "a1"):
		return "ENplus A1"
	case enplus && containsPhrase(joined, "a2"):
		return "ENplus A2"
	case enplus:
		return "ENplus"
	case containsPhrase(joined, "dinplus") || containsPhrase(joined, "din plus"):
		return "DINplus"
	case containsPhrase(joined, "a1"):
		return "A1"
	case containsPhrase(joined, "a2"):
		return "A2"
	}
	return ""
}

func matchesAny(joined string, keywords []string) bool {
	for _, kw := range keywords {
		if containsPhrase(joined, kw) {
			return true
		}
	}
	return false
}
