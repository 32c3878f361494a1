package normalizer

import "github.com/navid-fn/pelletradar/internal/models"

// Packaging classes.
const (
	PackagingBags    = "bags"
	PackagingBigBag  = "bigbag"
	PackagingPallets = "pallets"
	PackagingBulk    = "bulk"
)

// PackagingRule classifies a listing by whole-token keywords found in its
// accent-folded, lower-cased name. Keywords may span several tokens.
type PackagingRule struct {
	Packaging string
	Keywords  []string
}

// DefaultPackagingRules is evaluated in order and the first match wins.
// Big bags come before bags because "big bag" contains "bag"; bags come before bulk.
var DefaultPackagingRules = []PackagingRule{
	{
		Packaging: PackagingBigBag,
		Keywords:  []string{"big bag", "big bags", "bigbag", "bigbags", "jumbo bag", "fibc", "lielmaiss", "lielmaisa", "lielmaisos"},
	},
	{
		Packaging: PackagingPallets,
		Keywords:  []string{"pallet", "pallets", "palete", "paletes", "paleti", "paletei", "palette", "paletten"},
	},
	{
		Packaging: PackagingBags,
		Keywords:  []string{"bag", "bags", "maiss", "maisi", "maisa", "maisos", "maisiem", "sack", "sacks", "sackware"},
	},
	{
		Packaging: PackagingBulk,
		Keywords:  []string{"bulk", "loose", "berams", "beramas", "berami", "berama", "lose"},
	},
}

// ExtractPackaging classifies a product name into bags, bigbag, pallets,
// bulk or unknown.
// Example: "6 mm kokskaidu granulas 15KG MAISOS" -> "bags"
func ExtractPackaging(name string) string {
	joined := joinTokens(wordTokens(foldText(name)))
	for _, rule := range DefaultPackagingRules {
		for _, kw := range rule.Keywords {
			if containsPhrase(joined, kw) {
				return rule.Packaging
			}
		}
	}
	return models.Unknown
}
