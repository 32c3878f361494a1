package normalizer

import (
	"encoding/json"
	"math"
	"net/url"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/navid-fn/pelletradar/internal/models"
)

// Fallback markers recorded on a CleanedListing when a default or sentinel was applied.
const (
	FallbackCurrencyDefaulted = "currency_defaulted"
	FallbackPriceInvalid      = "price_invalid"
	FallbackInStockDefaulted  = "in_stock_defaulted"
	FallbackWeightUnknown     = "weight_unknown"
	FallbackPackagingUnknown  = "packaging_unknown"
	FallbackRetailerFromURL   = "retailer_from_url"
	FallbackRetailerFromBrand = "retailer_from_brand"
)

// CleanScrapedData is the single entry point from a raw scraped listing to a
// CleanedListing. It trims strings, coerces price and stock flags, resolves
// the currency and builds the specifications. Every fallback it applies is
// listed in CleanedListing.Fallbacks.
func CleanScrapedData(raw models.RawListing) models.CleanedListing {
	cleaned := models.CleanedListing{
		Retailer:    strings.TrimSpace(raw.Retailer),
		Brand:       strings.TrimSpace(raw.Brand),
		ProductName: strings.Join(strings.Fields(raw.ProductName), " "),
		URL:         strings.TrimSpace(raw.URL),
		Description: strings.TrimSpace(raw.Description),
		Quantity:    max(raw.Quantity, 0),
		Unit:        strings.TrimSpace(raw.Unit),
	}
	if raw.ObservedAt != nil {
		cleaned.ObservedAt = raw.ObservedAt.UTC()
	}

	price, ok := CoercePrice(raw.Price)
	if !ok {
		price = decimal.Zero
		cleaned.Fallbacks = append(cleaned.Fallbacks, FallbackPriceInvalid)
	}
	cleaned.Price = price

	cleaned.Currency, cleaned.CurrencyInferred = ResolveCurrency(raw.Currency)
	if cleaned.CurrencyInferred {
		cleaned.Fallbacks = append(cleaned.Fallbacks, FallbackCurrencyDefaulted)
	}

	inStock, known := CoerceInStock(raw.InStock)
	if !known {
		cleaned.Fallbacks = append(cleaned.Fallbacks, FallbackInStockDefaulted)
	}
	cleaned.InStock = inStock

	trimmed := raw
	trimmed.ProductName = cleaned.ProductName
	trimmed.Description = cleaned.Description
	cleaned.Specifications = ExtractSpecifications(trimmed)
	if cleaned.Specifications.Weight == models.Unknown {
		cleaned.Fallbacks = append(cleaned.Fallbacks, FallbackWeightUnknown)
	}
	if cleaned.Specifications.Packaging == models.Unknown {
		cleaned.Fallbacks = append(cleaned.Fallbacks, FallbackPackagingUnknown)
	}

	if cleaned.Retailer == "" {
		if host := retailerFromURL(cleaned.URL); host != "" {
			cleaned.Retailer = host
			cleaned.Fallbacks = append(cleaned.Fallbacks, FallbackRetailerFromURL)
		} else {
			cleaned.Retailer = cleaned.Brand
			cleaned.Fallbacks = append(cleaned.Fallbacks, FallbackRetailerFromBrand)
		}
	}

	return cleaned
}

// CoercePrice converts a scraped price (JSON number or text such as
// "235,00 €" or "1 234.50") to a decimal. ok is false when no number
// could be read. The sign is preserved; positivity is a validation concern.
func CoercePrice(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, false
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		return CoercePrice(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		return parsePriceText(v.String())
	case decimal.Decimal:
		return v, true
	case string:
		return parsePriceText(v)
	default:
		return decimal.Zero, false
	}
}

// parsePriceText reads a price written with either decimal convention.
// The right-most separator is the decimal point when both '.' and ',' appear;
// a lone ',' followed by three digits is a thousands separator.
func parsePriceText(text string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range text {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '\'':
			// thousands grouping
		case unicode.IsLetter(r), unicode.Is(unicode.Sc, r):
			// currency symbols and codes
		default:
			return decimal.Zero, false
		}
	}

	s := b.String()
	if s == "" || strings.Count(s, "-") > 1 || strings.LastIndex(s, "-") > 0 {
		return decimal.Zero, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		digitsAfter := len(s) - lastComma - 1
		if strings.Count(s, ",") > 1 || digitsAfter == 3 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

var inStockTokens = map[string]bool{
	"true":         true,
	"yes":          true,
	"y":            true,
	"1":            true,
	"in stock":     true,
	"available":    true,
	"false":        false,
	"no":           false,
	"n":            false,
	"0":            false,
	"out of stock": false,
	"unavailable":  false,
}

// CoerceInStock converts a scraped stock flag to a boolean.
// known is false when the value was absent or not a recognizable flag,
// in which case the listing is treated as out of stock.
func CoerceInStock(value any) (inStock bool, known bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case float64:
		if v == 1 {
			return true, true
		}
		if v == 0 {
			return false, true
		}
	case int:
		if v == 1 || v == 0 {
			return v == 1, true
		}
	case string:
		if b, ok := inStockTokens[strings.ToLower(strings.TrimSpace(v))]; ok {
			return b, true
		}
	}
	return false, false
}

// isBooleanLike reports whether value is absent or coercible by CoerceInStock.
func isBooleanLike(value any) bool {
	if value == nil {
		return true
	}
	_, known := CoerceInStock(value)
	return known
}

func retailerFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
