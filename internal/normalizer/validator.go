package normalizer

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/navid-fn/pelletradar/internal/models"
)

// ErrInvalidListing is wrapped by ValidationResult.Err for rejected listings.
var ErrInvalidListing = errors.New("invalid listing")

// ValidationResult reports whether a raw listing may enter the pipeline.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Err returns nil for a valid listing, otherwise an error wrapping ErrInvalidListing.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidListing, strings.Join(r.Errors, "; "))
}

// ValidateScrapedData checks a raw listing before it is cleaned. It collects
// every problem instead of stopping at the first.
//
// An empty currency is accepted (EUR is inferred during cleaning); an
// unrecognized one is not. An absent in_stock is accepted.
func ValidateScrapedData(listing models.RawListing) ValidationResult {
	var errs []string

	if name := strings.TrimSpace(listing.ProductName); name == "" {
		errs = append(errs, "product_name is required")
	} else if n := utf8.RuneCountInString(name); n > models.MaxNameLength {
		errs = append(errs, fmt.Sprintf("product_name is %d characters, limit %d", n, models.MaxNameLength))
	} else if NormalizeName(name, models.Specifications{}) == "" {
		errs = append(errs, fmt.Sprintf("product_name %q has no identifying words", name))
	}
	if strings.TrimSpace(listing.Brand) == "" {
		errs = append(errs, "brand is required")
	}

	if listing.Price == nil {
		errs = append(errs, "price is required")
	} else if price, ok := CoercePrice(listing.Price); !ok {
		errs = append(errs, fmt.Sprintf("price %v is not a number", listing.Price))
	} else if !price.IsPositive() {
		errs = append(errs, fmt.Sprintf("price must be positive, got %s", price.String()))
	}

	if currency := strings.TrimSpace(listing.Currency); currency != "" {
		if _, ok := recognizeCurrency(currency); !ok {
			errs = append(errs, fmt.Sprintf("currency %q is not supported (supported: %s)",
				currency, strings.Join(SupportedCurrencies, ", ")))
		}
	}

	if !isBooleanLike(listing.InStock) {
		errs = append(errs, fmt.Sprintf("in_stock %v is not a boolean", listing.InStock))
	}

	if raw := strings.TrimSpace(listing.URL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("url %q must be an absolute http or https URL", raw))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
