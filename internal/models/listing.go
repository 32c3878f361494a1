package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RawListing is a scraped product listing as it arrives from a scraper.
// Price and InStock keep whatever JSON scalar the scraper produced
// (number, string or bool) until cleaning coerces them.
type RawListing struct {
	Retailer       string         `json:"retailer,omitempty"`
	Brand          string         `json:"brand"`
	ProductName    string         `json:"product_name"`
	Price          any            `json:"price"`
	Currency       string         `json:"currency,omitempty"`
	InStock        any            `json:"in_stock,omitempty"`
	URL            string         `json:"url,omitempty"`
	Description    string         `json:"description,omitempty"`
	Specifications map[string]any `json:"specifications,omitempty"`
	Quantity       int            `json:"quantity,omitempty"`
	Unit           string         `json:"unit,omitempty"`
	ObservedAt     *time.Time     `json:"observed_at,omitempty"`
}

// CleanedListing is a RawListing after every field normalizer has run.
type CleanedListing struct {
	Retailer    string
	Brand       string
	ProductName string

	// Price is zero when the raw value could not be coerced.
	Price decimal.Decimal

	Currency         string
	CurrencyInferred bool
	InStock          bool

	URL            string
	Description    string
	Specifications Specifications
	Quantity       int
	Unit           string

	// ObservedAt is zero when the scraper did not supply a timestamp.
	ObservedAt time.Time

	// Fallbacks lists every default or sentinel the normalizers applied.
	Fallbacks []string
}

// DecodeListings decodes one JSON listing or a JSON array of listings.
func DecodeListings(data []byte) ([]RawListing, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty listing payload")
	}

	var listings []RawListing
	if data[0] == '[' {
		if err := json.Unmarshal(data, &listings); err != nil {
			return nil, fmt.Errorf("decode listing batch: %w", err)
		}
	} else {
		var single RawListing
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		listings = []RawListing{single}
	}

	if len(listings) == 0 {
		return nil, errors.New("no listings in payload")
	}
	return listings, nil
}
