package models

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceObservation is one append-only price point of a product at a retailer.
type PriceObservation struct {
	// ID is assigned by storage. ClickHouse storage derives it from SourceKey.
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`

	ProductID  uint `gorm:"column:product_id;not null;index:idx_price_pair_time,priority:1" json:"product_id"`
	RetailerID uint `gorm:"column:retailer_id;not null;index:idx_price_pair_time,priority:2" json:"retailer_id"`

	// Price is always positive.
	Price decimal.Decimal `gorm:"column:price;type:decimal(12,2);not null" json:"price"`

	// Currency is an ISO 4217 code: EUR, USD, GBP or JPY.
	Currency string `gorm:"column:currency;size:3;not null" json:"currency"`

	// CurrencyInferred is true when the listing carried no recognizable currency
	// and EUR was assumed.
	CurrencyInferred bool `gorm:"column:currency_inferred;not null;default:false" json:"currency_inferred"`

	InStock  bool   `gorm:"column:in_stock;not null" json:"in_stock"`
	Quantity int    `gorm:"column:quantity" json:"quantity,omitempty"`
	Unit     string `gorm:"column:unit;size:32" json:"unit,omitempty"`

	// SourceURL is the listing page the price was scraped from.
	SourceURL string `gorm:"column:source_url;size:1024" json:"source_url,omitempty"`

	// SourceKey identifies the scraped listing instance, so a redelivered
	// message does not append the same observation twice.
	SourceKey string `gorm:"column:source_key;size:40;not null;uniqueIndex" json:"source_key"`

	// ObservedAt is when the price was seen.
	ObservedAt time.Time `gorm:"column:observed_at;not null;index:idx_price_pair_time,priority:3" json:"observed_at"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (PriceObservation) TableName() string {
	return "price_observations"
}

// GenerateSourceKey builds the dedupe key of a scraped price point.
func GenerateSourceKey(retailer, url, productName string, price decimal.Decimal, currency string, observedAt time.Time) string {
	uniqueString := fmt.Sprintf("%s-%s-%s-%s-%s-%s",
		retailer,
		url,
		productName,
		price.StringFixed(2),
		currency,
		observedAt.UTC().Format(time.RFC3339Nano),
	)

	hash := sha1.Sum([]byte(uniqueString))
	return hex.EncodeToString(hash[:])
}

// ObservationIDFromKey derives a numeric id from a SourceKey for stores
// without auto-increment columns.
func ObservationIDFromKey(sourceKey string) uint64 {
	raw, err := hex.DecodeString(sourceKey)
	if err != nil || len(raw) < 8 {
		sum := sha1.Sum([]byte(sourceKey))
		raw = sum[:]
	}
	return binary.BigEndian.Uint64(raw[:8]) >> 1
}
