// Package models defines the domain models used across the application.
package models

import "time"

// Unknown is the sentinel stored when a weight or packaging could not be determined.
const Unknown = "unknown"

// DefaultCategory is assigned to products when no category is configured.
const DefaultCategory = "wood_pellets"

// Column limits of the products table, in characters.
const (
	MaxNameLength           = 512
	MaxNormalizedNameLength = 255
)

// Product is a canonical product identity. Price observations from every
// retailer and scrape run that resolve to the same NormalizedName share one Product.
type Product struct {
	// ID is the storage-assigned identifier.
	ID uint `gorm:"column:id;primaryKey;autoIncrement" json:"id"`

	// Name is the display name as it was first seen.
	Name string `gorm:"column:name;size:512;not null" json:"name"`

	// Brand is the manufacturer or seller brand, trimmed.
	Brand string `gorm:"column:brand;size:255;not null;index" json:"brand"`

	// Category defaults to "wood_pellets".
	Category string `gorm:"column:category;size:64;not null" json:"category"`

	// Specifications holds the structured attributes, enriched over time.
	Specifications Specifications `gorm:"column:specifications;type:json;serializer:json" json:"specifications"`

	// NormalizedName is the canonical identity key. Unique across the catalog.
	NormalizedName string `gorm:"column:normalized_name;size:255;not null;uniqueIndex" json:"normalized_name"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// Specifications is the structured attribute record of a product.
// An empty field is absent; the "unknown" sentinel also counts as absent.
type Specifications struct {
	// Weight is the package weight in kilograms, e.g. "15kg", or "unknown".
	Weight string `json:"weight,omitempty"`

	// Packaging is one of bags, bigbag, pallets, bulk, unknown.
	Packaging string `json:"packaging,omitempty"`

	// Diameter is the pellet diameter, e.g. "6mm".
	Diameter string `json:"diameter,omitempty"`

	// Type is the wood type: softwood, hardwood or mixed.
	Type string `json:"type,omitempty"`

	// Material is a free-form raw material taken from structured specs.
	Material string `json:"material,omitempty"`

	// Grade is the quality certification, e.g. "ENplus A1".
	Grade string `json:"grade,omitempty"`
}

func isAbsent(v string) bool {
	return v == "" || v == Unknown
}

func fill(dst *string, src string) bool {
	if isAbsent(*dst) && !isAbsent(src) {
		*dst = src
		return true
	}
	if *dst == "" && src == Unknown {
		*dst = src
		return true
	}
	return false
}

// FillMissing returns s with every absent field taken from other.
// Present fields are never overwritten. The boolean reports whether anything changed.
func (s Specifications) FillMissing(other Specifications) (Specifications, bool) {
	changed := false
	changed = fill(&s.Weight, other.Weight) || changed
	changed = fill(&s.Packaging, other.Packaging) || changed
	changed = fill(&s.Diameter, other.Diameter) || changed
	changed = fill(&s.Type, other.Type) || changed
	changed = fill(&s.Material, other.Material) || changed
	changed = fill(&s.Grade, other.Grade) || changed
	return s, changed
}
