package models

import "errors"

// Storage errors shared by every store implementation.
var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert violates a unique key
	// (products.normalized_name, retailers.name, price_observations.source_key).
	ErrDuplicate = errors.New("duplicate record")
)
