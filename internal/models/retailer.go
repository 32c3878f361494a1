package models

import "time"

// Retailer is a seller whose listings are scraped. Upserted by Name, never deleted.
type Retailer struct {
	ID       uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name     string `gorm:"column:name;size:255;not null;uniqueIndex" json:"name"`
	Website  string `gorm:"column:website;size:512" json:"website,omitempty"`
	Location string `gorm:"column:location;size:255" json:"location,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Retailer) TableName() string {
	return "retailers"
}
