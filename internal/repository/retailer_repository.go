package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/navid-fn/pelletradar/internal/models"
)

type RetailerRepository interface {
	UpsertRetailer(ctx context.Context, retailer models.Retailer) (*models.Retailer, error)
	ListRetailers(ctx context.Context) ([]models.Retailer, error)
}

type gormRetailerRepository struct {
	db *gorm.DB
}

func NewGormRetailerRepository(db *gorm.DB) RetailerRepository {
	return &gormRetailerRepository{db: db}
}

// UpsertRetailer inserts by name. On conflict only non-empty metadata is
// refreshed, so a listing without a URL never clears a known website.
func (r *gormRetailerRepository) UpsertRetailer(ctx context.Context, retailer models.Retailer) (*models.Retailer, error) {
	retailer.Name = strings.TrimSpace(retailer.Name)

	var refresh []string
	if retailer.Website != "" {
		refresh = append(refresh, "website")
	}
	if retailer.Location != "" {
		refresh = append(refresh, "location")
	}
	conflict := clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}
	if len(refresh) > 0 {
		conflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns(append(refresh, "updated_at")),
		}
	}

	db := r.db.WithContext(ctx)
	if err := db.Clauses(conflict).Create(&retailer).Error; err != nil {
		return nil, mapError(err)
	}

	var stored models.Retailer
	if err := db.Where("name = ?", retailer.Name).First(&stored).Error; err != nil {
		return nil, mapError(err)
	}
	return &stored, nil
}

func (r *gormRetailerRepository) ListRetailers(ctx context.Context) ([]models.Retailer, error) {
	retailers := []models.Retailer{}
	err := r.db.WithContext(ctx).Order("name").Find(&retailers).Error
	return retailers, mapError(err)
}
