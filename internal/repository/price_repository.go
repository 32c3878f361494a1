package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/navid-fn/pelletradar/internal/models"
)

type PriceRepository interface {
	AppendObservation(ctx context.Context, obs *models.PriceObservation) error
	ObservationBySourceKey(ctx context.Context, key string) (*models.PriceObservation, error)
	PreviousObservation(ctx context.Context, productID, retailerID uint, before, since time.Time) (*models.PriceObservation, error)
	PriceHistory(ctx context.Context, productID uint, limit int) ([]models.PriceObservation, error)
	LatestPerRetailer(ctx context.Context, productID uint) ([]models.PriceObservation, error)
}

type gormPriceRepository struct {
	db *gorm.DB
}

func NewGormPriceRepository(db *gorm.DB) PriceRepository {
	return &gormPriceRepository{db: db}
}

func (r *gormPriceRepository) AppendObservation(ctx context.Context, obs *models.PriceObservation) error {
	return mapError(r.db.WithContext(ctx).Create(obs).Error)
}

func (r *gormPriceRepository) ObservationBySourceKey(ctx context.Context, key string) (*models.PriceObservation, error) {
	var obs models.PriceObservation
	if err := r.db.WithContext(ctx).Where("source_key = ?", key).First(&obs).Error; err != nil {
		return nil, mapError(err)
	}
	return &obs, nil
}

func (r *gormPriceRepository) PreviousObservation(ctx context.Context, productID, retailerID uint, before, since time.Time) (*models.PriceObservation, error) {
	var obs models.PriceObservation
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND retailer_id = ?", productID, retailerID).
		Where("observed_at >= ? AND observed_at < ?", since, before).
		Order("observed_at DESC, id DESC").
		First(&obs).Error
	if err != nil {
		return nil, mapError(err)
	}
	return &obs, nil
}

func (r *gormPriceRepository) PriceHistory(ctx context.Context, productID uint, limit int) ([]models.PriceObservation, error) {
	q := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("observed_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	history := []models.PriceObservation{}
	err := q.Find(&history).Error
	return history, mapError(err)
}

const latestPerRetailerQuery = `
SELECT id, product_id, retailer_id, price, currency, currency_inferred, in_stock,
       quantity, unit, source_url, source_key, observed_at, created_at
FROM (
    SELECT p.*, ROW_NUMBER() OVER (PARTITION BY retailer_id ORDER BY observed_at DESC, id DESC) AS rn
    FROM price_observations p
    WHERE product_id = ?
) ranked
WHERE rn = 1
ORDER BY price ASC`

func (r *gormPriceRepository) LatestPerRetailer(ctx context.Context, productID uint) ([]models.PriceObservation, error) {
	latest := []models.PriceObservation{}
	err := r.db.WithContext(ctx).Raw(latestPerRetailerQuery, productID).Scan(&latest).Error
	return latest, mapError(err)
}
