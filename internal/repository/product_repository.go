package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/navid-fn/pelletradar/internal/models"
)

type ProductRepository interface {
	FindProductByNormalizedName(ctx context.Context, normalizedName string) (*models.Product, error)
	ListProductsByBrand(ctx context.Context, brand string) ([]models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	EnrichProduct(ctx context.Context, id uint, specs models.Specifications) (*models.Product, error)
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	ListProducts(ctx context.Context, brand string, limit, offset int) ([]models.Product, error)
}

type gormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) ProductRepository {
	return &gormProductRepository{db: db}
}

func (r *gormProductRepository) FindProductByNormalizedName(ctx context.Context, normalizedName string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Where("normalized_name = ?", normalizedName).First(&p).Error
	if err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (r *gormProductRepository) ListProductsByBrand(ctx context.Context, brand string) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("LOWER(brand) = LOWER(?)", brand).
		Order("id").
		Find(&products).Error
	return products, mapError(err)
}

// CreateProduct relies on the unique normalized_name index; a concurrent
// insert of the same identity yields models.ErrDuplicate.
func (r *gormProductRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	return mapError(r.db.WithContext(ctx).Create(product).Error)
}

// EnrichProduct locks the row so concurrent enrichments merge instead of
// overwriting each other.
func (r *gormProductRepository) EnrichProduct(ctx context.Context, id uint, specs models.Specifications) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error; err != nil {
			return err
		}
		merged, changed := p.Specifications.FillMissing(specs)
		if !changed {
			return nil
		}
		p.Specifications = merged
		return tx.Save(&p).Error
	})
	if err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (r *gormProductRepository) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (r *gormProductRepository) ListProducts(ctx context.Context, brand string, limit, offset int) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Order("id")
	if brand != "" {
		q = q.Where("LOWER(brand) = LOWER(?)", brand)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	products := []models.Product{}
	err := q.Find(&products).Error
	return products, mapError(err)
}
