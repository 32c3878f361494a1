package repository

import (
	"context"

	"github.com/navid-fn/pelletradar/internal/models"
)

// CatalogRepository is the read side of the catalog, retailers and ledger.
// storage.MemoryStore satisfies it directly.
type CatalogRepository interface {
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	ListProducts(ctx context.Context, brand string, limit, offset int) ([]models.Product, error)
	ListRetailers(ctx context.Context) ([]models.Retailer, error)
	PriceHistory(ctx context.Context, productID uint, limit int) ([]models.PriceObservation, error)
	LatestPerRetailer(ctx context.Context, productID uint) ([]models.PriceObservation, error)
}

type productReader interface {
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	ListProducts(ctx context.Context, brand string, limit, offset int) ([]models.Product, error)
}

type retailerReader interface {
	ListRetailers(ctx context.Context) ([]models.Retailer, error)
}

type priceReader interface {
	PriceHistory(ctx context.Context, productID uint, limit int) ([]models.PriceObservation, error)
	LatestPerRetailer(ctx context.Context, productID uint) ([]models.PriceObservation, error)
}

type compositeCatalogRepository struct {
	productReader
	retailerReader
	priceReader
}

// NewCatalogRepository combines separate stores, e.g. MySQL for the catalog
// and ClickHouse for the ledger.
func NewCatalogRepository(products productReader, retailers retailerReader, prices priceReader) CatalogRepository {
	return &compositeCatalogRepository{
		productReader:  products,
		retailerReader: retailers,
		priceReader:    prices,
	}
}
