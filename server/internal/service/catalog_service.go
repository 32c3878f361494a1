package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/navid-fn/pelletradar/internal/audit"
	"github.com/navid-fn/pelletradar/internal/models"
	"github.com/navid-fn/pelletradar/internal/pipeline"
	"github.com/navid-fn/pelletradar/server/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxHistory      = 1000

	// MaxBatchSize caps the listings accepted by one ingest request.
	MaxBatchSize = 1000
)

var (
	ErrNotFound      = errors.New("not found")
	ErrBatchTooLarge = fmt.Errorf("batch exceeds %d listings", MaxBatchSize)
)

// BatchProcessor runs listings through the resolution pipeline.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, raws []models.RawListing) pipeline.BatchSummary
}

type CatalogService struct {
	repo      repository.CatalogRepository
	processor BatchProcessor
}

func NewCatalogService(repo repository.CatalogRepository, processor BatchProcessor) *CatalogService {
	return &CatalogService{
		repo:      repo,
		processor: processor,
	}
}

// ProductDetail is a product with its latest price at every retailer.
type ProductDetail struct {
	models.Product
	Prices []RetailerPrice `json:"prices"`
}

// RetailerPrice is the newest observation of a product at one retailer.
type RetailerPrice struct {
	Retailer    models.Retailer         `json:"retailer"`
	Observation models.PriceObservation `json:"observation"`
}

func (s *CatalogService) IngestListings(ctx context.Context, listings []models.RawListing) (pipeline.BatchSummary, error) {
	if len(listings) > MaxBatchSize {
		return pipeline.BatchSummary{}, ErrBatchTooLarge
	}
	return s.processor.ProcessBatch(ctx, listings), nil
}

func (s *CatalogService) ListProducts(ctx context.Context, brand string, limit, offset int) ([]models.Product, error) {
	return s.repo.ListProducts(ctx, brand, clampPage(limit), max(offset, 0))
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*ProductDetail, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	prices, err := s.RetailerPrices(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ProductDetail{Product: *product, Prices: prices}, nil
}

func (s *CatalogService) PriceHistory(ctx context.Context, productID uint, limit int) ([]models.PriceObservation, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, mapError(err)
	}
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}
	return s.repo.PriceHistory(ctx, productID, limit)
}

// RetailerPrices returns the latest price per retailer, cheapest first.
func (s *CatalogService) RetailerPrices(ctx context.Context, productID uint) ([]RetailerPrice, error) {
	latest, err := s.repo.LatestPerRetailer(ctx, productID)
	if err != nil {
		return nil, err
	}
	retailers, err := s.repo.ListRetailers(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Retailer, len(retailers))
	for _, r := range retailers {
		byID[r.ID] = r
	}

	prices := make([]RetailerPrice, 0, len(latest))
	for _, obs := range latest {
		prices = append(prices, RetailerPrice{Retailer: byID[obs.RetailerID], Observation: obs})
	}
	return prices, nil
}

func (s *CatalogService) ListRetailers(ctx context.Context) ([]models.Retailer, error) {
	return s.repo.ListRetailers(ctx)
}

// Duplicates scans the whole catalog for near-duplicate products.
func (s *CatalogService) Duplicates(ctx context.Context, threshold float64) ([]audit.DuplicatePair, error) {
	var all []models.Product
	for offset := 0; ; offset += maxPageSize {
		page, err := s.repo.ListProducts(ctx, "", maxPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < maxPageSize {
			break
		}
	}
	return audit.FindNearDuplicates(all, threshold), nil
}

func clampPage(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	return min(limit, maxPageSize)
}

func mapError(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
