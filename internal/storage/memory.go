package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/navid-fn/pelletradar/internal/models"
)

// MemoryStore keeps the catalog, retailers and price ledger in process memory.
// It enforces the same unique keys as the SQL schema and is safe for concurrent use.
// Used by tests and by dry runs of the resolve tool.
type MemoryStore struct {
	mu sync.RWMutex

	products      map[uint]*models.Product
	productByName map[string]uint
	nextProductID uint

	retailers      map[uint]*models.Retailer
	retailerByName map[string]uint
	nextRetailerID uint

	observations      []models.PriceObservation
	observationByKey  map[string]int
	nextObservationID uint64

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:         make(map[uint]*models.Product),
		productByName:    make(map[string]uint),
		retailers:        make(map[uint]*models.Retailer),
		retailerByName:   make(map[string]uint),
		observationByKey: make(map[string]int),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// FindProductByNormalizedName returns the product owning the identity key.
func (s *MemoryStore) FindProductByNormalizedName(_ context.Context, normalizedName string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.productByName[normalizedName]
	if !ok {
		return nil, models.ErrNotFound
	}
	p := *s.products[id]
	return &p, nil
}

// ListProductsByBrand returns every product of brand, compared case-insensitively, by id.
func (s *MemoryStore) ListProductsByBrand(_ context.Context, brand string) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Product
	for _, p := range s.products {
		if strings.EqualFold(p.Brand, brand) {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// CreateProduct inserts product and assigns its id. A taken normalized name
// yields models.ErrDuplicate. Values longer than the SQL columns are rejected.
func (s *MemoryStore) CreateProduct(_ context.Context, product *models.Product) error {
	if n := utf8.RuneCountInString(product.Name); n > models.MaxNameLength {
		return fmt.Errorf("product name is %d characters, limit %d", n, models.MaxNameLength)
	}
	if n := utf8.RuneCountInString(product.NormalizedName); n > models.MaxNormalizedNameLength {
		return fmt.Errorf("normalized name is %d characters, limit %d", n, models.MaxNormalizedNameLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.productByName[product.NormalizedName]; exists {
		return models.ErrDuplicate
	}

	s.nextProductID++
	now := s.now()
	product.ID = s.nextProductID
	product.CreatedAt = now
	product.UpdatedAt = now

	stored := *product
	s.products[stored.ID] = &stored
	s.productByName[stored.NormalizedName] = stored.ID
	return nil
}

// EnrichProduct fills absent specification fields of product id from specs.
func (s *MemoryStore) EnrichProduct(_ context.Context, id uint, specs models.Specifications) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if merged, changed := p.Specifications.FillMissing(specs); changed {
		p.Specifications = merged
		p.UpdatedAt = s.now()
	}
	out := *p
	return &out, nil
}

// GetProduct returns a product by id.
func (s *MemoryStore) GetProduct(_ context.Context, id uint) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *p
	return &out, nil
}

// ListProducts returns products ordered by id, optionally filtered by brand.
func (s *MemoryStore) ListProducts(_ context.Context, brand string, limit, offset int) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		if brand == "" || strings.EqualFold(p.Brand, brand) {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return paginate(result, limit, offset), nil
}

// UpsertRetailer inserts a retailer by name, or refreshes the non-empty
// metadata of the existing one.
func (s *MemoryStore) UpsertRetailer(_ context.Context, retailer models.Retailer) (*models.Retailer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(retailer.Name)
	now := s.now()
	if id, ok := s.retailerByName[key]; ok {
		existing := s.retailers[id]
		if retailer.Website != "" && retailer.Website != existing.Website {
			existing.Website = retailer.Website
			existing.UpdatedAt = now
		}
		if retailer.Location != "" && retailer.Location != existing.Location {
			existing.Location = retailer.Location
			existing.UpdatedAt = now
		}
		out := *existing
		return &out, nil
	}

	s.nextRetailerID++
	retailer.ID = s.nextRetailerID
	retailer.CreatedAt = now
	retailer.UpdatedAt = now
	stored := retailer
	s.retailers[stored.ID] = &stored
	s.retailerByName[key] = stored.ID
	return &retailer, nil
}

// ListRetailers returns every retailer ordered by name.
func (s *MemoryStore) ListRetailers(_ context.Context) ([]models.Retailer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Retailer, 0, len(s.retailers))
	for _, r := range s.retailers {
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// AppendObservation appends obs and assigns its id. A repeated SourceKey
// yields models.ErrDuplicate.
func (s *MemoryStore) AppendObservation(_ context.Context, obs *models.PriceObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.observationByKey[obs.SourceKey]; exists {
		return models.ErrDuplicate
	}

	s.nextObservationID++
	obs.ID = s.nextObservationID
	obs.CreatedAt = s.now()

	s.observations = append(s.observations, *obs)
	s.observationByKey[obs.SourceKey] = len(s.observations) - 1
	return nil
}

// ObservationBySourceKey returns the observation appended under key.
func (s *MemoryStore) ObservationBySourceKey(_ context.Context, key string) (*models.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.observationByKey[key]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := s.observations[idx]
	return &out, nil
}

// PreviousObservation returns the most recent observation of the pair with
// since <= observed_at < before.
func (s *MemoryStore) PreviousObservation(_ context.Context, productID, retailerID uint, before, since time.Time) (*models.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *models.PriceObservation
	for i := range s.observations {
		o := &s.observations[i]
		if o.ProductID != productID || o.RetailerID != retailerID {
			continue
		}
		if !o.ObservedAt.Before(before) || o.ObservedAt.Before(since) {
			continue
		}
		if best == nil || o.ObservedAt.After(best.ObservedAt) ||
			(o.ObservedAt.Equal(best.ObservedAt) && o.ID > best.ID) {
			best = o
		}
	}
	if best == nil {
		return nil, models.ErrNotFound
	}
	out := *best
	return &out, nil
}

// PriceHistory returns observations of a product, newest first.
func (s *MemoryStore) PriceHistory(_ context.Context, productID uint, limit int) ([]models.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.PriceObservation
	for _, o := range s.observations {
		if o.ProductID == productID {
			result = append(result, o)
		}
	}
	sortNewestFirst(result)
	return paginate(result, limit, 0), nil
}

// LatestPerRetailer returns the newest observation of a product at each retailer.
func (s *MemoryStore) LatestPerRetailer(_ context.Context, productID uint) ([]models.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[uint]models.PriceObservation)
	for _, o := range s.observations {
		if o.ProductID != productID {
			continue
		}
		if cur, ok := latest[o.RetailerID]; !ok || o.ObservedAt.After(cur.ObservedAt) {
			latest[o.RetailerID] = o
		}
	}

	result := make([]models.PriceObservation, 0, len(latest))
	for _, o := range latest {
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Price.LessThan(result[j].Price) })
	return result, nil
}

func sortNewestFirst(obs []models.PriceObservation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if obs[i].ObservedAt.Equal(obs[j].ObservedAt) {
			return obs[i].ID > obs[j].ID
		}
		return obs[i].ObservedAt.After(obs[j].ObservedAt)
	})
}

func paginate[T any](items []T, limit, offset int) []T {
	offset = max(offset, 0)
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
