// Package resolver maps cleaned listings to canonical product identities.
//
// Resolution order:
//  1. exact match on the normalized name
//  2. fuzzy match against products of the same brand
//  3. create a new product
//
// Matched products have their specifications enriched (fill-if-absent).
// A unique-key conflict on create means a concurrent writer won the race;
// the lookup is retried exactly once.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/navid-fn/pelletradar/internal/models"
	"github.com/navid-fn/pelletradar/internal/normalizer"
	"github.com/navid-fn/pelletradar/internal/similarity"
)

// DefaultSimilarityThreshold is the score a fuzzy candidate must exceed.
const DefaultSimilarityThreshold = 0.85

var (
	// ErrPreconditionViolation marks a listing that should never have reached
	// the resolver (missing name or brand). It is fatal, unlike validation errors.
	ErrPreconditionViolation = errors.New("resolver precondition violated")

	// ErrResolutionConflict is returned when create conflicts and the retried
	// lookup still finds no product.
	ErrResolutionConflict = errors.New("product identity conflict could not be resolved")
)

// MatchKind tells how a listing was resolved.
type MatchKind string

const (
	MatchExact   MatchKind = "exact"
	MatchFuzzy   MatchKind = "fuzzy"
	MatchCreated MatchKind = "created"
)

// CatalogStore is the product storage the resolver depends on.
// Implementations must be safe for concurrent use.
type CatalogStore interface {
	// FindProductByNormalizedName returns models.ErrNotFound when no product owns the key.
	FindProductByNormalizedName(ctx context.Context, normalizedName string) (*models.Product, error)

	// ListProductsByBrand matches brand case-insensitively.
	ListProductsByBrand(ctx context.Context, brand string) ([]models.Product, error)

	// CreateProduct returns models.ErrDuplicate when the normalized name is taken.
	CreateProduct(ctx context.Context, product *models.Product) error

	// EnrichProduct fills absent specification fields atomically and returns the stored product.
	EnrichProduct(ctx context.Context, id uint, specs models.Specifications) (*models.Product, error)
}

// Config holds resolver settings.
type Config struct {
	// SimilarityThreshold is the score a same-brand candidate must exceed. Default 0.85.
	SimilarityThreshold float64

	// DefaultCategory is assigned to new products. Default "wood_pellets".
	DefaultCategory string
}

// Resolution is the outcome of resolving one listing.
type Resolution struct {
	Product        *models.Product
	Created        bool
	Match          MatchKind
	Score          float64
	NormalizedName string
}

// Resolver resolves listings against a CatalogStore.
type Resolver struct {
	store  CatalogStore
	logger *slog.Logger
	cfg    Config
	locks  *keyedMutex
}

// NewResolver creates a Resolver. Zero config values take their defaults.
func NewResolver(store CatalogStore, logger *slog.Logger, cfg Config) *Resolver {
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = models.DefaultCategory
	}
	return &Resolver{
		store:  store,
		logger: logger,
		cfg:    cfg,
		locks:  newKeyedMutex(),
	}
}

// Resolve finds or creates the product identity of a cleaned listing.
// Resolutions of the same brand are serialized within this process; across
// processes the storage unique key on normalized_name decides.
func (r *Resolver) Resolve(ctx context.Context, listing models.CleanedListing) (Resolution, error) {
	name := strings.TrimSpace(listing.ProductName)
	brand := strings.TrimSpace(listing.Brand)
	if name == "" || brand == "" {
		return Resolution{}, fmt.Errorf("%w: product name and brand are required (name=%q brand=%q)",
			ErrPreconditionViolation, name, brand)
	}

	key := normalizer.NormalizeName(name, listing.Specifications)
	if key == "" {
		return Resolution{}, fmt.Errorf("%w: name %q normalizes to an empty identity", ErrPreconditionViolation, name)
	}

	unlock, err := r.locks.Lock(ctx, strings.ToLower(brand))
	if err != nil {
		return Resolution{}, fmt.Errorf("wait for brand %q: %w", brand, err)
	}
	defer unlock()

	res, found, err := r.match(ctx, key, brand, listing.Specifications)
	if err != nil {
		return Resolution{}, err
	}
	if found {
		return res, nil
	}

	product := &models.Product{
		Name:           name,
		Brand:          brand,
		Category:       r.cfg.DefaultCategory,
		Specifications: listing.Specifications,
		NormalizedName: key,
	}
	err = r.store.CreateProduct(ctx, product)
	if err == nil {
		r.logger.Info("Created product", "product_id", product.ID, "normalized_name", key, "brand", brand)
		return Resolution{Product: product, Created: true, Match: MatchCreated, Score: 1, NormalizedName: key}, nil
	}
	if !errors.Is(err, models.ErrDuplicate) {
		return Resolution{}, fmt.Errorf("create product %q: %w", key, err)
	}

	r.logger.Warn("Product create conflicted, retrying lookup", "normalized_name", key)
	res, found, err = r.match(ctx, key, brand, listing.Specifications)
	if err != nil {
		return Resolution{}, err
	}
	if !found {
		return Resolution{}, fmt.Errorf("%w: %q", ErrResolutionConflict, key)
	}
	return res, nil
}

// match runs the exact and fuzzy lookups. found is false when neither matched.
func (r *Resolver) match(ctx context.Context, key, brand string, specs models.Specifications) (Resolution, bool, error) {
	product, err := r.store.FindProductByNormalizedName(ctx, key)
	switch {
	case err == nil:
		enriched, err := r.enrich(ctx, product, specs)
		if err != nil {
			return Resolution{}, false, err
		}
		return Resolution{Product: enriched, Match: MatchExact, Score: 1, NormalizedName: key}, true, nil
	case !errors.Is(err, models.ErrNotFound):
		return Resolution{}, false, fmt.Errorf("find product %q: %w", key, err)
	}

	candidates, err := r.store.ListProductsByBrand(ctx, brand)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("list products of brand %q: %w", brand, err)
	}

	best, ok := similarity.Best(key, candidates, func(p models.Product) string { return p.NormalizedName })
	if !ok || best.Score <= r.cfg.SimilarityThreshold {
		return Resolution{}, false, nil
	}

	r.logger.Debug("Fuzzy matched product",
		"normalized_name", key,
		"matched", best.Item.NormalizedName,
		"score", best.Score,
	)
	enriched, err := r.enrich(ctx, &best.Item, specs)
	if err != nil {
		return Resolution{}, false, err
	}
	return Resolution{Product: enriched, Match: MatchFuzzy, Score: best.Score, NormalizedName: key}, true, nil
}

func (r *Resolver) enrich(ctx context.Context, product *models.Product, specs models.Specifications) (*models.Product, error) {
	if _, changed := product.Specifications.FillMissing(specs); !changed {
		return product, nil
	}
	enriched, err := r.store.EnrichProduct(ctx, product.ID, specs)
	if err != nil {
		return nil, fmt.Errorf("enrich product %d: %w", product.ID, err)
	}
	return enriched, nil
}
