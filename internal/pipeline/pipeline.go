// Package pipeline runs scraped listings through validation, cleaning,
// identity resolution and the price ledger.
//
// Each listing is processed independently: a failure is reported in that
// listing's Result and never aborts the rest of a batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/navid-fn/pelletradar/internal/ledger"
	"github.com/navid-fn/pelletradar/internal/models"
	"github.com/navid-fn/pelletradar/internal/normalizer"
	"github.com/navid-fn/pelletradar/internal/resolver"
)

// RetailerStore upserts retailers by name.
type RetailerStore interface {
	UpsertRetailer(ctx context.Context, retailer models.Retailer) (*models.Retailer, error)
}

// ProductResolver resolves a cleaned listing to a product identity.
type ProductResolver interface {
	Resolve(ctx context.Context, listing models.CleanedListing) (resolver.Resolution, error)
}

// PriceWriter appends price observations.
type PriceWriter interface {
	Append(ctx context.Context, e ledger.Entry) (ledger.WriteResult, error)
}

// Notifier receives detected price drops.
type Notifier interface {
	NotifyPriceDrop(ctx context.Context, drop ledger.PriceDrop) error
}

// Config holds pipeline settings.
type Config struct {
	// Parallelism bounds concurrently processed listings in a batch. Default 4.
	Parallelism int

	// RateLimit caps listings per second across batches. Zero disables it.
	RateLimit float64
}

// Result is the outcome of processing one listing.
type Result struct {
	Index              int               `json:"index"`
	Valid              bool              `json:"valid"`
	Resolved           bool              `json:"resolved"`
	ProductID          uint              `json:"product_id,omitempty"`
	RetailerID         uint              `json:"retailer_id,omitempty"`
	PriceObservationID uint64            `json:"price_observation_id,omitempty"`
	Created            bool              `json:"created"`
	Match              string            `json:"match,omitempty"`
	Similarity         float64           `json:"similarity,omitempty"`
	NormalizedName     string            `json:"normalized_name,omitempty"`
	CurrencyInferred   bool              `json:"currency_inferred,omitempty"`
	Duplicate          bool              `json:"duplicate,omitempty"`
	Fallbacks          []string          `json:"fallbacks,omitempty"`
	PriceDrop          *ledger.PriceDrop `json:"price_drop,omitempty"`
	Errors             []string          `json:"errors,omitempty"`
}

// ItemError describes why one listing of a batch failed.
type ItemError struct {
	Index       int    `json:"index"`
	ProductName string `json:"product_name,omitempty"`
	Error       string `json:"error"`

	// Fatal marks precondition violations, which indicate a bug upstream
	// rather than bad input.
	Fatal bool `json:"fatal,omitempty"`
}

// BatchSummary is the outcome of ProcessBatch.
type BatchSummary struct {
	BatchID   string      `json:"batch_id"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors"`
	Results   []Result    `json:"results"`
}

// Pipeline wires the stages together. It holds no per-listing state.
type Pipeline struct {
	retailers RetailerStore
	resolver  ProductResolver
	writer    PriceWriter
	notifier  Notifier
	limiter   *rate.Limiter
	logger    *slog.Logger
	cfg       Config
}

// New creates a Pipeline. notifier may be nil.
func New(
	retailers RetailerStore,
	resolver ProductResolver,
	writer PriceWriter,
	notifier Notifier,
	logger *slog.Logger,
	cfg Config,
) *Pipeline {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(int(cfg.RateLimit), 1))
	}
	return &Pipeline{
		retailers: retailers,
		resolver:  resolver,
		writer:    writer,
		notifier:  notifier,
		limiter:   limiter,
		logger:    logger,
		cfg:       cfg,
	}
}

// Process runs one listing through every stage. Invalid listings come back
// as Result{Valid: false} with a nil error; storage failures and
// precondition violations are returned as errors.
func (p *Pipeline) Process(ctx context.Context, raw models.RawListing) (Result, error) {
	validation := normalizer.ValidateScrapedData(raw)
	if !validation.Valid {
		return Result{Valid: false, Errors: validation.Errors}, nil
	}

	listing := normalizer.CleanScrapedData(raw)
	result := Result{
		Valid:            true,
		CurrencyInferred: listing.CurrencyInferred,
		Fallbacks:        listing.Fallbacks,
	}

	retailer, err := p.retailers.UpsertRetailer(ctx, models.Retailer{
		Name:    listing.Retailer,
		Website: websiteOf(listing.URL),
	})
	if err != nil {
		return result, fmt.Errorf("upsert retailer %q: %w", listing.Retailer, err)
	}
	result.RetailerID = retailer.ID

	resolution, err := p.resolver.Resolve(ctx, listing)
	if err != nil {
		return result, err
	}
	result.ProductID = resolution.Product.ID
	result.Created = resolution.Created
	result.Match = string(resolution.Match)
	result.Similarity = resolution.Score
	result.NormalizedName = resolution.NormalizedName

	var sourceKey string
	if !listing.ObservedAt.IsZero() {
		sourceKey = models.GenerateSourceKey(retailer.Name, listing.URL, listing.ProductName,
			listing.Price, listing.Currency, listing.ObservedAt)
	}

	written, err := p.writer.Append(ctx, ledger.Entry{
		ProductID:        resolution.Product.ID,
		RetailerID:       retailer.ID,
		Price:            listing.Price,
		Currency:         listing.Currency,
		CurrencyInferred: listing.CurrencyInferred,
		InStock:          listing.InStock,
		Quantity:         listing.Quantity,
		Unit:             listing.Unit,
		SourceURL:        listing.URL,
		SourceKey:        sourceKey,
		ObservedAt:       listing.ObservedAt,
	})
	if err != nil {
		return result, err
	}

	result.Resolved = true
	result.PriceObservationID = written.Observation.ID
	result.Duplicate = written.Duplicate
	result.PriceDrop = written.Drop

	if written.Drop != nil && p.notifier != nil {
		if err := p.notifier.NotifyPriceDrop(ctx, *written.Drop); err != nil {
			p.logger.Warn("Price drop notification failed", "product_id", written.Drop.ProductID, "error", err)
		}
	}

	return result, nil
}

// ProcessBatch processes listings with bounded parallelism and always
// returns a summary. Results keep the order of raws.
func (p *Pipeline) ProcessBatch(ctx context.Context, raws []models.RawListing) BatchSummary {
	summary := BatchSummary{
		BatchID: uuid.NewString(),
		Total:   len(raws),
		Errors:  []ItemError{},
		Results: make([]Result, len(raws)),
	}
	failures := make([]error, len(raws))

	var g errgroup.Group
	g.SetLimit(p.cfg.Parallelism)
	for i := range raws {
		g.Go(func() error {
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					failures[i] = err
					return nil
				}
			}
			if err := ctx.Err(); err != nil {
				failures[i] = err
				return nil
			}
			summary.Results[i], failures[i] = p.Process(ctx, raws[i])
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range failures {
		res := &summary.Results[i]
		res.Index = i

		switch {
		case err != nil:
			fatal := errors.Is(err, resolver.ErrPreconditionViolation)
			res.Errors = append(res.Errors, err.Error())
			summary.Failed++
			summary.Errors = append(summary.Errors, ItemError{
				Index:       i,
				ProductName: raws[i].ProductName,
				Error:       err.Error(),
				Fatal:       fatal,
			})
			if fatal {
				p.logger.Error("Listing violated resolver precondition", "batch_id", summary.BatchID, "index", i, "error", err)
			} else {
				p.logger.Warn("Listing failed", "batch_id", summary.BatchID, "index", i, "error", err)
			}
		case !res.Valid:
			summary.Failed++
			summary.Errors = append(summary.Errors, ItemError{
				Index:       i,
				ProductName: raws[i].ProductName,
				Error:       strings.Join(res.Errors, "; "),
			})
		default:
			summary.Succeeded++
		}
	}

	p.logger.Info("Batch processed",
		"batch_id", summary.BatchID,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return summary
}

// websiteOf reduces a listing URL to its scheme and host.
func websiteOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + strings.ToLower(u.Host)
}
