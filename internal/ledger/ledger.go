// Package ledger appends price observations to the time-series price ledger
// and flags price drops against the previous observation of the same
// product at the same retailer.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/navid-fn/pelletradar/internal/models"
	"github.com/navid-fn/pelletradar/internal/normalizer"
)

// Defaults for drop detection.
const (
	DefaultLookback      = 7 * 24 * time.Hour
	DefaultDropThreshold = 0.10
)

// ErrInvalidObservation is returned for entries that must not reach storage.
var ErrInvalidObservation = errors.New("invalid price observation")

// Store is the append-only price storage the writer depends on.
// Implementations must be safe for concurrent use.
type Store interface {
	// AppendObservation assigns obs.ID. A repeated SourceKey yields models.ErrDuplicate.
	AppendObservation(ctx context.Context, obs *models.PriceObservation) error

	// ObservationBySourceKey returns models.ErrNotFound for an unknown key.
	ObservationBySourceKey(ctx context.Context, key string) (*models.PriceObservation, error)

	// PreviousObservation returns the most recent observation of the pair with
	// since <= observed_at < before, or models.ErrNotFound.
	PreviousObservation(ctx context.Context, productID, retailerID uint, before, since time.Time) (*models.PriceObservation, error)
}

// Config holds drop detection settings.
type Config struct {
	// Lookback bounds how old the previous observation may be. Default 7 days.
	Lookback time.Duration

	// DropThreshold is the fractional decrease that counts as a drop. Zero or
	// out-of-range values take the default 0.10.
	DropThreshold float64
}

// Entry is one price point to append.
type Entry struct {
	ProductID        uint
	RetailerID       uint
	Price            decimal.Decimal
	Currency         string
	CurrencyInferred bool
	InStock          bool
	Quantity         int
	Unit             string
	SourceURL        string

	// SourceKey deduplicates redelivered listings. A random key is used when empty.
	SourceKey string

	// ObservedAt defaults to now.
	ObservedAt time.Time
}

// WriteResult is the outcome of one append.
type WriteResult struct {
	// Observation is the stored observation (the existing one for duplicates).
	Observation *models.PriceObservation

	// Previous is the comparison observation inside the lookback window, if any.
	Previous *models.PriceObservation

	// Drop is set when the price fell by more than the threshold.
	Drop *PriceDrop

	// Duplicate is true when the SourceKey had already been appended.
	Duplicate bool
}

// PriceDrop describes a price decrease between two observations of a
// product at one retailer.
type PriceDrop struct {
	ProductID             uint            `json:"product_id"`
	RetailerID            uint            `json:"retailer_id"`
	ObservationID         uint64          `json:"observation_id"`
	PreviousObservationID uint64          `json:"previous_observation_id"`
	Currency              string          `json:"currency"`
	PreviousPrice         decimal.Decimal `json:"previous_price"`
	CurrentPrice          decimal.Decimal `json:"current_price"`
	DropPercent           decimal.Decimal `json:"drop_percent"`
	PreviousObservedAt    time.Time       `json:"previous_observed_at"`
	ObservedAt            time.Time       `json:"observed_at"`
}

// Writer appends observations and runs drop detection.
type Writer struct {
	store  Store
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
}

// NewWriter creates a Writer. Zero config values take their defaults.
func NewWriter(store Store, logger *slog.Logger, cfg Config) *Writer {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.DropThreshold <= 0 || cfg.DropThreshold >= 1 {
		cfg.DropThreshold = DefaultDropThreshold
	}
	return &Writer{
		store:  store,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Append validates e, appends it and compares it with the most recent prior
// observation of the same (product, retailer) pair inside the lookback window.
func (w *Writer) Append(ctx context.Context, e Entry) (WriteResult, error) {
	if err := validateEntry(e); err != nil {
		return WriteResult{}, err
	}

	observedAt := e.ObservedAt
	if observedAt.IsZero() {
		observedAt = w.now()
	}
	sourceKey := e.SourceKey
	if sourceKey == "" {
		sourceKey = uuid.NewString()
	}

	obs := &models.PriceObservation{
		ProductID:        e.ProductID,
		RetailerID:       e.RetailerID,
		Price:            e.Price,
		Currency:         e.Currency,
		CurrencyInferred: e.CurrencyInferred,
		InStock:          e.InStock,
		Quantity:         e.Quantity,
		Unit:             e.Unit,
		SourceURL:        e.SourceURL,
		SourceKey:        sourceKey,
		ObservedAt:       observedAt.UTC(),
	}

	err := w.store.AppendObservation(ctx, obs)
	if errors.Is(err, models.ErrDuplicate) {
		existing, lookupErr := w.store.ObservationBySourceKey(ctx, sourceKey)
		if lookupErr != nil {
			return WriteResult{}, fmt.Errorf("load duplicate observation %s: %w", sourceKey, lookupErr)
		}
		w.logger.Debug("Observation already recorded", "source_key", sourceKey, "observation_id", existing.ID)
		return WriteResult{Observation: existing, Duplicate: true}, nil
	}
	if err != nil {
		return WriteResult{}, fmt.Errorf("append observation: %w", err)
	}

	result := WriteResult{Observation: obs}

	prev, err := w.store.PreviousObservation(ctx, obs.ProductID, obs.RetailerID, obs.ObservedAt, obs.ObservedAt.Add(-w.cfg.Lookback))
	switch {
	case errors.Is(err, models.ErrNotFound):
		return result, nil
	case err != nil:
		// The observation is stored; only the comparison failed.
		w.logger.Warn("Previous observation lookup failed", "product_id", obs.ProductID, "retailer_id", obs.RetailerID, "error", err)
		return result, nil
	}

	result.Previous = prev
	if drop, ok := DetectDrop(*obs, *prev, w.cfg.DropThreshold); ok {
		result.Drop = drop
		w.logger.Info("Price drop detected",
			"product_id", drop.ProductID,
			"retailer_id", drop.RetailerID,
			"previous", drop.PreviousPrice.String(),
			"current", drop.CurrentPrice.String(),
			"drop_percent", drop.DropPercent.String(),
		)
	}
	return result, nil
}

// DetectDrop reports a drop when current < previous * (1 - threshold).
// Observations in different currencies are never compared.
func DetectDrop(current, previous models.PriceObservation, threshold float64) (*PriceDrop, bool) {
	if current.Currency != previous.Currency || !previous.Price.IsPositive() {
		return nil, false
	}

	limit := previous.Price.Mul(decimal.NewFromFloat(1 - threshold))
	if !current.Price.LessThan(limit) {
		return nil, false
	}

	percent := previous.Price.Sub(current.Price).
		Div(previous.Price).
		Mul(decimal.NewFromInt(100)).
		Round(2)

	return &PriceDrop{
		ProductID:             current.ProductID,
		RetailerID:            current.RetailerID,
		ObservationID:         current.ID,
		PreviousObservationID: previous.ID,
		Currency:              current.Currency,
		PreviousPrice:         previous.Price,
		CurrentPrice:          current.Price,
		DropPercent:           percent,
		PreviousObservedAt:    previous.ObservedAt,
		ObservedAt:            current.ObservedAt,
	}, true
}

func validateEntry(e Entry) error {
	switch {
	case e.ProductID == 0:
		return fmt.Errorf("%w: product id is required", ErrInvalidObservation)
	case e.RetailerID == 0:
		return fmt.Errorf("%w: retailer id is required", ErrInvalidObservation)
	case !e.Price.IsPositive():
		return fmt.Errorf("%w: price must be positive, got %s", ErrInvalidObservation, e.Price.String())
	case !normalizer.IsSupportedCurrency(e.Currency):
		return fmt.Errorf("%w: unsupported currency %q", ErrInvalidObservation, e.Currency)
	}
	return nil
}
