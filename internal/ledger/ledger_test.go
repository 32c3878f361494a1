package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/navid-fn/pelletradar/internal/models"
	"github.com/navid-fn/pelletradar/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func entry(price int64, at time.Time) Entry {
	return Entry{
		ProductID:  1,
		RetailerID: 1,
		Price:      decimal.NewFromInt(price),
		Currency:   "EUR",
		InStock:    true,
		ObservedAt: at,
	}
}

func TestAppendDefaultsTimestampAndKey(t *testing.T) {
	w := NewWriter(storage.NewMemoryStore(), testLogger(), Config{})
	fixed := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	res, err := w.Append(context.Background(), entry(235, time.Time{}))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if !res.Observation.ObservedAt.Equal(fixed) {
		t.Errorf("Expected timestamp %v, got %v", fixed, res.Observation.ObservedAt)
	}
	if res.Observation.SourceKey == "" {
		t.Error("Expected a generated source key")
	}
	if res.Observation.ID == 0 {
		t.Error("Expected an assigned id")
	}
	if res.Previous != nil || res.Drop != nil {
		t.Errorf("Expected no previous observation, got %+v", res)
	}
}

func TestAppendRejectsInvalidEntries(t *testing.T) {
	w := NewWriter(storage.NewMemoryStore(), testLogger(), Config{})
	now := time.Now()

	tests := []struct {
		name   string
		mutate func(*Entry)
	}{
		{"zero price", func(e *Entry) { e.Price = decimal.Zero }},
		{"negative price", func(e *Entry) { e.Price = decimal.NewFromInt(-5) }},
		{"missing product", func(e *Entry) { e.ProductID = 0 }},
		{"missing retailer", func(e *Entry) { e.RetailerID = 0 }},
		{"unsupported currency", func(e *Entry) { e.Currency = "XYZ" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entry(235, now)
			tt.mutate(&e)
			if _, err := w.Append(context.Background(), e); !errors.Is(err, ErrInvalidObservation) {
				t.Errorf("Expected ErrInvalidObservation, got %v", err)
			}
		})
	}
}

func TestAppendDetectsDropInsideLookback(t *testing.T) {
	w := NewWriter(storage.NewMemoryStore(), testLogger(), Config{DropThreshold: 0.01})
	ctx := context.Background()
	t0 := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	if _, err := w.Append(ctx, entry(235, t0)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	res, err := w.Append(ctx, entry(230, t0.Add(24*time.Hour)))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if res.Previous == nil {
		t.Fatal("Expected a previous observation")
	}
	if res.Drop == nil {
		t.Fatal("Expected a price drop")
	}
	if !res.Drop.PreviousPrice.Equal(decimal.NewFromInt(235)) || !res.Drop.CurrentPrice.Equal(decimal.NewFromInt(230)) {
		t.Errorf("Unexpected drop prices %+v", res.Drop)
	}
	if !res.Drop.DropPercent.Equal(decimal.RequireFromString("2.13")) {
		t.Errorf("Expected drop of 2.13%%, got %s", res.Drop.DropPercent)
	}
}

func TestAppendIgnoresObservationsOutsideLookback(t *testing.T) {
	w := NewWriter(storage.NewMemoryStore(), testLogger(), Config{DropThreshold: 0.01})
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	_, _ = w.Append(ctx, entry(235, t0))
	res, err := w.Append(ctx, entry(200, t0.Add(8*24*time.Hour)))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if res.Previous != nil || res.Drop != nil {
		t.Errorf("Expected no comparison outside the 7 day window, got %+v", res)
	}
}

func TestNewWriterZeroThresholdUsesDefault(t *testing.T) {
	w := NewWriter(storage.NewMemoryStore(), testLogger(), Config{})
	if w.cfg.DropThreshold != DefaultDropThreshold {
		t.Errorf("Expected threshold %v, got %v", DefaultDropThreshold, w.cfg.DropThreshold)
	}

	ctx := context.Background()
	t0 := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	_, _ = w.Append(ctx, entry(235, t0))
	res, err := w.Append(ctx, entry(234, t0.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if res.Drop != nil {
		t.Errorf("235 -> 234 is below the default threshold, got drop %+v", res.Drop)
	}
}

func TestAppendComparesWithMostRecentPrior(t *testing.T) {
	w := NewWriter(storage.NewMemoryStore(), testLogger(), Config{})
	ctx := context.Background()
	t0 := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	_, _ = w.Append(ctx, entry(300, t0))
	_, _ = w.Append(ctx, entry(240, t0.Add(time.Hour)))
	res, err := w.Append(ctx, entry(230, t0.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if !res.Previous.Price.Equal(decimal.NewFromInt(240)) {
		t.Errorf("Expected comparison with 240, got %s", res.Previous.Price)
	}
	if res.Drop != nil {
		t.Errorf("240 -> 230 is below the 10%% threshold, got drop %+v", res.Drop)
	}
}

func TestAppendDuplicateSourceKey(t *testing.T) {
	w := NewWriter(storage.NewMemoryStore(), testLogger(), Config{})
	ctx := context.Background()

	e := entry(235, time.Now())
	e.SourceKey = "listing-1"
	first, err := w.Append(ctx, e)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	second, err := w.Append(ctx, e)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if !second.Duplicate {
		t.Error("Expected duplicate flag")
	}
	if second.Observation.ID != first.Observation.ID {
		t.Errorf("Expected existing observation %d, got %d", first.Observation.ID, second.Observation.ID)
	}
}

func TestDetectDrop(t *testing.T) {
	obs := func(price string, currency string) models.PriceObservation {
		return models.PriceObservation{Price: decimal.RequireFromString(price), Currency: currency}
	}

	tests := []struct {
		name      string
		current   models.PriceObservation
		previous  models.PriceObservation
		threshold float64
		want      bool
	}{
		{"drop above threshold", obs("89", "EUR"), obs("100", "EUR"), 0.10, true},
		{"exactly at threshold", obs("90", "EUR"), obs("100", "EUR"), 0.10, false},
		{"small drop", obs("95", "EUR"), obs("100", "EUR"), 0.10, false},
		{"price increase", obs("110", "EUR"), obs("100", "EUR"), 0.10, false},
		{"zero threshold any decrease", obs("99.99", "EUR"), obs("100", "EUR"), 0, true},
		{"different currencies", obs("50", "USD"), obs("100", "EUR"), 0.10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := DetectDrop(tt.current, tt.previous, tt.threshold); got != tt.want {
				t.Errorf("Expected drop=%v, got %v", tt.want, got)
			}
		})
	}
}
