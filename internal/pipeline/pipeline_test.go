package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/navid-fn/pelletradar/internal/ledger"
	"github.com/navid-fn/pelletradar/internal/models"
	"github.com/navid-fn/pelletradar/internal/resolver"
	"github.com/navid-fn/pelletradar/internal/storage"
)

type recordingNotifier struct {
	mu    sync.Mutex
	drops []ledger.PriceDrop
	err   error
}

func (n *recordingNotifier) NotifyPriceDrop(_ context.Context, drop ledger.PriceDrop) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drops = append(n.drops, drop)
	return n.err
}

func newTestPipeline(store *storage.MemoryStore, notifier Notifier, dropThreshold float64) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(
		store,
		resolver.NewResolver(store, logger, resolver.Config{}),
		ledger.NewWriter(store, logger, ledger.Config{DropThreshold: dropThreshold}),
		notifier,
		logger,
		Config{Parallelism: 4},
	)
}

func at(t time.Time) *time.Time { return &t }

func TestEndToEndSameProductAcrossListings(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &recordingNotifier{}
	p := newTestPipeline(store, notifier, 0.01)
	ctx := context.Background()
	t0 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	first, err := p.Process(ctx, models.RawListing{
		Brand:       "SIA Staļi",
		ProductName: "6 mm kokskaidu granulas 15KG MAISOS",
		Price:       235.0,
		Currency:    "EUR",
		InStock:     true,
		ObservedAt:  at(t0),
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !first.Resolved || !first.Created {
		t.Fatalf("Expected first listing to create a product, got %+v", first)
	}

	second, err := p.Process(ctx, models.RawListing{
		Brand:       "SIA Staļi",
		ProductName: "6mm kokskaidu granulas 15KG MAISOS",
		Price:       230.0,
		Currency:    "EUR",
		InStock:     true,
		ObservedAt:  at(t0.Add(2 * 24 * time.Hour)),
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if second.Created {
		t.Error("Second listing must not create a product")
	}
	if second.ProductID != first.ProductID {
		t.Errorf("Expected product %d, got %d", first.ProductID, second.ProductID)
	}
	if second.RetailerID != first.RetailerID {
		t.Errorf("Expected retailer %d, got %d", first.RetailerID, second.RetailerID)
	}
	if second.Match != string(resolver.MatchFuzzy) {
		t.Errorf("Expected fuzzy match, got %s", second.Match)
	}

	history, _ := store.PriceHistory(ctx, first.ProductID, 0)
	if len(history) != 2 {
		t.Fatalf("Expected 2 observations, got %d", len(history))
	}
	if !history[0].Price.Equal(decimal.NewFromInt(230)) || !history[1].Price.Equal(decimal.NewFromInt(235)) {
		t.Errorf("Expected prices 230 then 235 (newest first), got %s and %s", history[0].Price, history[1].Price)
	}

	if second.PriceDrop == nil {
		t.Fatal("Expected a price drop flag")
	}
	if len(notifier.drops) != 1 {
		t.Errorf("Expected 1 notification, got %d", len(notifier.drops))
	}
}

func TestEndToEndNoDropUnderDefaultThreshold(t *testing.T) {
	store := storage.NewMemoryStore()
	p := newTestPipeline(store, nil, 0.10)
	ctx := context.Background()
	t0 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	_, _ = p.Process(ctx, models.RawListing{Brand: "SIA Staļi", ProductName: "6 mm kokskaidu granulas 15KG MAISOS", Price: 235.0, Currency: "EUR", ObservedAt: at(t0)})
	res, err := p.Process(ctx, models.RawListing{Brand: "SIA Staļi", ProductName: "6mm kokskaidu granulas 15KG MAISOS", Price: 230.0, Currency: "EUR", ObservedAt: at(t0.Add(time.Hour))})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.PriceDrop != nil {
		t.Errorf("235 -> 230 is not a 10%% drop, got %+v", res.PriceDrop)
	}
}

func TestProcessInvalidListing(t *testing.T) {
	p := newTestPipeline(storage.NewMemoryStore(), nil, 0.10)

	res, err := p.Process(context.Background(), models.RawListing{
		Brand:       "SIA Staļi",
		ProductName: "Granulas",
		Price:       -5.0,
		Currency:    "XYZ",
	})
	if err != nil {
		t.Fatalf("Validation failures must not be errors, got %v", err)
	}
	if res.Valid || res.Resolved {
		t.Errorf("Expected an invalid, unresolved result, got %+v", res)
	}
	joined := strings.Join(res.Errors, "; ")
	if !strings.Contains(joined, "price") || !strings.Contains(joined, "currency") {
		t.Errorf("Expected price and currency errors, got %v", res.Errors)
	}
}

func TestProcessRedeliveredListingIsNotAppendedTwice(t *testing.T) {
	store := storage.NewMemoryStore()
	p := newTestPipeline(store, nil, 0.10)
	ctx := context.Background()
	listing := models.RawListing{
		Retailer:    "Depo",
		Brand:       "SIA Staļi",
		ProductName: "Granulas 15kg maisos",
		Price:       "4,99",
		Currency:    "€",
		URL:         "https://www.depo.lv/granulas",
		ObservedAt:  at(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)),
	}

	first, err := p.Process(ctx, listing)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	second, err := p.Process(ctx, listing)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !second.Duplicate || second.PriceObservationID != first.PriceObservationID {
		t.Errorf("Expected duplicate of observation %d, got %+v", first.PriceObservationID, second)
	}

	history, _ := store.PriceHistory(ctx, first.ProductID, 0)
	if len(history) != 1 {
		t.Errorf("Expected 1 observation, got %d", len(history))
	}

	retailers, _ := store.ListRetailers(ctx)
	if len(retailers) != 1 || retailers[0].Website != "https://www.depo.lv" {
		t.Errorf("Expected retailer Depo with website, got %+v", retailers)
	}
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	store := storage.NewMemoryStore()
	p := newTestPipeline(store, nil, 0.10)

	raws := []models.RawListing{
		{Brand: "SIA Staļi", ProductName: "6 mm kokskaidu granulas 15KG MAISOS", Price: 235.0, Currency: "EUR"},
		{Brand: "", ProductName: "Granulas", Price: 3.0},
		{Brand: "Latgran", ProductName: "Wood pellets 975kg pallet", Price: "289,00", Currency: "EUR"},
		{Brand: "Latgran", ProductName: "Wood pellets big bag 1 ton", Price: 310.0, Currency: "USD"},
		{Brand: "Latgran", ProductName: "Wood pellets", Price: "n/a"},
	}

	summary := p.ProcessBatch(context.Background(), raws)

	if summary.Total != 5 || summary.Succeeded != 3 || summary.Failed != 2 {
		t.Errorf("Expected 5/3/2, got %d/%d/%d", summary.Total, summary.Succeeded, summary.Failed)
	}
	if summary.BatchID == "" {
		t.Error("Expected a batch id")
	}
	if len(summary.Errors) != 2 || summary.Errors[0].Index != 1 || summary.Errors[1].Index != 4 {
		t.Errorf("Expected errors for items 1 and 4, got %+v", summary.Errors)
	}
	for i, res := range summary.Results {
		if res.Index != i {
			t.Errorf("Result %d has index %d", i, res.Index)
		}
	}
	if !summary.Results[0].Resolved || !summary.Results[2].Resolved || !summary.Results[3].Resolved {
		t.Errorf("Expected items 0, 2 and 3 to resolve: %+v", summary.Results)
	}
}

func TestProcessBatchTierOnlyNameIsInvalidNotFatal(t *testing.T) {
	p := newTestPipeline(storage.NewMemoryStore(), nil, 0.10)

	summary := p.ProcessBatch(context.Background(), []models.RawListing{
		{Brand: "Granul", ProductName: "Premium A1", Price: 4.99},
	})
	if summary.Failed != 1 || len(summary.Errors) != 1 {
		t.Fatalf("Expected one failed listing, got %+v", summary)
	}
	if summary.Errors[0].Fatal {
		t.Errorf("Expected a validation failure, got fatal error %q", summary.Errors[0].Error)
	}
	if summary.Results[0].Valid {
		t.Error("Expected the listing to be rejected by validation")
	}
}

type failingResolver struct{ err error }

func (f failingResolver) Resolve(context.Context, models.CleanedListing) (resolver.Resolution, error) {
	return resolver.Resolution{}, f.err
}

func TestProcessBatchMarksFatalErrors(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(store,
		failingResolver{err: resolver.ErrPreconditionViolation},
		ledger.NewWriter(store, logger, ledger.Config{}),
		nil, logger, Config{})

	summary := p.ProcessBatch(context.Background(), []models.RawListing{
		{Brand: "SIA Staļi", ProductName: "Granulas", Price: 3.0},
	})
	if summary.Failed != 1 || len(summary.Errors) != 1 || !summary.Errors[0].Fatal {
		t.Errorf("Expected one fatal failure, got %+v", summary)
	}
}

func TestProcessBatchStorageErrorsDoNotAbort(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(store,
		failingResolver{err: errors.New("connection refused")},
		ledger.NewWriter(store, logger, ledger.Config{}),
		nil, logger, Config{Parallelism: 2})

	raws := make([]models.RawListing, 6)
	for i := range raws {
		raws[i] = models.RawListing{Brand: "B", ProductName: "Granulas", Price: 3.0}
	}

	summary := p.ProcessBatch(context.Background(), raws)
	if summary.Failed != 6 || summary.Errors[0].Fatal {
		t.Errorf("Expected 6 non-fatal failures, got %+v", summary)
	}
}

func TestProcessBatchCancelledContext(t *testing.T) {
	p := newTestPipeline(storage.NewMemoryStore(), nil, 0.10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := p.ProcessBatch(ctx, []models.RawListing{
		{Brand: "B", ProductName: "Granulas", Price: 3.0},
	})
	if summary.Failed != 1 {
		t.Errorf("Expected the listing to fail on a cancelled context, got %+v", summary)
	}
}

func TestProcessNotifierFailureDoesNotFailListing(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &recordingNotifier{err: errors.New("webhook down")}
	p := newTestPipeline(store, notifier, 0.01)
	ctx := context.Background()
	t0 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	_, _ = p.Process(ctx, models.RawListing{Brand: "B", ProductName: "Granulas 15kg", Price: 5.0, ObservedAt: at(t0)})
	res, err := p.Process(ctx, models.RawListing{Brand: "B", ProductName: "Granulas 15kg", Price: 4.0, ObservedAt: at(t0.Add(time.Hour))})
	if err != nil {
		t.Fatalf("Notifier failures must not fail the listing, got %v", err)
	}
	if !res.Resolved || res.PriceDrop == nil {
		t.Errorf("Expected resolved listing with a drop, got %+v", res)
	}
}
