// Package app wires configuration, storage, the resolution pipeline and
// notifiers into the object graph shared by every binary.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/navid-fn/pelletradar/configs"
	"github.com/navid-fn/pelletradar/internal/faulttolerance"
	"github.com/navid-fn/pelletradar/internal/ledger"
	"github.com/navid-fn/pelletradar/internal/models"
	"github.com/navid-fn/pelletradar/internal/notify"
	"github.com/navid-fn/pelletradar/internal/pipeline"
	"github.com/navid-fn/pelletradar/internal/repository"
	"github.com/navid-fn/pelletradar/internal/resolver"
	"github.com/navid-fn/pelletradar/internal/storage"
)

// Catalog is the product store used by the resolver and the read API.
type Catalog interface {
	resolver.CatalogStore
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	ListProducts(ctx context.Context, brand string, limit, offset int) ([]models.Product, error)
}

// Retailers is the retailer store.
type Retailers interface {
	pipeline.RetailerStore
	ListRetailers(ctx context.Context) ([]models.Retailer, error)
}

// Ledger is the price ledger used by the writer and the read API.
type Ledger interface {
	ledger.Store
	PriceHistory(ctx context.Context, productID uint, limit int) ([]models.PriceObservation, error)
	LatestPerRetailer(ctx context.Context, productID uint) ([]models.PriceObservation, error)
}

// Options selects optional parts of the graph.
type Options struct {
	// InMemory replaces every database with a MemoryStore.
	InMemory bool

	// PublishDrops publishes price drops to the drops Kafka topic.
	PublishDrops bool

	// Hub enables the websocket drop stream.
	Hub bool
}

// App is the assembled object graph.
type App struct {
	Catalog   Catalog
	Retailers Retailers
	Ledger    Ledger
	Resolver  *resolver.Resolver
	Pipeline  *pipeline.Pipeline
	Hub       *notify.Hub

	closers []func() error
}

// New builds the graph described by cfg and opts.
func New(cfg *configs.AppConfig, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{}

	if opts.InMemory {
		store := storage.NewMemoryStore()
		a.Catalog, a.Retailers, a.Ledger = store, store, store
	} else if err := a.openStores(cfg, logger); err != nil {
		_ = a.Close()
		return nil, err
	}

	var notifiers notify.Multi
	if opts.PublishDrops {
		writer := &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaDrops.Broker),
			Topic:        cfg.KafkaDrops.Topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			Compression:  kafka.Zstd,
		}
		a.closers = append(a.closers, writer.Close)
		notifiers = append(notifiers, notify.NewKafkaNotifier(writer, logger))
	}
	if cfg.Alerts.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(notify.WebhookConfig{
			URL:     cfg.Alerts.WebhookURL,
			Timeout: time.Duration(cfg.Alerts.WebhookTimeoutSeconds) * time.Second,
		}, newLogrus(cfg.LogLevel)))
	}
	if opts.Hub {
		a.Hub = notify.NewHub(logger)
		notifiers = append(notifiers, a.Hub)
		a.closers = append(a.closers, func() error { a.Hub.Close(); return nil })
	}

	a.Resolver = resolver.NewResolver(a.Catalog, logger, resolver.Config{
		SimilarityThreshold: cfg.Resolver.SimilarityThreshold,
		DefaultCategory:     cfg.Resolver.DefaultCategory,
	})
	writer := ledger.NewWriter(a.Ledger, logger, ledger.Config{
		Lookback:      cfg.Ledger.Lookback(),
		DropThreshold: cfg.Ledger.DropThreshold,
	})

	var notifier pipeline.Notifier
	if len(notifiers) > 0 {
		notifier = notifiers
	}
	a.Pipeline = pipeline.New(a.Retailers, a.Resolver, writer, notifier, logger, pipeline.Config{
		Parallelism: cfg.Pipeline.Parallelism,
		RateLimit:   cfg.Pipeline.RateLimit,
	})

	return a, nil
}

func (a *App) openStores(cfg *configs.AppConfig, logger *slog.Logger) error {
	retryer := faulttolerance.NewRetryer(faulttolerance.DefaultRetryConfig("storage-connect"), newLogrus(cfg.LogLevel))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var db *gorm.DB
	err := retryer.Execute(ctx, func(context.Context) error {
		var openErr error
		db, openErr = repository.Open(cfg.DBDSN)
		return openErr
	})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	a.closers = append(a.closers, sqlDB.Close)

	a.Catalog = repository.NewGormProductRepository(db)
	a.Retailers = repository.NewGormRetailerRepository(db)

	switch cfg.LedgerBackend {
	case configs.LedgerBackendClickHouse:
		var ch storage.LedgerStore
		err := retryer.Execute(ctx, func(context.Context) error {
			var openErr error
			ch, openErr = storage.NewClickHouseStorage(cfg.ClickHouseDSN)
			return openErr
		})
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		a.closers = append(a.closers, ch.Close)
		a.Ledger = ch
	default:
		a.Ledger = repository.NewGormPriceRepository(db)
	}

	logger.Info("Storage ready", "ledger_backend", cfg.LedgerBackend)
	return nil
}

// Close releases every connection the graph opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newLogrus(level string) *logrus.Logger {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	return l
}
