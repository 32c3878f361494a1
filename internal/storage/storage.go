// Package storage provides price ledger storage implementations.
//
// The ClickHouse store keeps the append-only price_observations table for
// deployments whose ledger outgrows MySQL. MemoryStore backs tests and dry runs.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"github.com/navid-fn/pelletradar/internal/models"
)

// LedgerStore is the price ledger as seen by the ledger writer and the read API.
// Implementations must be safe for concurrent use.
type LedgerStore interface {
	// AppendObservation inserts obs. A repeated SourceKey yields models.ErrDuplicate.
	AppendObservation(ctx context.Context, obs *models.PriceObservation) error

	// ObservationBySourceKey returns models.ErrNotFound for an unknown key.
	ObservationBySourceKey(ctx context.Context, key string) (*models.PriceObservation, error)

	// PreviousObservation returns the most recent observation of the pair with
	// since <= observed_at < before.
	PreviousObservation(ctx context.Context, productID, retailerID uint, before, since time.Time) (*models.PriceObservation, error)

	// PriceHistory returns observations of a product, newest first.
	PriceHistory(ctx context.Context, productID uint, limit int) ([]models.PriceObservation, error)

	// LatestPerRetailer returns the newest observation of a product at each retailer.
	LatestPerRetailer(ctx context.Context, productID uint) ([]models.PriceObservation, error)

	// Close releases database connection resources.
	Close() error
}

// clickhouseStorage implements LedgerStore using the native ClickHouse driver.
// The table is a ReplacingMergeTree keyed by id, so a racing duplicate insert
// collapses on merge; reads use FINAL.
type clickhouseStorage struct {
	conn driver.Conn
}

// NewClickHouseStorage parses the DSN, opens a connection and verifies it
// with a ping. Fails if the server does not answer within 5 seconds.
func NewClickHouseStorage(dsn string) (LedgerStore, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &clickhouseStorage{conn: conn}, nil
}

const observationColumns = `
	id, product_id, retailer_id, price, currency, currency_inferred,
	in_stock, quantity, unit, source_url, source_key, observed_at, inserted_at`

// AppendObservation derives the id from the source key and inserts a
// one-row batch.
func (s *clickhouseStorage) AppendObservation(ctx context.Context, obs *models.PriceObservation) error {
	var exists uint64
	if err := s.conn.QueryRow(ctx,
		`SELECT count() FROM price_observations WHERE source_key = ?`, obs.SourceKey,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check source key: %w", err)
	}
	if exists > 0 {
		return models.ErrDuplicate
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO price_observations (`+observationColumns+`)`)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	obs.ID = models.ObservationIDFromKey(obs.SourceKey)
	obs.CreatedAt = now
	err = batch.Append(
		obs.ID,
		uint64(obs.ProductID),
		uint64(obs.RetailerID),
		obs.Price,
		obs.Currency,
		obs.CurrencyInferred,
		obs.InStock,
		int32(obs.Quantity),
		obs.Unit,
		obs.SourceURL,
		obs.SourceKey,
		obs.ObservedAt,
		now,
	)
	if err != nil {
		return err
	}

	return batch.Send()
}

func (s *clickhouseStorage) ObservationBySourceKey(ctx context.Context, key string) (*models.PriceObservation, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT `+observationColumns+` FROM price_observations FINAL WHERE source_key = ? LIMIT 1`, key)
	if err != nil {
		return nil, err
	}
	return firstObservation(rows)
}

func (s *clickhouseStorage) PreviousObservation(ctx context.Context, productID, retailerID uint, before, since time.Time) (*models.PriceObservation, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+observationColumns+`
		FROM price_observations FINAL
		WHERE product_id = ? AND retailer_id = ?
		  AND observed_at >= ? AND observed_at < ?
		ORDER BY observed_at DESC, inserted_at DESC
		LIMIT 1`,
		uint64(productID), uint64(retailerID), since, before)
	if err != nil {
		return nil, err
	}
	return firstObservation(rows)
}

func (s *clickhouseStorage) PriceHistory(ctx context.Context, productID uint, limit int) ([]models.PriceObservation, error) {
	query := `
		SELECT ` + observationColumns + `
		FROM price_observations FINAL
		WHERE product_id = ?
		ORDER BY observed_at DESC, inserted_at DESC`
	args := []any{uint64(productID)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanObservations(rows)
}

func (s *clickhouseStorage) LatestPerRetailer(ctx context.Context, productID uint) ([]models.PriceObservation, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+observationColumns+`
		FROM (
			SELECT `+observationColumns+`
			FROM price_observations FINAL
			WHERE product_id = ?
			ORDER BY observed_at DESC, inserted_at DESC
			LIMIT 1 BY retailer_id
		)
		ORDER BY price ASC`,
		uint64(productID))
	if err != nil {
		return nil, err
	}
	return scanObservations(rows)
}

// Close closes the ClickHouse connection.
func (s *clickhouseStorage) Close() error {
	return s.conn.Close()
}

type observationRow struct {
	ID               uint64
	ProductID        uint64
	RetailerID       uint64
	Price            decimal.Decimal
	Currency         string
	CurrencyInferred bool
	InStock          bool
	Quantity         int32
	Unit             string
	SourceURL        string
	SourceKey        string
	ObservedAt       time.Time
	InsertedAt       time.Time
}

func (r observationRow) toModel() models.PriceObservation {
	return models.PriceObservation{
		ID:               r.ID,
		ProductID:        uint(r.ProductID),
		RetailerID:       uint(r.RetailerID),
		Price:            r.Price,
		Currency:         r.Currency,
		CurrencyInferred: r.CurrencyInferred,
		InStock:          r.InStock,
		Quantity:         int(r.Quantity),
		Unit:             r.Unit,
		SourceURL:        r.SourceURL,
		SourceKey:        r.SourceKey,
		ObservedAt:       r.ObservedAt.UTC(),
		CreatedAt:        r.InsertedAt.UTC(),
	}
}

func scanRow(rows driver.Rows) (models.PriceObservation, error) {
	var r observationRow
	err := rows.Scan(
		&r.ID, &r.ProductID, &r.RetailerID, &r.Price, &r.Currency, &r.CurrencyInferred,
		&r.InStock, &r.Quantity, &r.Unit, &r.SourceURL, &r.SourceKey, &r.ObservedAt, &r.InsertedAt,
	)
	return r.toModel(), err
}

func scanObservations(rows driver.Rows) ([]models.PriceObservation, error) {
	defer rows.Close()

	result := []models.PriceObservation{}
	for rows.Next() {
		obs, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, obs)
	}
	return result, rows.Err()
}

func firstObservation(rows driver.Rows) (*models.PriceObservation, error) {
	result, err := scanObservations(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, models.ErrNotFound
	}
	return &result[0], nil
}
