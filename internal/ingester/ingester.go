// Package ingester consumes scraped listings from Kafka and runs them
// through the resolution pipeline in batches.
package ingester

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/navid-fn/pelletradar/internal/models"
	"github.com/navid-fn/pelletradar/internal/pipeline"
)

// maxFlushAttempts bounds how often listings that failed on storage errors
// are retried before their offsets are committed anyway.
const maxFlushAttempts = 3

// Config holds ingester configuration parameters.
type Config struct {
	// BatchSize is the maximum number of listings to accumulate before flushing.
	BatchSize int

	// BatchTimeout is the maximum time to wait before flushing, even if batch isn't full.
	BatchTimeout time.Duration

	// RetryDelay is the pause between flush attempts. Default 2s.
	RetryDelay time.Duration
}

// MessageReader is the subset of *kafka.Reader the ingester uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// BatchProcessor runs a batch of listings through the pipeline.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, raws []models.RawListing) pipeline.BatchSummary
}

// Ingester consumes listings from Kafka and processes them in batches.
// Offsets are committed only after a batch has been processed, so delivery
// is at-least-once; redelivered listings are deduplicated by the ledger.
type Ingester struct {
	reader    MessageReader
	processor BatchProcessor
	logger    *slog.Logger
	cfg       Config
}

// NewIngester creates a new Ingester with the provided dependencies.
func NewIngester(reader MessageReader, processor BatchProcessor, logger *slog.Logger, cfg Config) *Ingester {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Ingester{
		reader:    reader,
		processor: processor,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start runs the main ingestion loop. It blocks until ctx is cancelled and
// flushes buffered listings on shutdown.
//
// The loop:
//  1. Fetches messages from Kafka
//  2. Decodes JSON listings (a single object or an array)
//  3. Accumulates listings until the batch is full or the timeout fires
//  4. Processes the batch, retrying listings that failed on storage errors
//  5. Commits Kafka offsets after processing
func (ig *Ingester) Start(ctx context.Context) error {
	ig.logger.Info("Starting Ingester Loop", "batch_size", ig.cfg.BatchSize)

	batchListings := make([]models.RawListing, 0, ig.cfg.BatchSize)
	batchMsgs := make([]kafka.Message, 0, ig.cfg.BatchSize)

	ticker := time.NewTicker(ig.cfg.BatchTimeout)
	defer ticker.Stop()

	flush := func(ctx context.Context) error {
		if len(batchMsgs) == 0 {
			return nil
		}

		if len(batchListings) > 0 {
			if err := ig.processWithRetry(ctx, batchListings); err != nil {
				return err
			}
		}

		if err := ig.reader.CommitMessages(ctx, batchMsgs...); err != nil {
			ig.logger.Warn("Failed to commit offsets", "error", err)
		}

		batchListings = batchListings[:0]
		batchMsgs = batchMsgs[:0]
		ticker.Reset(ig.cfg.BatchTimeout)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			// The fetch context is gone; finish the buffered batch on a fresh one.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := flush(shutdownCtx)
			cancel()
			return err

		case <-ticker.C:
			if err := flush(ctx); err != nil {
				return err
			}

		default:
			fetchCtx, cancel := context.WithTimeout(ctx, ig.cfg.BatchTimeout)
			m, err := ig.reader.FetchMessage(fetchCtx)
			cancel()

			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					continue
				}
				ig.logger.Error("Kafka Fetch Error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			listings, err := parseMessage(m)
			if err != nil {
				// Undecodable messages are committed with the batch so they do not block the partition.
				ig.logger.Warn("Skipping undecodable message", "partition", m.Partition, "offset", m.Offset, "error", err)
			}

			batchListings = append(batchListings, listings...)
			batchMsgs = append(batchMsgs, m)

			if len(batchListings) >= ig.cfg.BatchSize {
				if err := flush(ctx); err != nil {
					return err
				}
			}
		}
	}
}

// processWithRetry processes listings and re-submits the ones that failed
// for reasons other than invalid input.
func (ig *Ingester) processWithRetry(ctx context.Context, listings []models.RawListing) error {
	pending := listings
	for attempt := 1; ; attempt++ {
		summary := ig.processor.ProcessBatch(ctx, pending)
		retry := retryable(pending, summary)
		if len(retry) == 0 {
			return nil
		}
		if attempt >= maxFlushAttempts {
			ig.logger.Error("Giving up on listings after repeated failures",
				"batch_id", summary.BatchID, "count", len(retry), "attempts", attempt)
			return nil
		}

		ig.logger.Warn("Retrying failed listings", "batch_id", summary.BatchID, "count", len(retry), "attempt", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ig.cfg.RetryDelay):
		}
		pending = retry
	}
}

// retryable returns listings that were valid but not resolved and did not
// violate a resolver precondition.
func retryable(listings []models.RawListing, summary pipeline.BatchSummary) []models.RawListing {
	fatal := make(map[int]bool, len(summary.Errors))
	for _, e := range summary.Errors {
		if e.Fatal {
			fatal[e.Index] = true
		}
	}

	var retry []models.RawListing
	for i, res := range summary.Results {
		if res.Valid && !res.Resolved && !fatal[i] {
			retry = append(retry, listings[i])
		}
	}
	return retry
}

// parseMessage decodes a Kafka message into listings. Scrapers publish
// either one listing or a JSON array of listings. Listings without an
// observation time take the message timestamp, which keeps their ledger
// keys stable across redelivery.
func parseMessage(msg kafka.Message) ([]models.RawListing, error) {
	listings, err := models.DecodeListings(msg.Value)
	if err != nil {
		return nil, err
	}

	if !msg.Time.IsZero() {
		for i := range listings {
			if listings[i].ObservedAt == nil {
				t := msg.Time.UTC()
				listings[i].ObservedAt = &t
			}
		}
	}
	return listings, nil
}
