package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/navid-fn/pelletradar/internal/ledger"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier publishes price drops as JSON, keyed by product and retailer
// so the drops of one pair stay ordered within a partition.
type KafkaNotifier struct {
	writer MessageWriter
	logger *slog.Logger
}

func NewKafkaNotifier(writer MessageWriter, logger *slog.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, logger: logger}
}

func (k *KafkaNotifier) NotifyPriceDrop(ctx context.Context, drop ledger.PriceDrop) error {
	data, err := json.Marshal(drop)
	if err != nil {
		return fmt.Errorf("serialize price drop failed: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = k.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(fmt.Sprintf("%d-%d", drop.ProductID, drop.RetailerID)),
		Value: data,
		Time:  drop.ObservedAt,
	})
	if err != nil {
		return fmt.Errorf("kafka write failed: %w", err)
	}
	k.logger.Debug("Price drop published", "product_id", drop.ProductID, "retailer_id", drop.RetailerID)
	return nil
}
