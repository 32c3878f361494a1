// Package notify delivers detected price drops to Kafka, an alert webhook
// and connected websocket clients.
package notify

import (
	"context"
	"errors"

	"github.com/navid-fn/pelletradar/internal/ledger"
)

// Notifier receives price drops.
type Notifier interface {
	NotifyPriceDrop(ctx context.Context, drop ledger.PriceDrop) error
}

// Multi fans a drop out to every notifier. All are called even when one
// fails; the errors are joined.
type Multi []Notifier

func (m Multi) NotifyPriceDrop(ctx context.Context, drop ledger.PriceDrop) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyPriceDrop(ctx, drop); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
