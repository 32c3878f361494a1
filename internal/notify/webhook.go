package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/pelletradar/internal/faulttolerance"
	"github.com/navid-fn/pelletradar/internal/ledger"
)

// WebhookNotifier POSTs price drops to an alert endpoint. Server errors are
// retried with backoff; a circuit breaker stops hammering a dead endpoint.
type WebhookNotifier struct {
	url     string
	client  *resty.Client
	retryer *faulttolerance.Retryer
	breaker *faulttolerance.CircuitBreaker
}

// WebhookConfig holds webhook delivery settings.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
	Retry   faulttolerance.RetryConfig
	Breaker faulttolerance.CircuitBreakerConfig
}

func NewWebhookNotifier(cfg WebhookConfig, logger *logrus.Logger) *WebhookNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.Name == "" {
		cfg.Retry = faulttolerance.DefaultRetryConfig("alert-webhook")
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "alert-webhook"
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent", "pelletradar-alerts/1.0")

	return &WebhookNotifier{
		url:     cfg.URL,
		client:  client,
		retryer: faulttolerance.NewRetryer(cfg.Retry, logger),
		breaker: faulttolerance.NewCircuitBreaker(cfg.Breaker, logger),
	}
}

func (w *WebhookNotifier) NotifyPriceDrop(ctx context.Context, drop ledger.PriceDrop) error {
	return w.retryer.ExecuteWithCircuitBreaker(ctx, w.breaker, func(ctx context.Context) error {
		resp, err := w.client.R().
			SetContext(ctx).
			SetBody(drop).
			Post(w.url)
		if err != nil {
			return fmt.Errorf("webhook request failed: %w", err)
		}

		status := resp.StatusCode()
		switch {
		case status >= 200 && status < 300:
			return nil
		case status == http.StatusTooManyRequests || status >= 500:
			return fmt.Errorf("webhook returned %s", resp.Status())
		default:
			return faulttolerance.Permanent(fmt.Errorf("webhook rejected price drop: %s", resp.Status()))
		}
	})
}
