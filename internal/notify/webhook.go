package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/consultdesk/booking-engine/pkg/logging"
)

// WebhookSender POSTs lifecycle events as JSON to a partner endpoint, for
// example the practice's CRM. The shared secret rides a header so the
// receiver can authenticate the engine.
type WebhookSender struct {
	client *http.Client
	url    string
	secret string
	logger *logging.Logger
}

// WebhookConfig holds configuration for the outbound webhook.
type WebhookConfig struct {
	URL    string
	Secret string
}

// NewWebhookSender creates a webhook sender. Returns nil when no URL is
// configured so the dispatcher can skip the target.
func NewWebhookSender(cfg WebhookConfig, logger *logging.Logger) *WebhookSender {
	if cfg.URL == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookSender{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    cfg.URL,
		secret: cfg.Secret,
		logger: logger,
	}
}

// Send delivers one event payload. Non-2xx responses are errors so the
// outbox retries the delivery.
func (w *WebhookSender) Send(ctx context.Context, eventType string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Booking-Event", eventType)
	if w.secret != "" {
		req.Header.Set("X-Webhook-Secret", w.secret)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Error("webhook send failed", "error", err, "event_type", eventType)
		return fmt.Errorf("notify: webhook send failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		w.logger.Error("webhook returned error status", "status", resp.StatusCode, "event_type", eventType)
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}

	w.logger.Debug("webhook delivered", "event_type", eventType, "status", resp.StatusCode)
	return nil
}
