package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/quillscribe/portal/internal/model"
)

// EventContactCreated is the event type sent with contact webhooks.
const EventContactCreated = "contact.created"

// WebhookPayload is the JSON body posted to the contact webhook.
type WebhookPayload struct {
	Event     string                `json:"event"`
	Timestamp time.Time             `json:"timestamp"`
	Message   *model.ContactMessage `json:"message"`
}

// WebhookNotifier posts signed contact messages to a URL.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewWebhookNotifier creates a notifier for targetURL. A nil client uses
// NewHTTPClient with the private-address guard on.
func NewWebhookNotifier(targetURL, secret string, client *http.Client, logger *slog.Logger) *WebhookNotifier {
	if client == nil {
		client = NewHTTPClient(false)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{
		url:    targetURL,
		secret: secret,
		client: client,
		logger: logger.With("component", "notify.webhook"),
		now:    time.Now,
	}
}

// Name implements Notifier.
func (n *WebhookNotifier) Name() string { return "webhook" }

// Notify posts msg. 4xx responses other than 408 and 429 are permanent.
func (n *WebhookNotifier) Notify(ctx context.Context, msg *model.ContactMessage) error {
	now := n.now().UTC()
	body, err := json.Marshal(WebhookPayload{
		Event:     EventContactCreated,
		Timestamp: now,
		Message:   msg,
	})
	if err != nil {
		return Permanent(fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Quillscribe-Webhook/1.0")
	req.Header.Set(HeaderSignature, SignatureHeader(n.secret, now.Unix(), body))
	req.Header.Set(HeaderDeliveryID, msg.ID)
	req.Header.Set(HeaderEvent, EventContactCreated)

	start := time.Now()
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		n.logger.Info("contact webhook delivered",
			slog.String("message_id", msg.ID),
			slog.String("target_host", ExtractHost(n.url)),
			slog.Int("http_status", resp.StatusCode),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	err = fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	if isPermanentStatus(resp.StatusCode) {
		return Permanent(err)
	}
	return err
}

func isPermanentStatus(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= 400 && status < 500
}
