package alerts

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// WebhookNotifier sends alerts to a generic HTTP endpoint. Each delivery
// carries a unique id in the body and the X-Delivery-ID header so receivers
// can drop duplicates.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
	now    func() time.Time
}

// NewWebhookNotifier creates a generic webhook notifier. A non-empty secret
// signs each body with HMAC-SHA256 in the X-Signature-256 header.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: deliverTimeout},
		now:    time.Now,
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

// webhookEvent is the delivered envelope; Version changes on breaking
// payload changes.
type webhookEvent struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Alert     Alert     `json:"alert"`
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	ev := webhookEvent{
		ID:        uuid.NewString(),
		Version:   1,
		Event:     "org_budget." + string(alert.Level),
		Timestamp: w.now().UTC(),
		Alert:     alert,
	}

	return deliver(ctx, w.client, w.Name(), w.url, ev, func(h http.Header, body []byte) {
		h.Set("X-Delivery-ID", ev.ID)
		if w.secret != "" {
			h.Set("X-Signature-256", "sha256="+Sign(body, w.secret))
		}
	})
}

// Sign returns the hex HMAC-SHA256 of body under secret, as sent in
// X-Signature-256. Receivers use it to verify deliveries.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
