package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	userAgent      = "genroute/1.0"
	deliverTimeout = 10 * time.Second
)

// DeliveryError is a notification rejected by the receiving endpoint.
type DeliveryError struct {
	Notifier   string
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: endpoint returned status %d: %s", e.Notifier, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: endpoint returned status %d", e.Notifier, e.StatusCode)
}

// deliver POSTs payload as JSON. sign, if set, may add headers derived from
// the encoded body.
func deliver(ctx context.Context, client *http.Client, notifier, url string, payload any, sign func(h http.Header, body []byte)) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal payload: %w", notifier, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", notifier, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if sign != nil {
		sign(req.Header, body)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send: %w", notifier, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeliveryError{Notifier: notifier, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}
	return nil
}
