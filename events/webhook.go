package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// webhookTimeout bounds a single delivery attempt.
const webhookTimeout = 10 * time.Second

// Deliver posts an event to url synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
// Header: X-Sellerwatch-Signature: sha256=<hex>
func Deliver(ctx context.Context, client *http.Client, url, secret string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Sellerwatch-Webhook/1.0")

	if secret != "" {
		req.Header.Set("X-Sellerwatch-Signature", "sha256="+Sign(secret, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// webhookSink forwards events to an HTTP endpoint, one attempt each.
type webhookSink struct {
	url    string
	secret string
	client *http.Client
}

func newWebhookSink(url, secret string) *webhookSink {
	return &webhookSink{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: webhookTimeout},
	}
}

// send delivers in the background and only logs failures.
func (w *webhookSink) send(event Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
		defer cancel()
		if err := Deliver(ctx, w.client, w.url, w.secret, event); err != nil {
			slog.Warn("webhook delivery failed",
				"url", w.url,
				"event", event.Type,
				"error", err,
			)
		}
	}()
}
