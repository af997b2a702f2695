package delivery

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"alertd/internal/alert"
	"alertd/internal/directory"
)

// WebhookConfig configures the webhook channel.
type WebhookConfig struct {
	URL        string
	HMACSecret string
	Headers    map[string]string
	Timeout    time.Duration
}

// Webhook POSTs one JSON payload per delivery to a fixed endpoint, optionally
// signing the body with HMAC-SHA256 in X-Signature.
type Webhook struct {
	cfg    WebhookConfig
	client *http.Client
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Webhook{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (c *Webhook) Name() string { return "webhook" }

type webhookPayload struct {
	AlertID     string `json:"alert_id"`
	RecipientID string `json:"recipient_id"`
	Email       string `json:"email,omitempty"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Severity    string `json:"severity"`
	SentAt      string `json:"sent_at"`
}

func (c *Webhook) Send(ctx context.Context, a alert.Alert, rcpt directory.Recipient) error {
	body, err := json.Marshal(webhookPayload{
		AlertID:     a.ID,
		RecipientID: rcpt.ID,
		Email:       rcpt.Email,
		Title:       a.Title,
		Message:     a.Message,
		Severity:    string(a.Severity),
		SentAt:      time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "alertd-webhook/1.0")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	if c.cfg.HMACSecret != "" {
		signer := hmac.New(sha256.New, []byte(c.cfg.HMACSecret))
		signer.Write(body)
		req.Header.Set("X-Signature", fmt.Sprintf("%x", signer.Sum(nil)))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
