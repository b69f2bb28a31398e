package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookPayload is the body POSTed to the renewal webhook.
type WebhookPayload struct {
	Text     string           `json:"text"`
	Renewals []WebhookRenewal `json:"renewals"`
}

type WebhookRenewal struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	RenewalDate string  `json:"renewal_date"`
	DaysUntil   int     `json:"days_until"`
	CostEUR     float64 `json:"cost_eur"`
}

// Poster delivers a webhook payload.
type Poster interface {
	Post(ctx context.Context, url string, payload any) error
}

// WebhookClient posts JSON over HTTP.
type WebhookClient struct {
	client *http.Client
}

func NewWebhookClient(timeout time.Duration) *WebhookClient {
	return &WebhookClient{client: &http.Client{Timeout: timeout}}
}

// Post sends payload as JSON; any non-2xx status is an error.
func (w *WebhookClient) Post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
