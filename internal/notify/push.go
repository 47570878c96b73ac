package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/pkg/httpretry"
)

// Pusher delivers a notification to the owner's devices.
type Pusher interface {
	Push(ctx context.Context, n *domain.Notification) error
}

// WebhookPusher POSTs notifications as JSON to a push gateway. Transient
// failures are retried by the underlying client.
type WebhookPusher struct {
	url    string
	secret string
	client httpretry.HTTPDoer
}

// NewWebhookPusher creates a pusher. client may be nil for a default
// retrying client.
func NewWebhookPusher(url, secret string, client httpretry.HTTPDoer) *WebhookPusher {
	if client == nil {
		client = httpretry.New(nil)
	}
	return &WebhookPusher{url: url, secret: secret, client: client}
}

type pushPayload struct {
	OwnerID  string                  `json:"owner_id"`
	Title    string                  `json:"title"`
	Body     string                  `json:"body"`
	Priority domain.Priority         `json:"priority"`
	Type     domain.NotificationType `json:"type"`
	SparkID  string                  `json:"spark_id"`
}

func (p *WebhookPusher) Push(ctx context.Context, n *domain.Notification) error {
	body, err := json.Marshal(pushPayload{
		OwnerID:  n.OwnerID,
		Title:    n.Title,
		Body:     n.Message,
		Priority: n.Priority,
		Type:     n.Type,
		SparkID:  n.SparkID,
	})
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.secret != "" {
		req.Header.Set("Authorization", "Bearer "+p.secret)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
