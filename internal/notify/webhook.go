package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/carecall/carecall/internal/models"
	"github.com/go-resty/resty/v2"
)

// WebhookEnvelope is the JSON body posted to the webhook.
type WebhookEnvelope struct {
	Topic   string                     `json:"topic"`
	Message models.NotificationMessage `json:"message"`
}

// WebhookPublisher posts every message to one HTTP endpoint, the way a
// topic fan-out service would deliver to a subscriber.
type WebhookPublisher struct {
	client *resty.Client
	url    string
}

// NewWebhookPublisher creates a publisher posting to url.
func NewWebhookPublisher(url string) *WebhookPublisher {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &WebhookPublisher{client: client, url: url}
}

func (p *WebhookPublisher) Name() string { return "webhook" }

func (p *WebhookPublisher) Publish(ctx context.Context, topic string, msg models.NotificationMessage) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("X-Notification-Topic", topic).
		SetHeader("X-Notification-Type", string(msg.Type)).
		SetBody(WebhookEnvelope{Topic: topic, Message: msg}).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %d", resp.StatusCode())
	}
	return nil
}
