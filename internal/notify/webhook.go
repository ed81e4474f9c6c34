package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebhookTransport posts escalation messages to an HTTP endpoint as JSON.
type WebhookTransport struct {
	client *resty.Client
	url    string
}

// NewWebhookTransport builds the webhook channel. Retries are left to the
// dispatcher, which owns the backoff schedule.
func NewWebhookTransport(url string, timeout time.Duration) *WebhookTransport {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)
	return &WebhookTransport{client: client, url: url}
}

// Send posts one message.
func (t *WebhookTransport) Send(ctx context.Context, msg Message) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"kind":     string(msg.Kind),
			"issue_id": msg.IssueID,
			"org_id":   msg.OrgID,
			"subject":  msg.Subject,
			"body":     msg.Body,
		}).
		Post(t.url)
	if err != nil {
		return &TransportError{Channel: "webhook", Err: err}
	}
	if resp.IsError() {
		return &TransportError{Channel: "webhook", Err: fmt.Errorf("endpoint returned %d", resp.StatusCode())}
	}
	return nil
}
