package alert

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// LogHandler writes alerts to the structured log. Always subscribed; it is
// the minimum operator-visible channel.
func LogHandler(logger *zap.Logger) Handler {
	return func(_ context.Context, a Alert) {
		logger.Warn("operator alert",
			zap.String("kind", string(a.Kind)),
			zap.String("message", a.Message),
			zap.String("issue_id", a.IssueID),
			zap.String("job_id", a.JobID))
	}
}

// WebhookHandler posts alerts to an operator webhook. Delivery is best
// effort: failures are logged and swallowed.
func WebhookHandler(url string, logger *zap.Logger) Handler {
	client := resty.New().SetTimeout(5 * time.Second)
	return func(ctx context.Context, a Alert) {
		resp, err := client.R().
			SetContext(ctx).
			SetBody(map[string]string{
				"kind":      string(a.Kind),
				"message":   a.Message,
				"issue_id":  a.IssueID,
				"job_id":    a.JobID,
				"raised_at": a.RaisedAt.Format(time.RFC3339),
			}).
			Post(url)
		if err != nil {
			logger.Warn("alert webhook failed", zap.Error(err))
			return
		}
		if resp.IsError() {
			logger.Warn("alert webhook rejected", zap.Int("status", resp.StatusCode()))
		}
	}
}
