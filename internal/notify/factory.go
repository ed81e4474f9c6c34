package notify

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/config"
)

// FromConfig assembles the composite transport from configured channels.
// With nothing configured the composite fails every send, which surfaces as
// dead-lettered jobs and an operator alert rather than silent success.
func FromConfig(cfg config.NotifyConfig, timeout time.Duration) *Composite {
	var transports []Transport
	if cfg.SMTPHost != "" && cfg.EmailFrom != "" && cfg.EmailTo != "" {
		transports = append(transports, NewEmailTransport(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom, cfg.EmailTo))
	}
	if cfg.WebhookURL != "" {
		transports = append(transports, NewWebhookTransport(cfg.WebhookURL, timeout))
	}
	return NewComposite(transports...)
}
