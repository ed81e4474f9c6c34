package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// Message is a rendered escalation notification.
type Message struct {
	Kind    domain.EscalationKind
	IssueID string
	OrgID   string
	Subject string
	Body    string
}

// TransportError wraps delivery failures so callers can distinguish them
// from programming errors; transport errors are retried with backoff.
type TransportError struct {
	Channel string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is a delivery failure.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Transport delivers an escalation message over one channel.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Composite fans a message out to every configured channel and fails when
// any of them fails, so the dispatcher's retry covers partial delivery.
type Composite struct {
	transports []Transport
}

// NewComposite builds a transport over the given channels.
func NewComposite(transports ...Transport) *Composite {
	return &Composite{transports: transports}
}

// Send delivers over all channels.
func (c *Composite) Send(ctx context.Context, msg Message) error {
	if len(c.transports) == 0 {
		return &TransportError{Channel: "none", Err: errors.New("no notification channel configured")}
	}
	var errs []error
	for _, t := range c.transports {
		if err := t.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
