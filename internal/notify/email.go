package notify

import (
	"context"

	"gopkg.in/gomail.v2"
)

// EmailTransport delivers escalation messages over SMTP.
type EmailTransport struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

// NewEmailTransport builds the SMTP channel.
func NewEmailTransport(host string, port int, user, pass, from, to string) *EmailTransport {
	return &EmailTransport{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
		to:     to,
	}
}

// Send delivers one message. gomail dials per send; the dispatcher bounds the
// call with its transport timeout context.
func (t *EmailTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Channel: "email", Err: err}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", t.to)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	done := make(chan error, 1)
	go func() { done <- t.dialer.DialAndSend(m) }()

	select {
	case <-ctx.Done():
		return &TransportError{Channel: "email", Err: ctx.Err()}
	case err := <-done:
		if err != nil {
			return &TransportError{Channel: "email", Err: err}
		}
		return nil
	}
}
