package alert

import (
	"context"
	"sync"
	"time"
)

// Kind classifies operator alerts.
type Kind string

const (
	KindSweepFailure Kind = "sweep_failure"
	KindDeadLetter   Kind = "dead_letter"
)

// Alert is an operator-facing event. End users never see these; they surface
// on the log stream and any subscribed webhook.
type Alert struct {
	Kind     Kind
	Message  string
	IssueID  string
	JobID    string
	RaisedAt time.Time
}

// Handler consumes a published alert. Handlers must not block for long; they
// run inline with the publisher.
type Handler func(context.Context, Alert)

// Bus fans alerts out to subscribed handlers. Publishing never fails into
// the caller: an alerting problem must not abort an escalation.
type Bus interface {
	Publish(ctx context.Context, a Alert)
	Subscribe(kind Kind, handler Handler)
}

type inMemoryBus struct {
	mu        sync.RWMutex
	listeners map[Kind][]Handler
}

// NewInMemoryBus creates a bus instance.
func NewInMemoryBus() Bus {
	return &inMemoryBus{listeners: make(map[Kind][]Handler)}
}

func (b *inMemoryBus) Publish(ctx context.Context, a Alert) {
	if a.RaisedAt.IsZero() {
		a.RaisedAt = time.Now().UTC()
	}
	b.mu.RLock()
	handlers := append([]Handler{}, b.listeners[a.Kind]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				// a panicking handler must not take down the publisher
				_ = recover()
			}()
			handler(ctx, a)
		}()
	}
}

func (b *inMemoryBus) Subscribe(kind Kind, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[kind] = append(b.listeners[kind], handler)
}
