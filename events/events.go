// Package events fans security events out to interested consumers. The
// auditor publishes through a Sink; what sits behind it (an in-process
// dispatcher, a broker, or both) is a wiring decision.
package events

import (
	"context"
	"sync"

	"github.com/nebulium/authcore/logging/logger"
	"github.com/nebulium/authcore/structs"
)

// Sink accepts published security events.
type Sink interface {
	Publish(ctx context.Context, event *structs.SecurityEvent) error
}

// Handler consumes a published event.
type Handler func(ctx context.Context, event *structs.SecurityEvent)

// Dispatcher is an in-process Sink delivering events to subscribed
// handlers synchronously, in subscription order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers a handler for all subsequent events.
func (d *Dispatcher) Subscribe(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

func (d *Dispatcher) Publish(ctx context.Context, event *structs.SecurityEvent) error {
	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, event)
	}
	return nil
}

// Multi fans a publish out to several sinks. A failing sink is logged and
// does not stop delivery to the rest.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, event *structs.SecurityEvent) error {
	for _, sink := range m {
		if err := sink.Publish(ctx, event); err != nil {
			logger.Warn(ctx, "event sink publish failed", "type", event.Type, "error", err)
		}
	}
	return nil
}
