package domain

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"formbridge.dev/formbridge/internal/pkg/logger"
)

// EventHandler processes one fanned-out intake event. Returning an error
// only gets logged — it never rolls back the triple-write or blocks sibling
// handlers, keeping fan-out isolated per handler.
type EventHandler func(ctx context.Context, event *IntakeEvent) error

// EventDispatcher is the "live fan-out" leg of the triple-write discipline:
// it runs independently of the durable event-store write, which remains
// the source of truth.
type EventDispatcher struct {
	handlers map[EventType][]EventHandler
	mu sync.RWMutex
}

// NewEventDispatcher creates an empty EventDispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{handlers: make(map[EventType][]EventHandler)}
}

// Register adds a handler for a specific event type.
func (d *EventDispatcher) Register(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Dispatch fans an event out to all handlers registered for its type. All
// handlers run sequentially; a failing handler is logged and isolated —
// remaining handlers still run, and the first error is returned to the
// caller only for observability, never to trigger a rollback.
func (d *EventDispatcher) Dispatch(ctx context.Context, event *IntakeEvent) error {
	d.mu.RLock()
	handlers := d.handlers[event.Type]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("handler for %s failed: %w", event.Type, err)
			}
		}
	}
	return firstErr
}
