package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// EventHandler reacts to one published event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans domain events out to subscribers.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// registry delivers events in-process, in subscription order.
type registry struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
	logger   *zap.Logger
}

// NewInMemoryDispatcher returns a synchronous dispatcher. A failing or panicking
// handler is logged and never affects the publisher or the remaining handlers.
func NewInMemoryDispatcher(logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registry{
		handlers: make(map[EventType][]EventHandler),
		logger:   logger.Named("events"),
	}
}

func (r *registry) Publish(ctx context.Context, event Event) error {
	r.mu.RLock()
	handlers := r.handlers[event.Type]
	r.mu.RUnlock()

	for i, handler := range handlers {
		if err := r.deliver(ctx, handler, event); err != nil {
			r.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID),
				zap.String("tenant_id", event.TenantID),
				zap.String("subject_id", event.SubjectID),
				zap.Int("handler", i),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (r *registry) deliver(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return handler(ctx, event)
}

// Subscribe appends handler to the event type's list. The slice is copied so
// concurrent publishers keep iterating the list they started with.
func (r *registry) Subscribe(eventType EventType, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.handlers[eventType]
	next := make([]EventHandler, len(current), len(current)+1)
	copy(next, current)
	r.handlers[eventType] = append(next, handler)
}
