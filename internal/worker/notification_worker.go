package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
)

// AsyncDispatcher delivers events on the worker pool so notification handlers
// (database writes, SMTP) never run on the request path.
type AsyncDispatcher struct {
	inner  events.Dispatcher
	pool   *Pool
	logger *zap.Logger
}

var _ events.Dispatcher = (*AsyncDispatcher)(nil)

// NewAsyncDispatcher wraps inner. Subscriptions go straight to inner.
func NewAsyncDispatcher(inner events.Dispatcher, pool *Pool, logger *zap.Logger) *AsyncDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncDispatcher{inner: inner, pool: pool, logger: logger}
}

// Publish enqueues delivery. When the pool refuses the task the event is
// delivered synchronously instead of being lost.
func (d *AsyncDispatcher) Publish(ctx context.Context, event events.Event) error {
	detached := context.WithoutCancel(ctx)
	err := d.pool.Enqueue(Task{
		Name: "event." + string(event.Type),
		Run: func(runCtx context.Context) error {
			return d.inner.Publish(runCtx, event)
		},
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrPoolStopped) {
		d.logger.Warn("delivering event synchronously",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return d.inner.Publish(detached, event)
	}
	return err
}

// Subscribe registers handler on the wrapped dispatcher.
func (d *AsyncDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {
	d.inner.Subscribe(eventType, handler)
}
