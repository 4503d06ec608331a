package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned when publishing to a bus whose consumer has stopped.
var ErrClosed = errors.New("bus closed")

// EventHandler consumes one event. It runs on the consumer goroutine.
type EventHandler func(ctx context.Context, ev Event)

// AlertHandler is a callback for user-facing alerts.
type AlertHandler func(ctx context.Context, a Alert) error

// EventBus decouples the session transport from state mutation using Go
// channels. Events have exactly one consumer; alerts fan out to subscribers.
type EventBus struct {
	Events chan Event
	Alerts chan Alert

	done     chan struct{}
	doneOnce sync.Once

	mu          sync.RWMutex
	subscribers []AlertHandler
}

// NewEventBus creates a new event bus with buffered channels.
func NewEventBus() *EventBus {
	return &EventBus{
		Events: make(chan Event, 256),
		Alerts: make(chan Alert, 16),
		done:   make(chan struct{}),
	}
}

// Publish enqueues an event for the consumer. It blocks while the queue is
// full and gives up when ctx ends or the consumer has stopped.
func (b *EventBus) Publish(ctx context.Context, ev Event) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	select {
	case b.Events <- ev:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes events one at a time until ctx is cancelled. Only one Run
// may be active per bus.
func (b *EventBus) Run(ctx context.Context, handle EventHandler) {
	defer b.doneOnce.Do(func() { close(b.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.Events:
			handle(ctx, ev)
		}
	}
}

// Done is closed once the consumer has stopped.
func (b *EventBus) Done() <-chan struct{} {
	return b.done
}

// PublishAlert sends an alert to subscribers. Alerts are dropped with a
// warning when nobody drains the queue.
func (b *EventBus) PublishAlert(a Alert) {
	select {
	case b.Alerts <- a:
	default:
		slog.Warn("alert queue full, dropping alert", "kind", a.Kind, "title", a.Title)
	}
}

// SubscribeAlerts registers a handler for alerts.
func (b *EventBus) SubscribeAlerts(handler AlertHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, handler)
}

// DispatchAlerts reads from the alert queue and dispatches to subscribers.
// Blocks until ctx is cancelled.
func (b *EventBus) DispatchAlerts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-b.Alerts:
			b.mu.RLock()
			handlers := append([]AlertHandler(nil), b.subscribers...)
			b.mu.RUnlock()
			if len(handlers) == 0 {
				// Nobody is watching the terminal; the log is the only place left.
				slog.Error("unhandled alert", "kind", a.Kind, "title", a.Title, "content", a.Description)
				continue
			}
			for _, h := range handlers {
				if err := h(ctx, a); err != nil {
					slog.Warn("dispatch alert failed", "kind", a.Kind, "err", err)
				}
			}
		}
	}
}
