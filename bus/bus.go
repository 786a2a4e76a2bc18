// Package bus implements the synchronous publish/subscribe dispatcher used
// for cross-agent notification. Agents never call each other directly; an
// action in one agent reaches the others only as a published event.
//
// Delivery is in-process, synchronous and at-most-once. Handlers for a type
// run in subscription order against a snapshot of the handler list, so
// publishing from inside a handler is safe. If agents are ever split across
// processes, delivery guarantees must be redesigned explicitly.
package bus

import (
	"fmt"
	"sync"
	"time"

	"github.com/opscrew/opscrew/core"
	"github.com/opscrew/opscrew/logging"
)

// DefaultLogCap bounds the recent-event log when no cap is configured.
const DefaultLogCap = 200

// Handler receives a published event. A returned error is logged and does
// not affect other handlers or the publisher.
type Handler func(eventType string, payload map[string]any) error

// Bus is the shared event dispatcher. The mutex guards the subscriber map
// and the event log for callers on different goroutines; dispatch itself
// happens outside the lock.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string][]Handler
	log         []core.Event
	cap         int
	logger      logging.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogCap overrides the recent-event log capacity.
func WithLogCap(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.cap = n
		}
	}
}

// WithLogger sets the bus logger.
func WithLogger(l logging.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates an event bus with a bounded recent-event log.
func New(opts ...Option) *Bus {
	b := &Bus{
		subscribers: map[string][]Handler{},
		cap:         DefaultLogCap,
		logger:      logging.NewDefaultLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for an event type. Multiple handlers per
// type are allowed and invoked in subscription order.
func (b *Bus) Subscribe(eventType string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], h)
}

// Publish appends the event to the recent-event log and synchronously
// invokes every subscribed handler. A handler error or panic is logged and
// never reaches the publisher or the remaining handlers.
func (b *Bus) Publish(eventType string, payload map[string]any, source string) {
	if payload == nil {
		payload = map[string]any{}
	}
	event := core.Event{
		Type:      eventType,
		Payload:   payload,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}

	b.mu.Lock()
	b.log = append(b.log, event)
	if len(b.log) > b.cap {
		b.log = b.log[len(b.log)-b.cap:]
	}
	handlers := make([]Handler, len(b.subscribers[eventType]))
	copy(handlers, b.subscribers[eventType])
	b.mu.Unlock()

	for _, h := range handlers {
		b.dispatch(eventType, payload, h)
	}
}

func (b *Bus) dispatch(eventType string, payload map[string]any, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event_type", eventType, "panic", fmt.Sprint(r))
		}
	}()
	if err := h(eventType, payload); err != nil {
		b.logger.Error("event handler failed", "event_type", eventType, "error", err)
	}
}

// Recent returns the last limit events, oldest first. A non-positive limit
// returns the whole retained log.
func (b *Bus) Recent(limit int) []core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > len(b.log) {
		limit = len(b.log)
	}
	out := make([]core.Event, limit)
	copy(out, b.log[len(b.log)-limit:])
	return out
}

// SubscriberCounts reports how many handlers each event type has.
func (b *Bus) SubscriberCounts() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.subscribers))
	for k, v := range b.subscribers {
		out[k] = len(v)
	}
	return out
}
