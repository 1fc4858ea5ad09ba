package bus

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/pkg/sequence"
)

// simpleEvent is a basic implementation of Event.
// It can be used by callers who don't have their own Event types.
type simpleEvent struct {
	typeStr string
	source  string
	ts      time.Time
	data    any
}

func (e simpleEvent) Type() string         { return e.typeStr }
func (e simpleEvent) Source() string       { return e.source }
func (e simpleEvent) Timestamp() time.Time { return e.ts }
func (e simpleEvent) Data() any            { return e.data }

// NewEvent creates a simple Event implementation.
func NewEvent(typ, src string, data any) Event {
	return simpleEvent{typeStr: typ, source: src, ts: time.Now(), data: data}
}

// subscription implements Subscription.
type subscription struct {
	id        string
	eventType string
	handler   EventHandler
	active    bool
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) IsActive() bool    { return s.active }

// inMemoryBus implements EventBus. Subscribers are kept in slices so
// notification order is insertion order; the deferred queue is a plain FIFO.
type inMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]*subscription
	queue    *sequence.Queue[Event]
	sink     ErrorSink
}

// Option configures a bus at construction time.
type Option func(*inMemoryBus)

// WithErrorSink replaces the default logging sink for handler failures.
func WithErrorSink(sink ErrorSink) Option {
	return func(b *inMemoryBus) {
		if sink != nil {
			b.sink = sink
		}
	}
}

// WithLogger routes handler failures to the given logger.
func WithLogger(l log.Log) Option {
	return WithErrorSink(func(eventType, subID string, err error) {
		l.Error("event handler failed",
			log.String("event_type", eventType),
			log.String("subscription", subID),
			log.Error(err),
		)
	})
}

// New creates a new EventBus instance.
func New(opts ...Option) EventBus {
	b := &inMemoryBus{
		handlers: make(map[string][]*subscription),
		queue:    sequence.NewQueue[Event](),
	}
	b.sink = func(eventType, subID string, err error) {
		log.Provide().Error("event handler failed",
			log.String("event_type", eventType),
			log.String("subscription", subID),
			log.Error(err),
		)
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *inMemoryBus) Subscribe(eventType string, handler EventHandler) Subscription {
	s := &subscription{id: uuid.NewString(), eventType: eventType, handler: handler, active: true}
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], s)
	b.mu.Unlock()
	return s
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) bool {
	if sub == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[sub.EventType()]
	for i, s := range subs {
		if s.id == sub.ID() {
			s.active = false
			b.handlers[sub.EventType()] = append(subs[:i:i], subs[i+1:]...)
			if len(b.handlers[sub.EventType()]) == 0 {
				delete(b.handlers, sub.EventType())
			}
			return true
		}
	}
	return false
}

func (b *inMemoryBus) Emit(event Event) {
	b.dispatch(event)
}

func (b *inMemoryBus) Queue(event Event) {
	b.mu.Lock()
	b.queue.Enqueue(event)
	b.mu.Unlock()
}

func (b *inMemoryBus) ProcessQueue() int {
	// Snapshot the current queue length so events queued by handlers during
	// this pass stay pending until the next one.
	b.mu.Lock()
	pending := b.queue.DrainN(b.queue.Len())
	b.mu.Unlock()

	for _, event := range pending {
		b.dispatch(event)
	}
	return len(pending)
}

func (b *inMemoryBus) QueueSize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.queue.Len()
}

func (b *inMemoryBus) ListenerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

func (b *inMemoryBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.handlers {
		for _, s := range subs {
			s.active = false
		}
	}
	b.handlers = make(map[string][]*subscription)
	b.queue.Clear()
}

// dispatch delivers one event to a snapshot of the current subscriber list.
// Handlers subscribed during dispatch see only later events.
func (b *inMemoryBus) dispatch(event Event) {
	etype := event.Type()
	b.mu.RLock()
	var subs []*subscription
	if registered := b.handlers[etype]; len(registered) > 0 {
		subs = make([]*subscription, len(registered))
		copy(subs, registered)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.active {
			continue
		}
		b.invoke(etype, s, event)
	}
}

// invoke runs one handler with isolation: a failing or panicking handler is
// reported to the sink and the remaining handlers still run.
func (b *inMemoryBus) invoke(etype string, s *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.sink(etype, s.id, fmt.Errorf("handler panic: %v", r))
		}
	}()
	if err := s.handler(event); err != nil {
		b.sink(etype, s.id, err)
	}
}
