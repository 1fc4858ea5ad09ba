package bus

import "time"

// EventBus is an in-process pub/sub bus with two delivery modes:
//
//   - Emit: synchronous, immediate dispatch to every current subscriber of
//     the event's type, in subscription order. Handler failures (error or
//     panic) are forwarded to the error sink and never interrupt dispatch.
//   - Queue + ProcessQueue: deferred FIFO delivery. ProcessQueue drains a
//     fixed-length snapshot of the queue, so events queued by handlers during
//     processing wait for the next pass.
//
// The bus is safe for concurrent use, but the runtime drives it from a single
// logical thread per world; Emit may be called from inside a handler, causing
// nested dispatch on the same call stack.
type EventBus interface {
	// Subscribe registers a handler for eventType and returns a cancellation
	// handle. Duplicate subscriptions of the same handler are all kept.
	Subscribe(eventType string, handler EventHandler) Subscription
	// Unsubscribe cancels the given subscription and reports whether it was
	// still registered. Safe to call with nil.
	Unsubscribe(sub Subscription) bool

	// Emit dispatches the event synchronously to all current subscribers of
	// event.Type(), in subscription order.
	Emit(event Event)
	// Queue appends the event to the deferred queue without dispatching.
	Queue(event Event)
	// ProcessQueue dispatches every currently queued event in FIFO order with
	// Emit semantics, then removes them. Events queued during processing are
	// not delivered in the same pass. Returns the number of events dispatched.
	ProcessQueue() int

	QueueSize() int
	ListenerCount(eventType string) int
	// Clear drops all subscribers and queued events.
	Clear()
}

// Event is an immutable message transported by the bus. Implementations
// should treat Event values as read-only.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler is a user callback invoked per delivered event. A returned
// error is reported to the bus error sink; it does not stop dispatch.
type EventHandler func(event Event) error

// Subscription represents a registered handler bound to an event type.
type Subscription interface {
	// ID is a unique identifier for this subscription.
	ID() string
	// EventType returns the event type this subscription listens to.
	EventType() string
	// IsActive reports whether this subscription is still registered.
	IsActive() bool
}

// ErrorSink receives handler failures during dispatch. The default sink logs
// them; tests swap in their own to observe isolation behavior.
type ErrorSink func(eventType string, subscriptionID string, err error)
