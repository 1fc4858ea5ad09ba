package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitDispatchesInSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	b.Subscribe("tick", func(e Event) error { order = append(order, 1); return nil })
	b.Subscribe("tick", func(e Event) error { order = append(order, 2); return nil })
	b.Subscribe("tick", func(e Event) error { order = append(order, 3); return nil })

	b.Emit(NewEvent("tick", "test", nil))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestDuplicateSubscriptionsBothKept(t *testing.T) {
	b := New()
	calls := 0
	handler := func(e Event) error { calls++; return nil }
	b.Subscribe("tick", handler)
	b.Subscribe("tick", handler)

	b.Emit(NewEvent("tick", "test", nil))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, b.ListenerCount("tick"))
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	sub := b.Subscribe("tick", func(e Event) error { calls++; return nil })

	assert.True(t, b.Unsubscribe(sub))
	assert.False(t, b.Unsubscribe(sub), "second unsubscribe should report nothing removed")
	assert.False(t, sub.IsActive())

	b.Emit(NewEvent("tick", "test", nil))
	assert.Zero(t, calls)
	assert.False(t, b.Unsubscribe(nil))
}

func TestHandlerErrorDoesNotBlockOthers(t *testing.T) {
	var sunk []error
	b := New(WithErrorSink(func(_, _ string, err error) { sunk = append(sunk, err) }))

	reached := false
	b.Subscribe("boom", func(e Event) error { return errors.New("bad handler") })
	b.Subscribe("boom", func(e Event) error { reached = true; return nil })

	b.Emit(NewEvent("boom", "test", nil))
	assert.True(t, reached, "second handler must run after first one fails")
	require.Len(t, sunk, 1)
	assert.EqualError(t, sunk[0], "bad handler")
}

func TestHandlerPanicIsIsolated(t *testing.T) {
	var sunk []error
	b := New(WithErrorSink(func(_, _ string, err error) { sunk = append(sunk, err) }))

	reached := false
	b.Subscribe("boom", func(e Event) error { panic("kaboom") })
	b.Subscribe("boom", func(e Event) error { reached = true; return nil })

	assert.NotPanics(t, func() { b.Emit(NewEvent("boom", "test", nil)) })
	assert.True(t, reached)
	require.Len(t, sunk, 1)
	assert.Contains(t, sunk[0].Error(), "kaboom")
}

func TestProcessQueueFIFOOrder(t *testing.T) {
	b := New()
	var seen []any
	b.Subscribe("ev", func(e Event) error { seen = append(seen, e.Data()); return nil })

	b.Queue(NewEvent("ev", "test", "e1"))
	b.Queue(NewEvent("ev", "test", "e2"))
	assert.Equal(t, 2, b.QueueSize())

	n := b.ProcessQueue()
	assert.Equal(t, 2, n)
	assert.Equal(t, []any{"e1", "e2"}, seen)
	assert.Zero(t, b.QueueSize())
}

func TestQueueDoesNotDispatch(t *testing.T) {
	b := New()
	calls := 0
	b.Subscribe("ev", func(e Event) error { calls++; return nil })
	b.Queue(NewEvent("ev", "test", nil))
	assert.Zero(t, calls)
	assert.Equal(t, 1, b.QueueSize())
}

func TestSelfQueuingHandlerDefersToNextPass(t *testing.T) {
	b := New()
	delivered := 0
	b.Subscribe("ev", func(e Event) error {
		delivered++
		if delivered == 1 {
			b.Queue(NewEvent("ev", "handler", "requeued"))
		}
		return nil
	})

	b.Queue(NewEvent("ev", "test", "initial"))
	assert.Equal(t, 1, b.ProcessQueue(), "first pass delivers only the initial event")
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, b.QueueSize(), "requeued event stays pending")

	assert.Equal(t, 1, b.ProcessQueue())
	assert.Equal(t, 2, delivered)
	assert.Zero(t, b.QueueSize())
}

func TestNestedEmitFromHandler(t *testing.T) {
	b := New()
	var order []string
	b.Subscribe("outer", func(e Event) error {
		order = append(order, "outer-start")
		b.Emit(NewEvent("inner", "handler", nil))
		order = append(order, "outer-end")
		return nil
	})
	b.Subscribe("inner", func(e Event) error {
		order = append(order, "inner")
		return nil
	})

	b.Emit(NewEvent("outer", "test", nil))
	assert.Equal(t, []string{"outer-start", "inner", "outer-end"}, order)
}

func TestClearDropsSubscribersAndQueue(t *testing.T) {
	b := New()
	sub := b.Subscribe("ev", func(e Event) error { return nil })
	b.Queue(NewEvent("ev", "test", nil))

	b.Clear()
	assert.Zero(t, b.QueueSize())
	assert.Zero(t, b.ListenerCount("ev"))
	assert.False(t, sub.IsActive())
}

func TestEmitWithNoSubscribers(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() { b.Emit(NewEvent("nobody", "test", nil)) })
}
