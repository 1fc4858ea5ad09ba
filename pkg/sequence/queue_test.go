package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)

	v, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.Peek()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, q.Len())
}

func TestQueueEmpty(t *testing.T) {
	q := NewQueue[string]()
	assert.True(t, q.IsEmpty())

	_, ok := q.Dequeue()
	assert.False(t, ok)
	_, ok = q.Peek()
	assert.False(t, ok)
}

func TestQueueDrainN(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		q.Enqueue(i)
	}

	drained := q.DrainN(3)
	assert.Equal(t, []int{0, 1, 2}, drained)
	assert.Equal(t, 2, q.Len())

	// Asking for more than is queued drains what there is.
	drained = q.DrainN(10)
	assert.Equal(t, []int{3, 4}, drained)
	assert.True(t, q.IsEmpty())

	assert.Nil(t, q.DrainN(0))
}

func TestQueueClear(t *testing.T) {
	q := NewQueue[int]()
	q.Enqueue(1)
	q.Enqueue(2)
	q.Clear()
	assert.True(t, q.IsEmpty())
	assert.Equal(t, 0, q.Len())
}
