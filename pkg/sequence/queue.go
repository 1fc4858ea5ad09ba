package sequence

// Queue is a generic FIFO queue. It is not safe for concurrent use;
// callers own the locking policy.
type Queue[T any] struct {
	items []T
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (q *Queue[T]) Enqueue(value T) {
	q.items = append(q.items, value)
}

func (q *Queue[T]) Dequeue() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	value := q.items[0]
	q.items[0] = *new(T) // avoid memory leak
	q.items = q.items[1:]
	return value, true
}

func (q *Queue[T]) Peek() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.items[0], true
}

// DrainN removes and returns up to n elements from the front of the queue.
// Draining a fixed count lets callers process a snapshot of the queue while
// new elements continue to arrive behind it.
func (q *Queue[T]) DrainN(n int) []T {
	if n > len(q.items) {
		n = len(q.items)
	}
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	copy(out, q.items[:n])
	for i := 0; i < n; i++ {
		q.items[i] = *new(T)
	}
	q.items = q.items[n:]
	return out
}

func (q *Queue[T]) Len() int {
	return len(q.items)
}

func (q *Queue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

func (q *Queue[T]) Clear() {
	q.items = nil
}
