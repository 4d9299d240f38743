package collections

const defaultQueueCapacity = 8

// OrderedQueue is a FIFO backed by a circular slice. Enqueue and Dequeue are
// amortised O(1); the backing slice doubles when full.
type OrderedQueue[T any] struct {
	items []T
	front int
	rear  int
	count int
}

// NewOrderedQueue creates an empty queue with the given initial capacity.
func NewOrderedQueue[T any](capacity int) *OrderedQueue[T] {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &OrderedQueue[T]{items: make([]T, capacity)}
}

// Enqueue appends item at the rear.
func (q *OrderedQueue[T]) Enqueue(item T) {
	if q.count == len(q.items) {
		q.grow()
	}
	q.items[q.rear] = item
	q.rear = (q.rear + 1) % len(q.items)
	q.count++
}

// Dequeue removes and returns the oldest item. The boolean is false when the
// queue is empty.
func (q *OrderedQueue[T]) Dequeue() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}
	item := q.items[q.front]
	q.items[q.front] = zero
	q.front = (q.front + 1) % len(q.items)
	q.count--
	return item, true
}

// Peek returns the oldest item without removing it.
func (q *OrderedQueue[T]) Peek() (T, bool) {
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.items[q.front], true
}

// IsEmpty reports whether the queue holds no items.
func (q *OrderedQueue[T]) IsEmpty() bool { return q.count == 0 }

// Size returns the number of queued items.
func (q *OrderedQueue[T]) Size() int { return q.count }

// Drain dequeues every item in FIFO order.
func (q *OrderedQueue[T]) Drain() []T {
	out := make([]T, 0, q.count)
	for !q.IsEmpty() {
		item, _ := q.Dequeue()
		out = append(out, item)
	}
	return out
}

func (q *OrderedQueue[T]) grow() {
	next := make([]T, len(q.items)*2)
	for i := 0; i < q.count; i++ {
		next[i] = q.items[(q.front+i)%len(q.items)]
	}
	q.items = next
	q.front = 0
	q.rear = q.count
}
