package ring

// Buffer is a bounded double-ended queue backed by a ring of fixed capacity.
// Pushing into a full buffer evicts from the opposite end, so the buffer
// always keeps the most recently pushed items.
//
// Buffer is not safe for concurrent use.
type Buffer[T any] struct {
	items []T
	head  int
	size  int
}

func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

func (b *Buffer[T]) Len() int {
	return b.size
}

func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

func (b *Buffer[T]) index(i int) int {
	return (b.head + i) % len(b.items)
}

// PushBack appends v, evicting the front item if the buffer is full.
// It returns the evicted item and true when an eviction happened.
func (b *Buffer[T]) PushBack(v T) (T, bool) {
	var evicted T
	dropped := false
	if b.size == len(b.items) {
		evicted, dropped = b.PopFront()
	}
	b.items[b.index(b.size)] = v
	b.size++
	return evicted, dropped
}

// PushFront prepends v, evicting the back item if the buffer is full.
func (b *Buffer[T]) PushFront(v T) (T, bool) {
	var evicted T
	dropped := false
	if b.size == len(b.items) {
		evicted, dropped = b.PopBack()
	}
	b.head = (b.head - 1 + len(b.items)) % len(b.items)
	b.items[b.head] = v
	b.size++
	return evicted, dropped
}

func (b *Buffer[T]) PopFront() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	v := b.items[b.head]
	b.items[b.head] = zero
	b.head = b.index(1)
	b.size--
	return v, true
}

func (b *Buffer[T]) PopBack() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	i := b.index(b.size - 1)
	v := b.items[i]
	b.items[i] = zero
	b.size--
	return v, true
}

func (b *Buffer[T]) Front() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.items[b.head], true
}

func (b *Buffer[T]) Back() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.items[b.index(b.size-1)], true
}

// Items returns the buffered items from front to back.
func (b *Buffer[T]) Items() []T {
	result := make([]T, b.size)
	for i := range b.size {
		result[i] = b.items[b.index(i)]
	}
	return result
}

func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}
