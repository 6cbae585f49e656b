// Package ringbuf implements a fixed-capacity ring that overwrites its
// oldest element on push, used to retain bounded history (e.g. recent
// spread observations) without unbounded growth.
package ringbuf

import "github.com/gammazero/deque"

// Buffer is a fixed-capacity ring of T. Len never exceeds Capacity; once
// Capacity pushes have happened, each further push evicts the oldest
// element.
type Buffer[T any] struct {
	capacity int
	items    deque.Deque[T]
}

// New constructs a Buffer with the given capacity. Capacity must be > 0.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &Buffer[T]{capacity: capacity}
}

// Push appends value, evicting the oldest element first if the buffer is
// already at capacity. O(1).
func (b *Buffer[T]) Push(value T) {
	if b.items.Len() == b.capacity {
		b.items.PopFront()
	}
	b.items.PushBack(value)
}

// Len returns the current number of retained elements.
func (b *Buffer[T]) Len() int {
	return b.items.Len()
}

// Capacity returns the fixed capacity this buffer was created with.
func (b *Buffer[T]) Capacity() int {
	return b.capacity
}

// OldestFirst returns a snapshot slice of at most Capacity elements,
// oldest first. Callers needing true laziness can index with At instead.
func (b *Buffer[T]) OldestFirst() []T {
	out := make([]T, b.items.Len())
	for i := 0; i < b.items.Len(); i++ {
		out[i] = b.items.At(i)
	}
	return out
}

// At returns the i-th oldest retained element.
func (b *Buffer[T]) At(i int) T {
	return b.items.At(i)
}
