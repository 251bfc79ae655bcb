package storage

// History is a bounded FIFO of values. Appending beyond capacity evicts the
// oldest value first.
//
// History is not safe for concurrent use on its own; SnapshotStore guards
// every History it owns with its mutex.
type History[T any] struct {
	items    []T
	capacity int
}

// NewHistory creates an empty History holding at most capacity values.
// A capacity below one is raised to one.
//
// Example:
//
//	h := NewHistory[int](3)
//	for i := 1; i <= 5; i++ {
//	    h.Append(i)
//	}
//	h.Items() // [3 4 5]
func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{capacity: capacity, items: make([]T, 0, capacity)}
}

// Append adds v as the newest value, evicting the oldest when full.
func (h *History[T]) Append(v T) {
	if len(h.items) == h.capacity {
		copy(h.items, h.items[1:])
		h.items = h.items[:h.capacity-1]
	}
	h.items = append(h.items, v)
}

// Items returns a copy of the values, oldest first.
func (h *History[T]) Items() []T {
	return h.Last(0)
}

// Last returns a copy of the newest n values, oldest first. n <= 0 or
// n >= Len returns everything.
func (h *History[T]) Last(n int) []T {
	start := 0
	if n > 0 && n < len(h.items) {
		start = len(h.items) - n
	}
	out := make([]T, len(h.items)-start)
	copy(out, h.items[start:])
	return out
}

// Latest returns the newest value.
func (h *History[T]) Latest() (T, bool) {
	if len(h.items) == 0 {
		var zero T
		return zero, false
	}
	return h.items[len(h.items)-1], true
}

// ReplaceLatest overwrites the newest value. It reports false when the
// history is empty.
func (h *History[T]) ReplaceLatest(v T) bool {
	if len(h.items) == 0 {
		return false
	}
	h.items[len(h.items)-1] = v
	return true
}

// Len returns the number of stored values.
func (h *History[T]) Len() int {
	return len(h.items)
}

// Cap returns the capacity.
func (h *History[T]) Cap() int {
	return h.capacity
}
