// Package capture records what a suite's servers and browser page print so
// that assertions can inspect it.
package capture

import "sync"

// Buffer is an ordered, append-only sequence safe for concurrent use.
// Browser events are delivered on the driver's goroutine while the test
// reads from its own, hence the lock.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewBuffer creates an empty Buffer.
func NewBuffer[T any]() *Buffer[T] {
	return &Buffer[T]{}
}

// Append adds v to the end of the buffer.
func (b *Buffer[T]) Append(v T) {
	b.mu.Lock()
	b.items = append(b.items, v)
	b.mu.Unlock()
}

// Items returns a copy of the buffered values in append order.
func (b *Buffer[T]) Items() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out
}

// Len returns the number of buffered values.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Reset empties the buffer.
func (b *Buffer[T]) Reset() {
	b.mu.Lock()
	b.items = nil
	b.mu.Unlock()
}
