// Package event provides the subscribe/unsubscribe contract shared by media handles
// and the visibility monitor.
package event

import (
	"slices"
	"sync"
)

// Bus fans values out to subscribers. Subscribers run synchronously, in
// registration order, on the goroutine calling Emit.
type Bus[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a function removing it. The returned
// function is safe to call more than once.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscriber[T]{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = slices.DeleteFunc(b.subs, func(s subscriber[T]) bool { return s.id == id })
}

// Emit delivers v to a snapshot of the current subscribers
func (b *Bus[T]) Emit(v T) {
	b.mu.Lock()
	subs := slices.Clone(b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of live subscriptions
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
