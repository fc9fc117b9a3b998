package lifecycle

import "sync"

// Broadcast fans a value out to subscribers. It satisfies AppStateSource
// as Broadcast[AppState] and AuthSource as Broadcast[bool].
type Broadcast[T any] struct {
	mu   sync.RWMutex
	subs map[int]func(T)
	next int
}

func (b *Broadcast[T]) Subscribe(fn func(T)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(T))
	}
	id := b.next
	b.next++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish calls every subscriber with v on the caller's goroutine
func (b *Broadcast[T]) Publish(v T) {
	b.mu.RLock()
	fns := make([]func(T), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Subscribers returns the number of active subscriptions
func (b *Broadcast[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
