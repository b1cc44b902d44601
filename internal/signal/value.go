// Package signal provides observable values that UI-facing code can read
// or subscribe to without touching component internals.
package signal

import "sync"

// Value holds the latest value of T. Subscribers receive changes on a
// buffered channel of size one; a slow subscriber only ever sees the most
// recent value.
type Value[T any] struct {
	mu     sync.Mutex
	cur    T
	nextID int
	subs   map[int]chan T
}

func New[T any](initial T) *Value[T] {
	return &Value[T]{cur: initial, subs: make(map[int]chan T)}
}

func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cur = val
	for _, ch := range v.subs {
		deliverLatest(ch, val)
	}
}

// Subscribe returns a channel primed with the current value and a cancel
// function that closes it.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextID
	v.nextID++
	ch := make(chan T, 1)
	ch <- v.cur
	v.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.subs, id)
			close(ch)
		})
	}
}

func deliverLatest[T any](ch chan T, val T) {
	select {
	case ch <- val:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- val:
	default:
	}
}
