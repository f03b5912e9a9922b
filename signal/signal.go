// Package signal provides a small watched-value primitive: a single
// current value plus fan-out to any number of subscribers, with
// last-write-wins semantics. Subscribers that fall behind see only the
// most recent value; nothing is ever queued.
package signal

import "sync"

type Value[T any] struct {
	mu   sync.Mutex
	cur  T
	subs map[int]chan T
	next int
}

func New[T any](initial T) *Value[T] {
	return &Value[T]{
		cur:  initial,
		subs: make(map[int]chan T),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Set publishes a new value. Subscriber mailboxes hold a single slot;
// an unconsumed previous value is overwritten.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cur = val
	for _, ch := range v.subs {
		select {
		case ch <- val:
		default:
			// slot full; drop the stale value and retry once
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- val:
			default:
			}
		}
	}
}

// Watch registers a subscriber. The returned channel carries each published
// value (latest only); the cancel func removes the subscription and closes
// the channel.
func (v *Value[T]) Watch() (<-chan T, func()) {
	v.mu.Lock()
	id := v.next
	v.next++
	ch := make(chan T, 1)
	v.subs[id] = ch
	v.mu.Unlock()

	cancel := func() {
		v.mu.Lock()
		if _, ok := v.subs[id]; ok {
			delete(v.subs, id)
			close(ch)
		}
		v.mu.Unlock()
	}
	return ch, cancel
}
