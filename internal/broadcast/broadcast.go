// Package broadcast fans progress events out to live subscribers.
//
// Delivery is synchronous and in registration order. With no subscribers an event is dropped;
// nothing is buffered or replayed for late subscribers.
package broadcast

import (
	"sync"

	"github.com/desertthunder/tapedeck/internal/models"
)

// Listener receives one event. It runs on the publisher's goroutine and must not block for long.
type Listener func(models.ProgressEvent)

// Subscription is the handle returned by [Broadcaster.Subscribe].
type Subscription struct {
	id   uint64
	b    *Broadcaster
	once sync.Once
}

// Close removes the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.b.Unsubscribe(s) })
}

type entry struct {
	id uint64
	fn Listener
}

// Broadcaster is a process-wide publish/subscribe point for [models.ProgressEvent].
type Broadcaster struct {
	mu        sync.RWMutex
	next      uint64
	listeners []entry
}

// New creates an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe registers fn and returns its handle.
func (b *Broadcaster) Subscribe(fn Listener) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	b.listeners = append(b.listeners, entry{id: b.next, fn: fn})
	return &Subscription{id: b.next, b: b}
}

// Unsubscribe deregisters sub. Unknown handles are ignored.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, e := range b.listeners {
		if e.id == sub.id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Publish delivers event to every listener registered at the time of the call.
//
// Listeners are snapshotted before delivery, so a listener may subscribe or unsubscribe without deadlocking.
func (b *Broadcaster) Publish(event models.ProgressEvent) {
	b.mu.RLock()
	if len(b.listeners) == 0 {
		b.mu.RUnlock()
		return
	}
	snapshot := make([]entry, len(b.listeners))
	copy(snapshot, b.listeners)
	b.mu.RUnlock()

	for _, e := range snapshot {
		e.fn(event)
	}
}

// Len returns the number of registered listeners.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Channel subscribes a listener that forwards events into a buffered channel.
//
// Sends never block: when the buffer is full the event is dropped for this subscriber only.
// The channel is not closed by Close; consumers should stop reading after closing the subscription.
func (b *Broadcaster) Channel(buffer int) (<-chan models.ProgressEvent, *Subscription) {
	ch := make(chan models.ProgressEvent, buffer)
	sub := b.Subscribe(func(ev models.ProgressEvent) {
		select {
		case ch <- ev:
		default:
		}
	})
	return ch, sub
}
