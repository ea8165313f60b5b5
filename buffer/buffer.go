// Package buffer provides the size-capped holding area for events that have not been
// sent yet.
package buffer

import (
	"github.com/thapovan-inc/orion-llmobs-relay/event"
	"sync"
)

const DefaultCapacity = 1000

// Bounded is an ordered sequence of events that never grows past its capacity.
// Enqueue on a full buffer drops the event instead of waiting for room.
type Bounded struct {
	mu       sync.Mutex
	events   []event.Event
	capacity int
}

func New(capacity int) *Bounded {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bounded{capacity: capacity}
}

// Enqueue appends ev and reports whether it was accepted. A false return means the
// buffer was at capacity and ev was dropped.
func (b *Bounded) Enqueue(ev event.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) >= b.capacity {
		return false
	}
	b.events = append(b.events, ev)
	return true
}

// DetachAll swaps the contents for an empty sequence and returns what was there.
// A nil result means there is nothing to send.
func (b *Bounded) DetachAll() []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	events := b.events
	b.events = nil
	return events
}

func (b *Bounded) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func (b *Bounded) Capacity() int {
	return b.capacity
}

// Full reports whether the next Enqueue would be dropped.
func (b *Bounded) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events) >= b.capacity
}
