package bus

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Bus is an in-process publish/subscribe event bus with prefix filtering.
// Publish never blocks: events for a full subscriber are dropped and counted.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*Subscription
	next int
}

// Subscription receives the events whose kind starts with its prefix.
type Subscription struct {
	bus     *Bus
	id      int
	prefix  string
	ch      chan Event
	dropped atomic.Uint64
	once    sync.Once
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*Subscription),
	}
}

// Publish delivers evt to every matching subscriber and returns how many
// received it.
func (b *Bus) Publish(evt Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- evt:
			delivered++
		default:
			sub.dropped.Add(1)
		}
	}
	return delivered
}

// Subscribe registers a subscriber for kinds starting with prefix. An empty
// prefix matches everything.
func (b *Bus) Subscribe(prefix string, bufSize int) *Subscription {
	sub := &Subscription{bus: b, prefix: prefix, ch: make(chan Event, bufSize)}
	b.mu.Lock()
	sub.id = b.next
	b.next++
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Events returns the delivery channel.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were discarded because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
	})
}
