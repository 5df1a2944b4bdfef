package bus

import (
	"strings"
	"sync"
	"time"
)

// Bus is an in-process publish/subscribe event bus with prefix filtering.
// Publishing never blocks: a subscriber whose buffer is full misses the
// event, so consumers that must not miss anything size their buffers
// accordingly or re-read the store.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*Subscription
	next int
}

// Subscription is a handle to a bus subscription. Events arrive on C.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	prefix string
	close  func()
}

// Close removes the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.close()
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*Subscription)}
}

// Publish delivers evt to every subscriber whose prefix matches evt.Kind.
// A zero Timestamp is stamped with the current time.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.prefix) {
			select {
			case sub.ch <- evt:
			default:
				// Subscriber full; drop rather than block the publisher.
			}
		}
	}
}

// Subscribe registers interest in all event kinds starting with prefix.
// An empty prefix matches every event.
func (b *Bus) Subscribe(prefix string, bufSize int) *Subscription {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	sub := &Subscription{C: ch, ch: ch, prefix: prefix}
	var once sync.Once
	sub.close = func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
	b.subs[id] = sub
	b.mu.Unlock()
	return sub
}
