package events

import (
	"sync"
	"sync/atomic"
)

// Subscription is a live attachment to one topic. Reads come from C;
// Close detaches from the bus and closes C. Close is idempotent.
type Subscription struct {
	C      <-chan any
	detach func()
	once   sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(s.detach)
}

// Bus fans events out to per-topic subscribers. Publish never blocks:
// a subscriber whose buffer is full misses the payload and the miss is
// counted, so a stalled websocket or notifier cannot stall the trade path.
type Bus struct {
	mu      sync.RWMutex
	nextID  uint64
	topics  map[Event]map[uint64]chan any
	dropped atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{topics: make(map[Event]map[uint64]chan any)}
}

// Subscribe attaches a buffered listener to e. Pick the buffer for the
// consumer's pace; slow consumers lose payloads rather than delay producers.
func (b *Bus) Subscribe(e Event, buffer int) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.topics[e] == nil {
		b.topics[e] = make(map[uint64]chan any)
	}
	id := b.nextID
	b.nextID++
	ch := make(chan any, buffer)
	b.topics[e][id] = ch

	return &Subscription{C: ch, detach: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.topics[e][id]; ok {
			delete(b.topics[e], id)
			close(c)
		}
	}}
}

// Publish delivers payload to every subscriber of e that has buffer room.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.topics[e] {
		select {
		case ch <- payload:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many payloads were discarded on full subscriber
// buffers since the bus was created.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
