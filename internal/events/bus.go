package events

import "sync"

// backlog bounds each subscriber's buffered channel, matching the "order
// of 20 messages" bound the core spec calls for.
const backlog = 20

// Subscription is a live handle to the bus. Events arrive on C; if the
// subscriber falls behind, the bus drops the oldest pending event to
// make room for the new one and signals on Lagged, which the subscriber
// MUST treat as a cue to resynchronise (re-query current song, queue,
// streamer state) rather than treating it as an ordinary event.
type Subscription struct {
	C      <-chan Event
	Lagged <-chan struct{}

	bus *Bus
	id  uint64
	ch  chan Event
	lag chan struct{}
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unregister(s.id)
}

// Bus is a multi-producer, multi-consumer broadcast channel. Publish
// never blocks: a subscriber that cannot keep up is told it lagged and
// loses the events it missed, rather than slowing down every publisher.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Event
	lagChs map[uint64]chan struct{}
}

// NewBus returns a ready-to-use, empty bus.
func NewBus() *Bus {
	return &Bus{
		subs:   make(map[uint64]chan Event),
		lagChs: make(map[uint64]chan struct{}),
	}
}

// Subscribe registers a new subscriber and returns its handle.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, backlog)
	lag := make(chan struct{}, 1)
	b.subs[id] = ch
	b.lagChs[id] = lag
	return &Subscription{C: ch, Lagged: lag, bus: b, id: id, ch: ch, lag: lag}
}

func (b *Bus) unregister(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
	delete(b.lagChs, id)
}

// Publish fans ev out to every current subscriber. A subscriber whose
// buffer is full loses its oldest pending event and is marked lagged
// instead of blocking the publisher.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
			select {
			case b.lagChs[id] <- struct{}{}:
			default:
			}
		}
	}
}

// SubscriberCount reports the current number of live subscriptions,
// useful for the periodic persistence task to decide whether anyone is
// listening before doing work.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
