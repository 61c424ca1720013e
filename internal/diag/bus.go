package diag

import (
	"context"
	"sync"
)

// ring keeps the last size events for replay to late subscribers.
type ring struct {
	size   int
	buffer []Event
	index  int64
}

func newRing(size int) *ring {
	if size <= 0 {
		size = 1
	}
	return &ring{size: size, buffer: make([]Event, size)}
}

func (r *ring) add(e Event) {
	r.buffer[r.index%int64(r.size)] = e
	r.index++
}

func (r *ring) replay() []Event {
	var out []Event
	start := r.index - int64(r.size)
	if start < 0 {
		start = 0
	}
	for i := start; i < r.index; i++ {
		out = append(out, r.buffer[i%int64(r.size)])
	}
	return out
}

// Subscriber receives events of the types it subscribed to.
type Subscriber struct {
	C      <-chan Event
	ch     chan Event
	types  map[EventType]struct{}
	cancel context.CancelFunc
}

func (s *Subscriber) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Bus is a typed pub/sub Sink. Publishing never blocks: a subscriber whose
// buffer is full misses the event and the drop is counted.
type Bus struct {
	mu      sync.Mutex
	ring    *ring
	subs    map[*Subscriber]struct{}
	dropped int
	closed  bool
}

// NewBus creates a bus that replays up to history events to new subscribers.
func NewBus(history int) *Bus {
	return &Bus{
		ring: newRing(history),
		subs: make(map[*Subscriber]struct{}),
	}
}

// Subscribe registers for the given types (all types when none are given).
// The subscription ends when ctx is done or the returned func is called.
func (b *Bus) Subscribe(ctx context.Context, types ...EventType) (*Subscriber, func()) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan Event, 64)
	sub := &Subscriber{C: ch, ch: ch, types: make(map[EventType]struct{}), cancel: cancel}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		close(ch)
		return sub, func() {}
	}
	for _, e := range b.ring.replay() {
		if sub.wants(e.Type) {
			select {
			case ch <- e:
			default:
			}
		}
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			cancel()
			b.mu.Lock()
			if _, ok := b.subs[sub]; ok {
				delete(b.subs, sub)
				close(sub.ch)
			}
			b.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return sub, unsub
}

// Emit implements Sink.
func (b *Bus) Emit(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.ring.add(e)
	for sub := range b.subs {
		if !sub.wants(e.Type) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.dropped++
		}
	}
}

// Dropped reports how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close closes every subscriber channel. Later events are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.cancel()
		close(sub.ch)
	}
	b.subs = nil
}
