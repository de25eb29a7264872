package docstore

import (
	"context"
	"sync"
)

// DefaultBuffer is how many undelivered events a subscription holds before
// it starts dropping the oldest ones.
const DefaultBuffer = 32

// Event is one delivery on a subscription feed.
type Event struct {
	Snapshot Session
	Deleted  bool  // the document was removed; the feed ends after this event
	Err      error // the feed failed; it ends after this event
}

// Subscription is an ordered, cancelable snapshot feed for one session.
// Snapshots are whole documents, so when a slow reader lets the buffer fill
// the oldest pending snapshot is dropped; ordering is never changed.
type Subscription struct {
	id        string
	events    chan Event
	done      chan struct{}
	onClose   func()
	closeOnce sync.Once

	mu     sync.Mutex
	closed bool
}

// NewSubscription creates a feed. onClose runs once when the consumer calls
// Close; it is not run when the producer ends the feed with Finish.
func NewSubscription(id string, buffer int, onClose func()) *Subscription {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Subscription{
		id:      id,
		events:  make(chan Event, buffer),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// ID returns the session id this feed follows.
func (s *Subscription) ID() string {
	return s.id
}

// Events returns the delivery channel. It is closed when the feed ends.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed when the feed ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Send delivers an event without blocking the producer.
func (s *Subscription) Send(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.events <- evt:
		return
	default:
	}

	// Buffer full, drop oldest and retry
	select {
	case <-s.events:
	default:
	}
	select {
	case s.events <- evt:
	default:
	}
}

// Finish ends the feed from the producer side. Buffered events stay readable.
func (s *Subscription) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
	close(s.done)
}

// Close unsubscribes. Safe to call multiple times.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		s.Finish()
	})
}

// CloseOnDone closes the subscription when ctx ends.
func (s *Subscription) CloseOnDone(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
}

// Broker fans snapshots out to subscriptions, per session id. Callers keep
// per-session ordering by invoking Subscribe and Publish under the same lock
// that serializes their writes.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

// NewBroker creates a broker whose subscriptions buffer the given number of events.
func NewBroker(buffer int) *Broker {
	return &Broker{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a feed and queues current as its first event.
func (b *Broker) Subscribe(current Session) *Subscription {
	id := current.ID
	var sub *Subscription
	sub = NewSubscription(id, b.buffer, func() { b.remove(id, sub) })

	b.mu.Lock()
	if b.subs[id] == nil {
		b.subs[id] = make(map[*Subscription]struct{})
	}
	b.subs[id][sub] = struct{}{}
	b.mu.Unlock()

	sub.Send(Event{Snapshot: current.Clone()})
	return sub
}

func (b *Broker) remove(id string, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[id], sub)
	if len(b.subs[id]) == 0 {
		delete(b.subs, id)
	}
}

// Publish delivers a new snapshot to every subscriber of its session.
func (b *Broker) Publish(s Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[s.ID] {
		sub.Send(Event{Snapshot: s.Clone()})
	}
}

// Deleted tells subscribers the session is gone and ends their feeds.
func (b *Broker) Deleted(id string) {
	b.mu.Lock()
	subs := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()

	for sub := range subs {
		sub.Send(Event{Snapshot: Session{ID: id}, Deleted: true})
		sub.Finish()
	}
}

// Shutdown fails every open feed with err.
func (b *Broker) Shutdown(err error) {
	b.mu.Lock()
	all := b.subs
	b.subs = make(map[string]map[*Subscription]struct{})
	b.mu.Unlock()

	for _, subs := range all {
		for sub := range subs {
			sub.Send(Event{Err: err})
			sub.Finish()
		}
	}
}

// Count returns the number of open subscriptions for a session.
func (b *Broker) Count(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[id])
}
