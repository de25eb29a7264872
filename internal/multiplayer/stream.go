package multiplayer

import "sync"

// UpdateStream is a buffered, non-blocking Update channel. When the reader
// falls behind, the oldest update is dropped so the newest state always gets
// through.
type UpdateStream struct {
	mu     sync.Mutex
	ch     chan Update
	closed bool
}

// NewUpdateStream creates a stream. size controls how many updates can be
// buffered before dropping.
func NewUpdateStream(size int) *UpdateStream {
	if size < 1 {
		size = 64 // Default buffer size
	}
	return &UpdateStream{ch: make(chan Update, size)}
}

// Send delivers u without blocking.
func (s *UpdateStream) Send(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- u:
		return
	default:
	}

	// Buffer full, drop oldest and retry
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- u:
	default:
	}
}

// C returns the channel to receive updates from.
func (s *UpdateStream) C() <-chan Update {
	return s.ch
}

// Close closes the channel. Safe to call multiple times.
func (s *UpdateStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
