package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store. All writes and subscription registrations
// are serialized by one mutex, which is what gives each session feed its
// write order.
type Memory struct {
	mu     sync.Mutex
	docs   map[string]Session
	broker *Broker
	now    func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:   make(map[string]Session),
		broker: NewBroker(DefaultBuffer),
		now:    time.Now,
	}
}

// SetClock overrides the store clock (used by tests).
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Create implements Store.
func (m *Memory) Create(ctx context.Context, s Session) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[s.ID]; exists {
		return Session{}, fmt.Errorf("%w: %s", ErrAlreadyExists, s.ID)
	}
	now := m.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.LastActivityAt = now
	s.Version = 1
	s = s.Clone()
	m.docs[s.ID] = s
	m.broker.Publish(s)
	return s.Clone(), nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, id string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.docs[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.Clone(), nil
}

// UpdateIf implements Store.
func (m *Memory) UpdateIf(ctx context.Context, id string, cond Precondition, patch Patch) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.docs[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := cond.Check(cur); err != nil {
		return cur.Clone(), err
	}
	next := patch.Apply(cur, m.now())
	m.docs[id] = next
	m.broker.Publish(next)
	return next.Clone(), nil
}

// Subscribe implements Store.
func (m *Memory) Subscribe(ctx context.Context, id string) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sub := m.broker.Subscribe(cur)
	sub.CloseOnDone(ctx)
	return sub, nil
}

// Query implements Store.
func (m *Memory) Query(ctx context.Context, filter Filter, limit int) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Session
	for _, s := range m.docs {
		if filter.Match(s) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastActivityAt.Before(out[j].LastActivityAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// BatchDelete implements Store.
func (m *Memory) BatchDelete(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if _, ok := m.docs[id]; !ok {
			continue
		}
		delete(m.docs, id)
		m.broker.Deleted(id)
	}
	return nil
}

// Close fails every open subscription.
func (m *Memory) Close() error {
	m.broker.Shutdown(ErrUnavailable)
	return nil
}

var _ Store = (*Memory)(nil)
