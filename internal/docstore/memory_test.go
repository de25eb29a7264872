package docstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/tui-tictac/internal/board"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case evt, ok := <-sub.Events():
		require.True(t, ok, "feed closed unexpectedly")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestMemoryCreateGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	created, err := m.Create(ctx, NewSession("AB23XZ", "h1", "alice"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, created.Version)
	assert.False(t, created.LastActivityAt.IsZero())

	got, err := m.Get(ctx, "AB23XZ")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = m.Create(ctx, NewSession("AB23XZ", "h2", "bob"))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = m.Get(ctx, "ZZZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUpdateIf(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, NewSession("ROOM22", "h1", "alice"))
	require.NoError(t, err)

	joined, err := m.UpdateIf(ctx, "ROOM22",
		Precondition{Status: []Status{StatusWaiting}, GuestUnset: true},
		Patch{GuestID: Ptr("g1"), Status: Ptr(StatusActive)})
	require.NoError(t, err)
	assert.Equal(t, "g1", joined.GuestID)
	assert.Equal(t, StatusActive, joined.Status)
	assert.EqualValues(t, 2, joined.Version)

	// Second joiner loses and sees the current document.
	cur, err := m.UpdateIf(ctx, "ROOM22",
		Precondition{Status: []Status{StatusWaiting}, GuestUnset: true},
		Patch{GuestID: Ptr("g2")})
	assert.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Equal(t, "g1", cur.GuestID)

	_, err = m.UpdateIf(ctx, "NOPE22", Precondition{}, Patch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBoardPrecondition(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s, err := m.Create(ctx, NewSession("ROOM33", "h1", ""))
	require.NoError(t, err)

	read := s.Board
	next, _ := read.Place(0, board.X)
	_, err = m.UpdateIf(ctx, s.ID, Precondition{Board: &read}, Patch{Board: &next})
	require.NoError(t, err)

	// Writing against the stale board fails.
	other, _ := read.Place(1, board.X)
	_, err = m.UpdateIf(ctx, s.ID, Precondition{Board: &read}, Patch{Board: &other})
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestMemorySubscribeOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, NewSession("FEED22", "h1", ""))
	require.NoError(t, err)

	sub, err := m.Subscribe(ctx, "FEED22")
	require.NoError(t, err)
	defer sub.Close()

	first := recv(t, sub)
	assert.EqualValues(t, 1, first.Snapshot.Version)

	for i := 0; i < 5; i++ {
		_, err := m.UpdateIf(ctx, "FEED22", Precondition{}, Patch{SeenBy: RoleHost})
		require.NoError(t, err)
	}
	var last int64 = 1
	for i := 0; i < 5; i++ {
		evt := recv(t, sub)
		assert.Greater(t, evt.Snapshot.Version, last)
		last = evt.Snapshot.Version
	}
	assert.EqualValues(t, 6, last)
}

func TestMemorySubscribeSlowReaderKeepsNewest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, NewSession("SLOW22", "h1", ""))
	require.NoError(t, err)

	sub, err := m.Subscribe(ctx, "SLOW22")
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < DefaultBuffer*2; i++ {
		_, err := m.UpdateIf(ctx, "SLOW22", Precondition{}, Patch{SeenBy: RoleGuest})
		require.NoError(t, err)
	}

	var versions []int64
	for len(sub.Events()) > 0 {
		versions = append(versions, recv(t, sub).Snapshot.Version)
	}
	require.NotEmpty(t, versions)
	assert.EqualValues(t, DefaultBuffer*2+1, versions[len(versions)-1])
	assert.IsIncreasing(t, versions)
}

func TestMemoryDeleteEndsFeed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, NewSession("GONE22", "h1", ""))
	require.NoError(t, err)

	sub, err := m.Subscribe(ctx, "GONE22")
	require.NoError(t, err)
	recv(t, sub)

	require.NoError(t, m.BatchDelete(ctx, []string{"GONE22", "NEVER2"}))
	evt := recv(t, sub)
	assert.True(t, evt.Deleted)

	_, open := <-sub.Events()
	assert.False(t, open)

	_, err = m.Get(ctx, "GONE22")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySubscribeCancel(t *testing.T) {
	m := NewMemory()
	_, err := m.Create(context.Background(), NewSession("CNCL22", "h1", ""))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := m.Subscribe(ctx, "CNCL22")
	require.NoError(t, err)
	assert.Equal(t, 1, m.broker.Count("CNCL22"))

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after cancel")
	}
	assert.Equal(t, 0, m.broker.Count("CNCL22"))

	// Close after cancel is a no-op.
	sub.Close()
	sub.Close()

	_, err = m.Subscribe(context.Background(), "NOPE22")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryQuery(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m.SetClock(func() time.Time { return now })

	for _, id := range []string{"OLD222", "OLD333"} {
		_, err := m.Create(ctx, NewSession(id, "h", ""))
		require.NoError(t, err)
		now = now.Add(time.Minute)
	}
	now = base.Add(2 * time.Hour)
	_, err := m.Create(ctx, NewSession("NEW222", "h", ""))
	require.NoError(t, err)

	got, err := m.Query(ctx, Filter{
		Status:         []Status{StatusWaiting},
		InactiveBefore: base.Add(time.Hour),
	}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "OLD222", got[0].ID)
	assert.Equal(t, "OLD333", got[1].ID)

	limited, err := m.Query(ctx, Filter{}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := m.Query(ctx, Filter{Status: []Status{StatusCompleted}}, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryConcurrentConditionalWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, NewSession("RACE22", "h1", ""))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.UpdateIf(ctx, "RACE22",
				Precondition{GuestUnset: true},
				Patch{GuestID: Ptr(string(rune('a' + i)))})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryCloseFailsFeeds(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, NewSession("SHUT22", "h1", ""))
	require.NoError(t, err)
	sub, err := m.Subscribe(ctx, "SHUT22")
	require.NoError(t, err)
	recv(t, sub)

	require.NoError(t, m.Close())
	evt := recv(t, sub)
	assert.ErrorIs(t, evt.Err, ErrUnavailable)
}

func TestFilterMatch(t *testing.T) {
	cutoff := time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC)
	s := NewSession("FILT22", "h1", "")
	s.Status = StatusActive
	s.LastActivityAt = cutoff.Add(-time.Minute)

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"status listed", Filter{Status: []Status{StatusWaiting, StatusActive}}, true},
		{"status not listed", Filter{Status: []Status{StatusWaiting, StatusCompleted}}, false},
		{"inactive before cutoff", Filter{InactiveBefore: cutoff}, true},
		{"active at cutoff", Filter{InactiveBefore: s.LastActivityAt}, false},
		{"both", Filter{Status: []Status{StatusActive}, InactiveBefore: cutoff}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(s))
		})
	}
}
