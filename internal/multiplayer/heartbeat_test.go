package multiplayer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

func TestBeatStampsOwnRole(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCoordinator(t, "BEAT22")
	s := startGame(t, c, ctx)

	stamp := time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return stamp })

	require.NoError(t, c.Beat(ctx, s.ID, docstore.RoleGuest))
	cur, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, stamp, cur.GuestLastSeen)
	assert.NotEqual(t, stamp, cur.HostLastSeen)
	assert.Equal(t, s.Board, cur.Board)

	playAll(t, c, ctx, s.ID, hostWinsTopRow)
	assert.ErrorIs(t, c.Beat(ctx, s.ID, docstore.RoleGuest), docstore.ErrPreconditionFailed)
}

func TestRunHeartbeatStopsOnDetach(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCoordinator(t, "HBHB22")
	s := startGame(t, c, ctx)

	var current atomic.Pointer[string]
	id := s.ID
	current.Store(&id)
	attached := func() string {
		if p := current.Load(); p != nil {
			return *p
		}
		return ""
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.RunHeartbeat(ctx, s.ID, docstore.RoleHost, attached)
	}()

	// Beats keep landing while attached.
	assert.Eventually(t, func() bool {
		cur, err := store.Get(ctx, s.ID)
		return err == nil && cur.Version >= s.Version+3
	}, 2*time.Second, 10*time.Millisecond)

	other := "OTHER2"
	current.Store(&other)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat did not stop after the client switched sessions")
	}
}

func TestRunHeartbeatStopsOnCancel(t *testing.T) {
	c, _ := newTestCoordinator(t, "HBCN22")
	s := startGame(t, c, context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.RunHeartbeat(ctx, s.ID, docstore.RoleGuest, nil)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat did not stop on cancel")
	}
}

func TestRunHeartbeatStopsWhenDeleted(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCoordinator(t, "HBDL22")
	s, err := c.Create(ctx, alice)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.RunHeartbeat(ctx, s.ID, docstore.RoleHost, nil)
	}()
	require.NoError(t, store.BatchDelete(ctx, []string{s.ID}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat did not stop after the session was deleted")
	}
}

func TestPeerPresence(t *testing.T) {
	now := time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC)
	threshold := 30 * time.Second

	s := docstore.NewSession("PRES22", "h", "")
	assert.Equal(t, PresenceUnknown, PeerPresence(s, docstore.RoleHost, now, threshold), "no guest yet")

	s.GuestID = "g"
	assert.Equal(t, PresenceUnknown, PeerPresence(s, docstore.RoleHost, now, threshold), "guest never beat")

	s.GuestLastSeen = now.Add(-29 * time.Second)
	assert.Equal(t, PresenceConnected, PeerPresence(s, docstore.RoleHost, now, threshold))

	s.GuestLastSeen = now.Add(-30 * time.Second)
	assert.Equal(t, PresenceDisconnected, PeerPresence(s, docstore.RoleHost, now, threshold), "threshold is exclusive")

	s.HostLastSeen = now.Add(-5 * time.Second)
	assert.Equal(t, PresenceConnected, PeerPresence(s, docstore.RoleGuest, now, threshold))
	assert.Equal(t, "connected", PresenceConnected.String())
}
