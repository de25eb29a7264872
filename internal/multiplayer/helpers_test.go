package multiplayer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

var (
	alice = Player{ID: "alice-id", Name: "alice"}
	bob   = Player{ID: "bob-id", Name: "bob"}
	carol = Player{ID: "carol-id", Name: "carol"}
)

// fixedCodes hands out the given codes in order, then repeats the last one.
func fixedCodes(codes ...string) func() (string, error) {
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[0]
		if len(codes) > 1 {
			codes = codes[1:]
		}
		return c, nil
	}
}

func newTestCoordinator(t *testing.T, codes ...string) (*Coordinator, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	t.Cleanup(func() { store.Close() })

	cfg := DefaultCoordinatorConfig()
	cfg.HeartbeatInterval = 20 * time.Millisecond
	c := NewCoordinator(store, cfg, nil)
	if len(codes) > 0 {
		c.SetCodeGenerator(fixedCodes(codes...))
	}
	return c, store
}

// startGame creates and joins a session with alice hosting and bob as guest.
func startGame(t *testing.T, c *Coordinator, ctx context.Context) docstore.Session {
	t.Helper()
	s, err := c.Create(ctx, alice)
	require.NoError(t, err)
	s, err = c.Join(ctx, s.ID, bob)
	require.NoError(t, err)
	return s
}

type play struct {
	role  docstore.Role
	index int
}

// hostWinsTopRow is the host completing (0,1,2) while the guest plays 4 and 5.
var hostWinsTopRow = []play{
	{docstore.RoleHost, 0},
	{docstore.RoleGuest, 4},
	{docstore.RoleHost, 1},
	{docstore.RoleGuest, 5},
	{docstore.RoleHost, 2},
}

// drawGame fills the board with no winner.
var drawGame = []play{
	{docstore.RoleHost, 0},
	{docstore.RoleGuest, 1},
	{docstore.RoleHost, 2},
	{docstore.RoleGuest, 4},
	{docstore.RoleHost, 3},
	{docstore.RoleGuest, 5},
	{docstore.RoleHost, 7},
	{docstore.RoleGuest, 6},
	{docstore.RoleHost, 8},
}

func playAll(t *testing.T, c *Coordinator, ctx context.Context, id string, plays []play) docstore.Session {
	t.Helper()
	var (
		s   docstore.Session
		err error
	)
	for _, p := range plays {
		s, err = c.Move(ctx, id, p.role, p.index)
		require.NoError(t, err, "move %s@%d", p.role, p.index)
	}
	return s
}

// hookStore runs a callback before conditional writes.
type hookStore struct {
	docstore.Store

	mu           sync.Mutex
	beforeUpdate func(id string, patch docstore.Patch) error
}

func (h *hookStore) setHook(fn func(id string, patch docstore.Patch) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforeUpdate = fn
}

func (h *hookStore) UpdateIf(ctx context.Context, id string, cond docstore.Precondition, patch docstore.Patch) (docstore.Session, error) {
	h.mu.Lock()
	hook := h.beforeUpdate
	h.mu.Unlock()
	if hook != nil {
		if err := hook(id, patch); err != nil {
			cur, _ := h.Store.Get(ctx, id)
			return cur, err
		}
	}
	return h.Store.UpdateIf(ctx, id, cond, patch)
}

// memRecorder collects outcomes.
type memRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *memRecorder) RecordOutcome(_ context.Context, o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

func (r *memRecorder) all() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}
