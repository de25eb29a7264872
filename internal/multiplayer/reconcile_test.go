package multiplayer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/tui-tictac/internal/board"
	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

func activeSnapshot(version int64) docstore.Session {
	s := docstore.NewSession("VIEW22", "h", "host")
	s.GuestID = "g"
	s.GuestName = "guest"
	s.Status = docstore.StatusActive
	s.Version = version
	return s
}

func TestLocalViewOptimisticMove(t *testing.T) {
	v := NewLocalView(docstore.RoleHost)
	assert.False(t, v.IsMyTurn(), "no snapshot yet")

	v.Apply(activeSnapshot(2))
	require.True(t, v.IsMyTurn())

	require.NoError(t, v.BeginMove(4))
	assert.Equal(t, board.X, v.Board()[4])
	pending, ok := v.Pending()
	assert.True(t, ok)
	assert.Equal(t, 4, pending)
	assert.False(t, v.IsMyTurn(), "one move in flight at a time")
	assert.ErrorIs(t, v.BeginMove(5), ErrInvalidMove)

	// Authoritative snapshot still shows the old board until the move lands.
	snap, _ := v.Snapshot()
	assert.Equal(t, board.Empty, snap.Board[4])

	v.Rollback()
	assert.Equal(t, board.Empty, v.Board()[4])
	_, ok = v.Pending()
	assert.False(t, ok)
	assert.True(t, v.IsMyTurn())
}

func TestLocalViewApplyOverwritesShadow(t *testing.T) {
	v := NewLocalView(docstore.RoleHost)
	v.Apply(activeSnapshot(2))
	require.NoError(t, v.BeginMove(0))

	confirmed := activeSnapshot(3)
	confirmed.Board[0] = board.X
	confirmed.CurrentTurn = docstore.RoleGuest
	v.Apply(confirmed)

	assert.Equal(t, confirmed.Board, v.Board())
	_, ok := v.Pending()
	assert.False(t, ok)
	assert.False(t, v.IsMyTurn())

	// Re-applying the same snapshot is harmless.
	tr := v.Apply(confirmed)
	assert.False(t, tr.Stale)
	assert.Equal(t, confirmed.Board, v.Board())
}

func TestLocalViewIgnoresStale(t *testing.T) {
	v := NewLocalView(docstore.RoleGuest)
	newer := activeSnapshot(5)
	newer.Board[0] = board.X
	newer.CurrentTurn = docstore.RoleGuest
	v.Apply(newer)

	tr := v.Apply(activeSnapshot(4))
	assert.True(t, tr.Stale)
	assert.Equal(t, board.X, v.Board()[0])
	assert.True(t, v.IsMyTurn())
}

func TestLocalViewTransitions(t *testing.T) {
	v := NewLocalView(docstore.RoleGuest)
	v.Apply(activeSnapshot(2))

	done := activeSnapshot(3)
	done.Status = docstore.StatusCompleted
	done.Winner = docstore.WinnerGuest
	done.WinningLine = []int{2, 4, 6}
	tr := v.Apply(done)
	assert.True(t, tr.Completed)

	// Flag updates within the completed state are not a new completion.
	flagged := done.Clone()
	flagged.Version = 4
	flagged.HostWantsRematch = true
	tr = v.Apply(flagged)
	assert.False(t, tr.Completed)

	vm := v.ViewModel(time.Now(), 30*time.Second)
	assert.True(t, vm.OpponentWantsRematch)
	assert.False(t, vm.IWantRematch)
	assert.True(t, vm.InWinningLine(4))
	assert.False(t, vm.InWinningLine(0))
	res, ok := vm.Result()
	assert.True(t, ok)
	assert.Equal(t, ResultWin, res)

	next := activeSnapshot(5)
	next.Round = 2
	tr = v.Apply(next)
	assert.True(t, tr.NewRound)

	gone := next.Clone()
	gone.Version = 6
	gone.Status = docstore.StatusAbandoned
	tr = v.Apply(gone)
	assert.True(t, tr.Abandoned)
}

func TestLocalViewModel(t *testing.T) {
	now := time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC)
	s := activeSnapshot(2)
	s.HostLastSeen = now.Add(-time.Second)

	v := NewLocalView(docstore.RoleGuest)
	v.Apply(s)
	vm := v.ViewModel(now, 30*time.Second)

	assert.Equal(t, "VIEW22", vm.Code)
	assert.Equal(t, docstore.RoleGuest, vm.Role)
	assert.Equal(t, board.O, vm.Symbol())
	assert.Equal(t, "guest", vm.MyName)
	assert.Equal(t, "host", vm.OpponentName)
	assert.True(t, vm.OpponentConnected)
	assert.False(t, vm.IsMyTurn)
	assert.Equal(t, -1, vm.Pending)

	vm = v.ViewModel(now.Add(time.Minute), 30*time.Second)
	assert.Equal(t, PresenceDisconnected, vm.Presence)
	assert.False(t, vm.OpponentConnected)
}

func TestLocalViewPendingSurvivesEcho(t *testing.T) {
	v := NewLocalView(docstore.RoleHost)
	v.Apply(activeSnapshot(2))
	require.NoError(t, v.BeginMove(4))

	// A heartbeat lands before the move write: same board, newer version.
	echo := activeSnapshot(3)
	tr := v.Apply(echo)
	assert.False(t, tr.Stale)
	pending, ok := v.Pending()
	assert.True(t, ok)
	assert.Equal(t, 4, pending)
	assert.Equal(t, board.X, v.Board()[4])
	assert.False(t, v.IsMyTurn(), "the in-flight move still blocks a second one")
	assert.ErrorIs(t, v.BeginMove(5), ErrInvalidMove)

	snap, _ := v.Snapshot()
	assert.Equal(t, board.Empty, snap.Board[4], "authoritative board is untouched")

	confirmed := activeSnapshot(4)
	confirmed.Board[4] = board.X
	confirmed.CurrentTurn = docstore.RoleGuest
	v.Apply(confirmed)
	_, ok = v.Pending()
	assert.False(t, ok)
}

func TestLocalViewPendingDroppedWhenGameEnds(t *testing.T) {
	v := NewLocalView(docstore.RoleGuest)
	start := activeSnapshot(2)
	start.CurrentTurn = docstore.RoleGuest
	v.Apply(start)
	require.NoError(t, v.BeginMove(0))

	gone := start.Clone()
	gone.Version = 3
	gone.Status = docstore.StatusAbandoned
	gone.Winner = docstore.WinnerGuest
	tr := v.Apply(gone)

	assert.True(t, tr.Abandoned)
	_, ok := v.Pending()
	assert.False(t, ok)
	assert.Equal(t, board.Empty, v.Board()[0])
}
