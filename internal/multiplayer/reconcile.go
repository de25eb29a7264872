package multiplayer

import (
	"fmt"
	"time"

	"github.com/vovakirdan/tui-tictac/internal/board"
	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

const noPending = -1

// LocalView is one client's picture of a session: the last authoritative
// snapshot plus a shadow board that may carry one optimistic move.
// It is not safe for concurrent use; the client loop owns it.
type LocalView struct {
	role     docstore.Role
	snapshot docstore.Session
	has      bool
	shadow   board.Board
	pending  int
}

// Transition describes what changed when a snapshot was applied.
type Transition struct {
	Stale     bool // older than the held snapshot, ignored
	Completed bool // status entered completed for this round
	Abandoned bool // status entered abandoned
	NewRound  bool // a rematch started
}

// NewLocalView creates an empty view for the given role.
func NewLocalView(role docstore.Role) *LocalView {
	return &LocalView{role: role, pending: noPending}
}

// Role returns the local role.
func (v *LocalView) Role() docstore.Role {
	return v.role
}

// Snapshot returns the last authoritative snapshot.
func (v *LocalView) Snapshot() (docstore.Session, bool) {
	return v.snapshot, v.has
}

// Board returns the shadow board.
func (v *LocalView) Board() board.Board {
	return v.shadow
}

// Pending returns the cell of the unconfirmed local move.
func (v *LocalView) Pending() (int, bool) {
	return v.pending, v.pending != noPending
}

// IsMyTurn reports whether the local player may move now.
func (v *LocalView) IsMyTurn() bool {
	return v.has &&
		v.snapshot.Status == docstore.StatusActive &&
		v.snapshot.CurrentTurn == v.role &&
		v.pending == noPending
}

// Apply installs an authoritative snapshot. The shadow board is overwritten
// wholesale; a snapshot older than the one held is ignored. A pending move
// survives snapshots that still leave its cell open on the local player's
// turn in the same round, such as heartbeat echoes written while the move is
// in flight.
func (v *LocalView) Apply(s docstore.Session) Transition {
	if v.has && s.Version < v.snapshot.Version {
		return Transition{Stale: true}
	}

	prev, had := v.snapshot, v.has
	v.snapshot = s.Clone()
	v.has = true
	v.shadow = s.Board
	if v.pending != noPending && !v.keepsPending(prev, s) {
		v.pending = noPending
	}
	if v.pending != noPending {
		v.shadow[v.pending] = v.role.Symbol()
	}

	var t Transition
	t.NewRound = had && s.Round > prev.Round
	sameRound := had && s.Round == prev.Round
	t.Completed = s.Status == docstore.StatusCompleted &&
		!(sameRound && prev.Status == docstore.StatusCompleted)
	t.Abandoned = s.Status == docstore.StatusAbandoned &&
		!(had && prev.Status == docstore.StatusAbandoned)
	return t
}

func (v *LocalView) keepsPending(prev, s docstore.Session) bool {
	return s.Round == prev.Round &&
		s.Status == docstore.StatusActive &&
		s.CurrentTurn == v.role &&
		s.Board[v.pending] == board.Empty
}

// BeginMove applies the local player's move to the shadow board.
func (v *LocalView) BeginMove(index int) error {
	if !board.ValidIndex(index) {
		return &ValidationError{Field: "cell", Reason: fmt.Sprintf("cell %d is off the board", index)}
	}
	if !v.IsMyTurn() {
		return &MoveError{Index: index, Reason: "not your turn"}
	}
	next, err := v.shadow.Place(index, v.role.Symbol())
	if err != nil {
		return &MoveError{Index: index, Reason: "cell already taken"}
	}
	v.shadow = next
	v.pending = index
	return nil
}

// Rollback restores the shadow board to the authoritative one.
func (v *LocalView) Rollback() {
	v.shadow = v.snapshot.Board
	v.pending = noPending
}

// ViewModel renders the view for presentation.
func (v *LocalView) ViewModel(now time.Time, threshold time.Duration) ViewModel {
	s := v.snapshot
	presence := PresenceUnknown
	if v.has {
		presence = PeerPresence(s, v.role, now, threshold)
	}
	return ViewModel{
		Code:                 s.ID,
		Role:                 v.role,
		Round:                s.Round,
		Status:               s.Status,
		Board:                v.shadow,
		CurrentTurn:          s.CurrentTurn,
		Winner:               s.Winner,
		WinningLine:          s.WinningLine,
		IsMyTurn:             v.IsMyTurn(),
		Pending:              v.pending,
		Presence:             presence,
		OpponentConnected:    presence == PresenceConnected,
		MyName:               s.PlayerName(v.role),
		OpponentName:         s.PlayerName(v.role.Other()),
		IWantRematch:         s.WantsRematch(v.role),
		OpponentWantsRematch: s.WantsRematch(v.role.Other()),
	}
}
