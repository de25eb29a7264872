// Package multiplayer implements the two-party tic-tac-toe session engine:
// the session state machine, liveness heartbeats, rematch negotiation and the
// per-client reconciliation loop. All coordination goes through a
// docstore.Store; there is no server-side arbiter.
package multiplayer

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

// Player is the identity a client acts under.
type Player struct {
	ID   string
	Name string
}

// NewPlayer creates a player with a fresh random id.
func NewPlayer(name string) Player {
	return Player{ID: uuid.NewString(), Name: strings.TrimSpace(name)}
}

// DisplayName returns Name, or a short form of the id when no name was given.
func (p Player) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if len(p.ID) >= 8 {
		return "player-" + p.ID[:8]
	}
	return "player"
}

// Result is a finished round seen from one player's side.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultTie  Result = "tie"
)

// EndReason describes how a round finished.
type EndReason string

const (
	EndCompleted EndReason = "completed" // three in a row or a full board
	EndAbandoned EndReason = "abandoned" // the opponent left mid-game
)

// Outcome is emitted once per finished round to the local player's recorder.
type Outcome struct {
	SessionID  string
	Round      int
	PlayerID   string
	PlayerName string
	Role       docstore.Role
	Result     Result
	Reason     EndReason
	HostID     string
	HostName   string
	GuestID    string
	GuestName  string
	Winner     docstore.Winner
	Moves      int
	FinishedAt time.Time
}

// OutcomeRecorder persists outcomes. Optional; the engine works without one.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, o Outcome) error
}

// OutcomeFor derives the outcome of s for the given role. ok is false while
// the round has no result.
func OutcomeFor(s docstore.Session, role docstore.Role) (Outcome, bool) {
	if s.Winner == docstore.WinnerNone {
		return Outcome{}, false
	}

	o := Outcome{
		SessionID:  s.ID,
		Round:      s.Round,
		PlayerID:   s.PlayerID(role),
		PlayerName: s.PlayerName(role),
		Role:       role,
		Reason:     EndCompleted,
		HostID:     s.HostID,
		HostName:   s.HostName,
		GuestID:    s.GuestID,
		GuestName:  s.GuestName,
		Winner:     s.Winner,
		Moves:      s.Board.Count(),
		FinishedAt: s.LastActivityAt,
	}
	if s.Status == docstore.StatusAbandoned {
		o.Reason = EndAbandoned
	}

	switch s.Winner {
	case docstore.WinnerDraw:
		o.Result = ResultTie
	case docstore.WinnerFor(role):
		o.Result = ResultWin
	default:
		o.Result = ResultLoss
	}
	return o, true
}
