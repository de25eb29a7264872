package multiplayer

import (
	"slices"

	"github.com/vovakirdan/tui-tictac/internal/board"
	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

// ViewModel is everything the presentation layer needs to draw a session.
type ViewModel struct {
	Code        string
	Role        docstore.Role
	Round       int
	Status      docstore.Status
	Board       board.Board // shadow board, includes a pending move
	CurrentTurn docstore.Role
	Winner      docstore.Winner
	WinningLine []int
	IsMyTurn    bool
	Pending     int // cell of the unconfirmed local move, -1 if none

	Presence          Presence
	OpponentConnected bool

	MyName       string
	OpponentName string

	IWantRematch         bool
	OpponentWantsRematch bool
}

// Symbol returns the mark the local player places.
func (v ViewModel) Symbol() board.Symbol {
	return v.Role.Symbol()
}

// InWinningLine reports whether cell i is part of the winning triple.
func (v ViewModel) InWinningLine(i int) bool {
	return slices.Contains(v.WinningLine, i)
}

// Result returns the finished round from the local side, if any.
func (v ViewModel) Result() (Result, bool) {
	switch v.Winner {
	case docstore.WinnerNone:
		return "", false
	case docstore.WinnerDraw:
		return ResultTie, true
	case docstore.WinnerFor(v.Role):
		return ResultWin, true
	}
	return ResultLoss, true
}

// UpdateKind says what triggered an Update.
type UpdateKind int

const (
	UpdateSnapshot UpdateKind = iota // new authoritative or optimistic state
	UpdatePresence                   // peer connection state changed
	UpdateOutcome                    // a round finished; Outcome is set
	UpdateError                      // an operation failed; Err is set
	UpdateDetached                   // the client left the session
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateSnapshot:
		return "snapshot"
	case UpdatePresence:
		return "presence"
	case UpdateOutcome:
		return "outcome"
	case UpdateError:
		return "error"
	case UpdateDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// Update is one event delivered from a Client to its presentation layer.
type Update struct {
	Kind    UpdateKind
	View    ViewModel
	Outcome *Outcome
	Err     error
}

// Message returns the user-facing text for error and detach updates.
func (u Update) Message() string {
	switch u.Kind {
	case UpdateError:
		return UserMessage(u.Err)
	case UpdateDetached:
		if u.Err != nil {
			return UserMessage(u.Err)
		}
		return "Left the game"
	}
	return ""
}
