package docstore

import (
	"slices"
	"time"

	"github.com/vovakirdan/tui-tictac/internal/board"
)

// Role identifies which side of a session a client plays.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Other returns the opposing role.
func (r Role) Other() Role {
	if r == RoleHost {
		return RoleGuest
	}
	return RoleHost
}

// Symbol returns the mark this role places. The host always moves first.
func (r Role) Symbol() board.Symbol {
	if r == RoleHost {
		return board.X
	}
	return board.O
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleHost || r == RoleGuest
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusWaiting   Status = "waiting"   // host only, accepting a guest
	StatusActive    Status = "active"    // both present, moves flow
	StatusCompleted Status = "completed" // finished, rematch-eligible
	StatusAbandoned Status = "abandoned" // terminal
)

// Ended reports whether the session no longer accepts players.
func (s Status) Ended() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Winner names the result of a finished game.
type Winner string

const (
	WinnerNone  Winner = ""
	WinnerHost  Winner = "host"
	WinnerGuest Winner = "guest"
	WinnerDraw  Winner = "draw"
)

// WinnerFor converts a role to the matching winner value.
func WinnerFor(r Role) Winner {
	if r == RoleHost {
		return WinnerHost
	}
	return WinnerGuest
}

// Session is the shared document for one two-party game.
type Session struct {
	ID                string      `json:"id"`
	HostID            string      `json:"hostId"`
	HostName          string      `json:"hostName,omitempty"`
	GuestID           string      `json:"guestId,omitempty"`
	GuestName         string      `json:"guestName,omitempty"`
	Board             board.Board `json:"board"`
	Status            Status      `json:"status"`
	CurrentTurn       Role        `json:"currentTurn"`
	Winner            Winner      `json:"winner,omitempty"`
	WinningLine       []int       `json:"winningLine,omitempty"`
	HostLastSeen      time.Time   `json:"hostLastSeen"`
	GuestLastSeen     time.Time   `json:"guestLastSeen"`
	HostWantsRematch  bool        `json:"hostWantsRematch"`
	GuestWantsRematch bool        `json:"guestWantsRematch"`
	Round             int         `json:"round"`
	CreatedAt         time.Time   `json:"createdAt"`
	LastActivityAt    time.Time   `json:"lastActivityAt"`
	Version           int64       `json:"version"`
}

// NewSession builds the initial document for a freshly created room.
func NewSession(id, hostID, hostName string) Session {
	return Session{
		ID:          id,
		HostID:      hostID,
		HostName:    hostName,
		Status:      StatusWaiting,
		CurrentTurn: RoleHost,
		Round:       1,
	}
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	s.WinningLine = slices.Clone(s.WinningLine)
	return s
}

// PlayerID returns the identity bound to a role.
func (s Session) PlayerID(r Role) string {
	if r == RoleHost {
		return s.HostID
	}
	return s.GuestID
}

// PlayerName returns the display name bound to a role.
func (s Session) PlayerName(r Role) string {
	if r == RoleHost {
		return s.HostName
	}
	return s.GuestName
}

// LastSeen returns the heartbeat timestamp of a role.
func (s Session) LastSeen(r Role) time.Time {
	if r == RoleHost {
		return s.HostLastSeen
	}
	return s.GuestLastSeen
}

// WantsRematch returns the rematch flag of a role.
func (s Session) WantsRematch(r Role) bool {
	if r == RoleHost {
		return s.HostWantsRematch
	}
	return s.GuestWantsRematch
}

// RematchAgreed reports whether both sides opted in.
func (s Session) RematchAgreed() bool {
	return s.HostWantsRematch && s.GuestWantsRematch
}

// RoleOf returns the role a player id holds in this session.
func (s Session) RoleOf(playerID string) (Role, bool) {
	switch {
	case playerID == "":
		return "", false
	case playerID == s.HostID:
		return RoleHost, true
	case playerID == s.GuestID:
		return RoleGuest, true
	}
	return "", false
}
