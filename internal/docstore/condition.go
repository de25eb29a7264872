package docstore

import (
	"fmt"
	"slices"
	"time"

	"github.com/vovakirdan/tui-tictac/internal/board"
)

// Precondition lists what must still hold on the stored document for a
// conditional update to land. Zero-valued fields are not checked, so each
// writer guards exactly the field group it is about to change.
type Precondition struct {
	Status        []Status     `json:"status,omitempty"`        // any of
	Turn          Role         `json:"turn,omitempty"`          // currentTurn equals
	Board         *board.Board `json:"board,omitempty"`         // board equals
	Round         int          `json:"round,omitempty"`         // round equals
	GuestUnset    bool         `json:"guestUnset,omitempty"`    // no guest yet
	RematchAgreed bool         `json:"rematchAgreed,omitempty"` // both flags set
	Version       int64        `json:"version,omitempty"`       // exact version
}

// Check returns nil when s satisfies every condition, or an error wrapping
// ErrPreconditionFailed naming the first one that does not.
func (p Precondition) Check(s Session) error {
	if len(p.Status) > 0 && !slices.Contains(p.Status, s.Status) {
		return failed("status is %s", s.Status)
	}
	if p.Turn != "" && s.CurrentTurn != p.Turn {
		return failed("turn belongs to %s", s.CurrentTurn)
	}
	if p.Board != nil && *p.Board != s.Board {
		return failed("board changed")
	}
	if p.Round != 0 && s.Round != p.Round {
		return failed("round is %d", s.Round)
	}
	if p.GuestUnset && s.GuestID != "" {
		return failed("guest already joined")
	}
	if p.RematchAgreed && !s.RematchAgreed() {
		return failed("rematch not agreed")
	}
	if p.Version != 0 && s.Version != p.Version {
		return failed("version is %d", s.Version)
	}
	return nil
}

func failed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrPreconditionFailed}, args...)...)
}

// Result carries the outcome fields that are always written together.
type Result struct {
	Winner Winner `json:"winner"`
	Line   []int  `json:"line,omitempty"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	GuestID           *string      `json:"guestId,omitempty"`
	GuestName         *string      `json:"guestName,omitempty"`
	Board             *board.Board `json:"board,omitempty"`
	Status            *Status      `json:"status,omitempty"`
	CurrentTurn       *Role        `json:"currentTurn,omitempty"`
	Result            *Result      `json:"result,omitempty"`
	HostWantsRematch  *bool        `json:"hostWantsRematch,omitempty"`
	GuestWantsRematch *bool        `json:"guestWantsRematch,omitempty"`
	NextRound         bool         `json:"nextRound,omitempty"`

	// SeenBy stamps the role's heartbeat with the store clock.
	SeenBy Role `json:"seenBy,omitempty"`
}

// Apply returns s with the patch applied and the store bookkeeping fields
// (lastActivityAt, version) advanced.
func (p Patch) Apply(s Session, now time.Time) Session {
	s = s.Clone()
	if p.GuestID != nil {
		s.GuestID = *p.GuestID
	}
	if p.GuestName != nil {
		s.GuestName = *p.GuestName
	}
	if p.Board != nil {
		s.Board = *p.Board
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.CurrentTurn != nil {
		s.CurrentTurn = *p.CurrentTurn
	}
	if p.Result != nil {
		s.Winner = p.Result.Winner
		s.WinningLine = slices.Clone(p.Result.Line)
	}
	if p.HostWantsRematch != nil {
		s.HostWantsRematch = *p.HostWantsRematch
	}
	if p.GuestWantsRematch != nil {
		s.GuestWantsRematch = *p.GuestWantsRematch
	}
	if p.NextRound {
		s.Round++
	}
	switch p.SeenBy {
	case RoleHost:
		s.HostLastSeen = now
	case RoleGuest:
		s.GuestLastSeen = now
	}
	s.LastActivityAt = now
	s.Version++
	return s
}

// Ptr returns a pointer to v, for building patches inline.
func Ptr[T any](v T) *T {
	return &v
}
