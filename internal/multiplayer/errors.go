package multiplayer

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
	"github.com/vovakirdan/tui-tictac/internal/roomcode"
)

// ErrInvalidMove matches every rejected move.
var ErrInvalidMove = errors.New("multiplayer: invalid move")

// ValidationError reports malformed input that no retry can fix.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("multiplayer: invalid %s: %s", e.Field, e.Reason)
}

func checkRole(role docstore.Role) error {
	if !role.Valid() {
		return &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", role)}
	}
	return nil
}

// MoveError explains why a move was not applied. It matches both
// ErrInvalidMove and docstore.ErrPreconditionFailed, so callers can treat a
// stale or illegal move as "state changed, try again".
type MoveError struct {
	Index  int
	Reason string
	Err    error // store error for a lost conditional write, nil otherwise
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("multiplayer: move %d rejected: %s", e.Index, e.Reason)
}

func (e *MoveError) Unwrap() []error {
	errs := []error{ErrInvalidMove, docstore.ErrPreconditionFailed}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// UserMessage maps engine errors to the text shown to a player.
func UserMessage(err error) string {
	var (
		verr *ValidationError
		merr *MoveError
		rerr *roomcode.Error
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rerr):
		return rerr.Reason.Message()
	case errors.Is(err, roomcode.ErrCodeExhaustion):
		return "Could not create a room, try again"
	case errors.As(err, &verr):
		return verr.Reason
	case errors.As(err, &merr):
		return "Move rejected (" + merr.Reason + "), try again"
	case errors.Is(err, docstore.ErrNotFound):
		return "Game no longer exists"
	case errors.Is(err, docstore.ErrUnavailable):
		return "Connection to the game server lost"
	case errors.Is(err, docstore.ErrPreconditionFailed):
		return "Game state changed, try again"
	}
	return err.Error()
}
