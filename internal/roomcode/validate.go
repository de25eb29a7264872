package roomcode

import (
	"context"
	"errors"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

// Reason says why a code was rejected.
type Reason string

const (
	ReasonInvalidFormat Reason = "invalid-format"
	ReasonNotFound      Reason = "not-found"
	ReasonEnded         Reason = "ended"
	ReasonFull          Reason = "full"
	ReasonOwnGame       Reason = "own-game"
)

// Message returns the text shown to the player.
func (r Reason) Message() string {
	switch r {
	case ReasonInvalidFormat:
		return "Room code must be 6 letters or digits"
	case ReasonNotFound:
		return "Room not found"
	case ReasonEnded:
		return "This game has already ended"
	case ReasonFull:
		return "Game is full"
	case ReasonOwnGame:
		return "Cannot join your own game"
	default:
		return "Room code rejected"
	}
}

// Error is returned when a code cannot be used to join.
type Error struct {
	Code   string
	Reason Reason
	Err    error // underlying store error, if any
}

func (e *Error) Error() string {
	return "roomcode: " + e.Code + ": " + e.Reason.Message()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasReason reports whether err is a rejection for the given reason.
func HasReason(err error, r Reason) bool {
	var re *Error
	return errors.As(err, &re) && re.Reason == r
}

// Getter is the part of the store Validate needs.
type Getter interface {
	Get(ctx context.Context, id string) (docstore.Session, error)
}

// Validate checks that code names a session a new player may join and
// returns its latest snapshot. Malformed codes are rejected without
// contacting the store.
func Validate(ctx context.Context, store Getter, code string) (docstore.Session, error) {
	code = Normalize(code)
	if !ValidFormat(code) {
		return docstore.Session{}, &Error{Code: code, Reason: ReasonInvalidFormat}
	}

	s, err := store.Get(ctx, code)
	if errors.Is(err, docstore.ErrNotFound) {
		return docstore.Session{}, &Error{Code: code, Reason: ReasonNotFound, Err: err}
	}
	if err != nil {
		return docstore.Session{}, err
	}

	if s.Status.Ended() {
		return s, &Error{Code: code, Reason: ReasonEnded}
	}
	if s.Status == docstore.StatusActive && s.GuestID != "" {
		return s, &Error{Code: code, Reason: ReasonFull}
	}
	return s, nil
}
