// Package remote exposes a docstore.Store over a websocket so several
// processes can share one authoritative session store. The Server wraps any
// Store; the Client implements Store by forwarding calls to a Server.
//
// Every frame is one JSON message. Requests carry a connection-unique id that
// the reply echoes. Subscription events are pushed with the id of the
// subscribe request that opened them.
package remote

import (
	"errors"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

// Op names a store operation on the wire.
type Op string

const (
	OpCreate      Op = "create"
	OpGet         Op = "get"
	OpUpdate      Op = "update"
	OpSubscribe   Op = "subscribe"
	OpUnsubscribe Op = "unsubscribe"
	OpQuery       Op = "query"
	OpDelete      Op = "delete"
)

// Request is a client to server frame.
type Request struct {
	ID        uint64                 `json:"id"`
	Op        Op                     `json:"op"`
	SessionID string                 `json:"sessionId,omitempty"`
	Session   *docstore.Session      `json:"session,omitempty"`
	Cond      *docstore.Precondition `json:"cond,omitempty"`
	Patch     *docstore.Patch        `json:"patch,omitempty"`
	Filter    *docstore.Filter       `json:"filter,omitempty"`
	Limit     int                    `json:"limit,omitempty"`
	IDs       []string               `json:"ids,omitempty"`
}

// Kind tells replies from pushed events.
type Kind string

const (
	KindReply Kind = "reply"
	KindEvent Kind = "event"
)

// Message is a server to client frame.
type Message struct {
	Kind Kind   `json:"kind"`
	ID   uint64 `json:"id"`

	Code   Code   `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`

	Session  *docstore.Session  `json:"session,omitempty"`
	Sessions []docstore.Session `json:"sessions,omitempty"`

	// Event fields
	Deleted bool `json:"deleted,omitempty"`
	End     bool `json:"end,omitempty"` // feed ended on the server
}

// Code is a wire error class.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeExists       Code = "already_exists"
	CodePrecondition Code = "precondition_failed"
	CodeUnavailable  Code = "unavailable"
	CodeBadRequest   Code = "bad_request"
	CodeInternal     Code = "internal"
)

var codes = []struct {
	code Code
	err  error
}{
	{CodeNotFound, docstore.ErrNotFound},
	{CodeExists, docstore.ErrAlreadyExists},
	{CodePrecondition, docstore.ErrPreconditionFailed},
	{CodeUnavailable, docstore.ErrUnavailable},
}

// CodeOf classifies err for the wire.
func CodeOf(err error) Code {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Error is a failure reported by the server. It unwraps to the matching
// docstore sentinel so callers can keep using errors.Is.
type Error struct {
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "remote: " + string(e.Code)
}

func (e *Error) Unwrap() error {
	for _, c := range codes {
		if c.code == e.Code {
			return c.err
		}
	}
	return nil
}

func replyErr(id uint64, err error) Message {
	return Message{Kind: KindReply, ID: id, Code: CodeOf(err), Detail: err.Error()}
}
