// Package docstore defines the shared session document, the conditional-write
// store contract every backend implements, and an in-process implementation.
//
// The store offers no locks and no multi-document transactions. Writers read
// the latest snapshot, validate it, and submit an UpdateIf whose Precondition
// covers the fields they depend on; the store applies it atomically or
// returns ErrPreconditionFailed.
package docstore

import (
	"context"
	"errors"
	"slices"
	"time"
)

var (
	ErrNotFound           = errors.New("docstore: session not found")
	ErrAlreadyExists      = errors.New("docstore: session already exists")
	ErrPreconditionFailed = errors.New("docstore: precondition failed")
	ErrUnavailable        = errors.New("docstore: store unavailable")
)

// Store is the session store capability consumed by the core.
type Store interface {
	// Create inserts a new document. Fails with ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, s Session) (Session, error)

	// Get returns the latest snapshot or ErrNotFound.
	Get(ctx context.Context, id string) (Session, error)

	// UpdateIf atomically applies patch when cond holds on the stored document.
	// On ErrPreconditionFailed the returned session is the current document.
	UpdateIf(ctx context.Context, id string, cond Precondition, patch Patch) (Session, error)

	// Subscribe opens an ordered snapshot feed. The first event carries the
	// current snapshot. The feed ends when ctx is done or Close is called.
	Subscribe(ctx context.Context, id string) (*Subscription, error)

	// Query lists documents matching filter, oldest activity first.
	Query(ctx context.Context, filter Filter, limit int) ([]Session, error)

	// BatchDelete removes the given documents. Missing ids are ignored.
	BatchDelete(ctx context.Context, ids []string) error
}

// Filter selects documents for Query.
type Filter struct {
	Status         []Status  `json:"status,omitempty"`
	InactiveBefore time.Time `json:"inactiveBefore,omitempty"` // lastActivityAt strictly before
}

// Match reports whether s passes the filter.
func (f Filter) Match(s Session) bool {
	if len(f.Status) > 0 && !slices.Contains(f.Status, s.Status) {
		return false
	}
	if !f.InactiveBefore.IsZero() && !s.LastActivityAt.Before(f.InactiveBefore) {
		return false
	}
	return true
}
