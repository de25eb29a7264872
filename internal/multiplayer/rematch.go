package multiplayer

import (
	"context"
	"errors"

	"github.com/vovakirdan/tui-tictac/internal/board"
	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

// RequestRematch sets role's rematch flag. Setting it again is harmless.
func (c *Coordinator) RequestRematch(ctx context.Context, id string, role docstore.Role) (docstore.Session, error) {
	if err := checkRole(role); err != nil {
		return docstore.Session{}, err
	}
	patch := docstore.Patch{SeenBy: role}
	if role == docstore.RoleHost {
		patch.HostWantsRematch = docstore.Ptr(true)
	} else {
		patch.GuestWantsRematch = docstore.Ptr(true)
	}

	s, err := c.store.UpdateIf(ctx, id,
		docstore.Precondition{Status: []docstore.Status{docstore.StatusCompleted}},
		patch,
	)
	if err != nil {
		return s, err
	}
	c.logger.Debug("Rematch requested", "session", id, "role", role)
	return s, nil
}

// StartRematch resets a completed session for a new round once both players
// asked for it. Either client may call it; the conditional write lets exactly
// one land. Losing that race is not an error: started is false and the
// returned session is the current document.
func (c *Coordinator) StartRematch(ctx context.Context, id string) (s docstore.Session, started bool, err error) {
	s, err = c.store.UpdateIf(ctx, id,
		docstore.Precondition{
			Status:        []docstore.Status{docstore.StatusCompleted},
			RematchAgreed: true,
		},
		docstore.Patch{
			Board:             &board.Board{},
			CurrentTurn:       docstore.Ptr(docstore.RoleHost),
			Status:            docstore.Ptr(docstore.StatusActive),
			Result:            &docstore.Result{Winner: docstore.WinnerNone},
			HostWantsRematch:  docstore.Ptr(false),
			GuestWantsRematch: docstore.Ptr(false),
			NextRound:         true,
		},
	)
	if errors.Is(err, docstore.ErrPreconditionFailed) {
		return s, false, nil
	}
	if err != nil {
		return s, false, err
	}

	c.logger.Info("Rematch started", "session", id, "round", s.Round)
	return s, true, nil
}

// Decline ends a completed session for good. The result of the last round
// stays on the document. Declining an already abandoned session is a no-op.
func (c *Coordinator) Decline(ctx context.Context, id string, role docstore.Role) error {
	if err := checkRole(role); err != nil {
		return err
	}
	cur, err := c.store.UpdateIf(ctx, id,
		docstore.Precondition{Status: []docstore.Status{docstore.StatusCompleted}},
		docstore.Patch{Status: docstore.Ptr(docstore.StatusAbandoned)},
	)
	if errors.Is(err, docstore.ErrPreconditionFailed) && cur.Status == docstore.StatusAbandoned {
		return nil
	}
	if err != nil {
		return err
	}
	c.logger.Info("Rematch declined", "session", id, "role", role)
	return nil
}
