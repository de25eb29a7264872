package multiplayer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/tui-tictac/internal/board"
	"github.com/vovakirdan/tui-tictac/internal/docstore"
	"github.com/vovakirdan/tui-tictac/internal/roomcode"
)

// CoordinatorConfig holds configuration for the coordinator.
type CoordinatorConfig struct {
	HeartbeatInterval   time.Duration // How often an attached client stamps its lastSeen
	DisconnectThreshold time.Duration // Peer silence before it is shown as disconnected
	StaleAfter          time.Duration // Inactivity before garbage collection reclaims a session
	GCBatchSize         int           // Sessions examined per sweep
	GCPeriod            time.Duration // How often the janitor sweeps
	CodeAttempts        int           // Room code collision retries
	WriteRetries        int           // Re-reads allowed when a leave loses a race
}

// DefaultCoordinatorConfig returns sensible defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		HeartbeatInterval:   10 * time.Second,
		DisconnectThreshold: 30 * time.Second,
		StaleAfter:          time.Hour,
		GCBatchSize:         100,
		GCPeriod:            5 * time.Minute,
		CodeAttempts:        roomcode.MaxAttempts,
		WriteRetries:        3,
	}
}

func (c CoordinatorConfig) withDefaults() CoordinatorConfig {
	d := DefaultCoordinatorConfig()
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.DisconnectThreshold <= 0 {
		c.DisconnectThreshold = d.DisconnectThreshold
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.GCBatchSize <= 0 {
		c.GCBatchSize = d.GCBatchSize
	}
	if c.GCPeriod <= 0 {
		c.GCPeriod = d.GCPeriod
	}
	if c.CodeAttempts <= 0 {
		c.CodeAttempts = d.CodeAttempts
	}
	if c.WriteRetries <= 0 {
		c.WriteRetries = d.WriteRetries
	}
	return c
}

// Coordinator runs the session state machine against a shared store.
// It holds no session state of its own: every operation re-reads the latest
// snapshot and writes through a conditional update, so any number of
// coordinators (one per client process) can act on the same session.
type Coordinator struct {
	config CoordinatorConfig
	store  docstore.Store
	logger *log.Logger
	codes  roomcode.Generator
	now    func() time.Time
}

// NewCoordinator creates a coordinator. A nil logger discards output.
func NewCoordinator(store docstore.Store, cfg CoordinatorConfig, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Coordinator{
		config: cfg.withDefaults(),
		store:  store,
		logger: logger,
		codes:  roomcode.Generate,
		now:    time.Now,
	}
}

// SetCodeGenerator replaces the room code source.
func (c *Coordinator) SetCodeGenerator(gen roomcode.Generator) {
	c.codes = gen
}

// SetClock replaces the local clock used for presence and staleness.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// Config returns the effective configuration.
func (c *Coordinator) Config() CoordinatorConfig {
	return c.config
}

// Store returns the backing session store.
func (c *Coordinator) Store() docstore.Store {
	return c.store
}

// Create opens a new session hosted by host and returns it in the waiting state.
func (c *Coordinator) Create(ctx context.Context, host Player) (docstore.Session, error) {
	if host.ID == "" {
		return docstore.Session{}, &ValidationError{Field: "player", Reason: "missing player id"}
	}

	s, err := roomcode.Reserve(ctx, c.store, c.codes, c.config.CodeAttempts, func(code string) docstore.Session {
		s := docstore.NewSession(code, host.ID, host.DisplayName())
		s.HostLastSeen = c.now()
		return s
	})
	if err != nil {
		c.logger.Error("Create session failed", "host", host.ID, "error", err)
		return docstore.Session{}, err
	}

	c.logger.Info("Session created", "session", s.ID, "host", host.DisplayName())
	return s, nil
}

// Join binds guest to the session behind code and starts the game.
// A guest that loses the join race gets a *roomcode.Error with ReasonFull.
func (c *Coordinator) Join(ctx context.Context, code string, guest Player) (docstore.Session, error) {
	if guest.ID == "" {
		return docstore.Session{}, &ValidationError{Field: "player", Reason: "missing player id"}
	}

	s, err := roomcode.Validate(ctx, c.store, code)
	if err != nil {
		return docstore.Session{}, err
	}
	if s.HostID == guest.ID {
		return docstore.Session{}, &roomcode.Error{Code: s.ID, Reason: roomcode.ReasonOwnGame}
	}

	joined, err := c.store.UpdateIf(ctx, s.ID,
		docstore.Precondition{
			Status:     []docstore.Status{docstore.StatusWaiting},
			GuestUnset: true,
		},
		docstore.Patch{
			GuestID:   docstore.Ptr(guest.ID),
			GuestName: docstore.Ptr(guest.DisplayName()),
			Status:    docstore.Ptr(docstore.StatusActive),
			SeenBy:    docstore.RoleGuest,
		},
	)
	switch {
	case errors.Is(err, docstore.ErrPreconditionFailed):
		reason := roomcode.ReasonFull
		if joined.Status.Ended() {
			reason = roomcode.ReasonEnded
		}
		c.logger.Debug("Join race lost", "session", s.ID, "guest", guest.ID)
		return docstore.Session{}, &roomcode.Error{Code: s.ID, Reason: reason, Err: err}
	case errors.Is(err, docstore.ErrNotFound):
		return docstore.Session{}, &roomcode.Error{Code: s.ID, Reason: roomcode.ReasonNotFound, Err: err}
	case err != nil:
		return docstore.Session{}, err
	}

	c.logger.Info("Guest joined", "session", joined.ID, "guest", guest.DisplayName())
	return joined, nil
}

// Move places role's symbol at index. The move is validated against a fresh
// read and written conditionally on that exact board, so a replayed or
// racing move can never be applied twice.
func (c *Coordinator) Move(ctx context.Context, id string, role docstore.Role, index int) (docstore.Session, error) {
	if err := checkRole(role); err != nil {
		return docstore.Session{}, err
	}
	if !board.ValidIndex(index) {
		return docstore.Session{}, &ValidationError{Field: "cell", Reason: fmt.Sprintf("cell %d is off the board", index)}
	}

	s, err := c.store.Get(ctx, id)
	if err != nil {
		return docstore.Session{}, err
	}

	switch {
	case s.Status != docstore.StatusActive:
		return s, &MoveError{Index: index, Reason: fmt.Sprintf("game is %s", s.Status)}
	case s.CurrentTurn != role:
		return s, &MoveError{Index: index, Reason: "not your turn"}
	case s.Board[index] != board.Empty:
		return s, &MoveError{Index: index, Reason: "cell already taken"}
	}

	next, err := s.Board.Place(index, role.Symbol())
	if err != nil {
		return s, &MoveError{Index: index, Reason: err.Error()}
	}

	patch := docstore.Patch{
		Board:       &next,
		CurrentTurn: docstore.Ptr(role.Other()),
		SeenBy:      role,
	}
	if out := board.Evaluate(next); out.Terminal() {
		result := &docstore.Result{Winner: docstore.WinnerDraw}
		if !out.Draw {
			result = &docstore.Result{Winner: docstore.WinnerFor(role), Line: out.Line.Ints()}
		}
		patch.Status = docstore.Ptr(docstore.StatusCompleted)
		patch.Result = result
	}

	updated, err := c.store.UpdateIf(ctx, id,
		docstore.Precondition{
			Status: []docstore.Status{docstore.StatusActive},
			Turn:   role,
			Board:  &s.Board,
		},
		patch,
	)
	if errors.Is(err, docstore.ErrPreconditionFailed) {
		return updated, &MoveError{Index: index, Reason: "game state changed", Err: err}
	}
	if err != nil {
		return docstore.Session{}, err
	}

	if updated.Status == docstore.StatusCompleted {
		c.logger.Info("Game finished", "session", id, "round", updated.Round, "winner", updated.Winner)
	}
	return updated, nil
}

// Leave detaches role from the session. A waiting session is deleted, an
// active one is abandoned with the other role as winner, and a completed one
// is declined. Leaving an abandoned or missing session is a no-op.
func (c *Coordinator) Leave(ctx context.Context, id string, role docstore.Role) error {
	if err := checkRole(role); err != nil {
		return err
	}
	for range c.config.WriteRetries {
		s, err := c.store.Get(ctx, id)
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		switch s.Status {
		case docstore.StatusWaiting:
			err = c.closeWaiting(ctx, s)
		case docstore.StatusActive:
			_, err = c.store.UpdateIf(ctx, id,
				docstore.Precondition{Status: []docstore.Status{docstore.StatusActive}},
				docstore.Patch{
					Status: docstore.Ptr(docstore.StatusAbandoned),
					Result: &docstore.Result{Winner: docstore.WinnerFor(role.Other())},
				},
			)
			if err == nil {
				c.logger.Info("Player left active game", "session", id, "role", role)
			}
		case docstore.StatusCompleted:
			err = c.Decline(ctx, id, role)
		default:
			return nil
		}

		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		if !errors.Is(err, docstore.ErrPreconditionFailed) {
			return err
		}
		// Lost a race; re-evaluate against the new state.
	}
	return fmt.Errorf("multiplayer: leave %s: %w", id, docstore.ErrPreconditionFailed)
}

// closeWaiting marks a guestless session abandoned, then deletes it. The mark
// fails if a guest joined in between, which turns the leave into an
// active-game leave on the next pass.
func (c *Coordinator) closeWaiting(ctx context.Context, s docstore.Session) error {
	_, err := c.store.UpdateIf(ctx, s.ID,
		docstore.Precondition{
			Status:     []docstore.Status{docstore.StatusWaiting},
			GuestUnset: true,
		},
		docstore.Patch{Status: docstore.Ptr(docstore.StatusAbandoned)},
	)
	if err != nil {
		return err
	}
	if err := c.store.BatchDelete(ctx, []string{s.ID}); err != nil {
		return err
	}
	c.logger.Info("Waiting session closed", "session", s.ID)
	return nil
}

// GCReport summarizes one garbage collection sweep.
type GCReport struct {
	Scanned   int
	Deleted   int
	Abandoned int
	Skipped   int // touched by a player between query and write
}

// CollectGarbage reclaims waiting and active sessions with no activity for
// StaleAfter. Waiting sessions are deleted, active ones are abandoned without
// a winner. Completed and abandoned sessions are never touched.
func (c *Coordinator) CollectGarbage(ctx context.Context) (GCReport, error) {
	var report GCReport

	stale, err := c.store.Query(ctx, docstore.Filter{
		Status:         []docstore.Status{docstore.StatusWaiting, docstore.StatusActive},
		InactiveBefore: c.now().Add(-c.config.StaleAfter),
	}, c.config.GCBatchSize)
	if err != nil {
		return report, fmt.Errorf("multiplayer: query stale sessions: %w", err)
	}
	report.Scanned = len(stale)

	var (
		toDelete []string
		firstErr error
	)
	for _, s := range stale {
		// The version guard skips sessions that saw activity after the query.
		cond := docstore.Precondition{Status: []docstore.Status{s.Status}, Version: s.Version}
		patch := docstore.Patch{Status: docstore.Ptr(docstore.StatusAbandoned)}
		if s.Status == docstore.StatusActive {
			patch.Result = &docstore.Result{Winner: docstore.WinnerNone}
		}

		_, err := c.store.UpdateIf(ctx, s.ID, cond, patch)
		switch {
		case errors.Is(err, docstore.ErrPreconditionFailed), errors.Is(err, docstore.ErrNotFound):
			report.Skipped++
			continue
		case err != nil:
			c.logger.Warn("GC write failed", "session", s.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if s.Status == docstore.StatusWaiting {
			toDelete = append(toDelete, s.ID)
		} else {
			report.Abandoned++
		}
	}

	if len(toDelete) > 0 {
		if err := c.store.BatchDelete(ctx, toDelete); err != nil {
			return report, fmt.Errorf("multiplayer: delete stale sessions: %w", err)
		}
		report.Deleted = len(toDelete)
	}

	if report.Scanned > 0 {
		c.logger.Info("GC sweep",
			"scanned", report.Scanned,
			"deleted", report.Deleted,
			"abandoned", report.Abandoned,
			"skipped", report.Skipped)
	}
	return report, firstErr
}
