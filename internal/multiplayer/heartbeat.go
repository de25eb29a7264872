package multiplayer

import (
	"context"
	"errors"
	"time"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

// Beat stamps role's lastSeen with the store clock. It only lands while the
// session is waiting or active.
func (c *Coordinator) Beat(ctx context.Context, id string, role docstore.Role) error {
	if err := checkRole(role); err != nil {
		return err
	}
	_, err := c.store.UpdateIf(ctx, id,
		docstore.Precondition{Status: []docstore.Status{docstore.StatusWaiting, docstore.StatusActive}},
		docstore.Patch{SeenBy: role},
	)
	return err
}

// RunHeartbeat beats immediately and then every HeartbeatInterval until ctx
// is done, the session disappears, or attached stops returning id. Failed
// beats are logged and left to the next tick.
func (c *Coordinator) RunHeartbeat(ctx context.Context, id string, role docstore.Role, attached func() string) {
	logger := c.logger.With("session", id, "role", role)

	stillAttached := func() bool {
		return attached == nil || attached() == id
	}

	beat := func() bool {
		err := c.Beat(ctx, id, role)
		switch {
		case err == nil:
			return true
		case errors.Is(err, docstore.ErrNotFound):
			logger.Debug("Heartbeat stopped, session gone")
			return false
		case errors.Is(err, docstore.ErrPreconditionFailed):
			// Completed or abandoned; nothing to keep alive until a rematch.
			logger.Debug("Heartbeat skipped", "error", err)
		case ctx.Err() != nil:
			return false
		default:
			logger.Warn("Heartbeat failed", "error", err)
		}
		return true
	}

	if !stillAttached() || !beat() {
		return
	}

	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !stillAttached() {
				logger.Debug("Heartbeat stopped, client detached")
				return
			}
			if !beat() {
				return
			}
		}
	}
}

// Presence is the derived connection state of the peer.
type Presence int

const (
	PresenceUnknown      Presence = iota // no peer in the session yet
	PresenceConnected                    // peer beat within the threshold
	PresenceDisconnected                 // peer silent for the threshold or longer
)

func (p Presence) String() string {
	switch p {
	case PresenceConnected:
		return "connected"
	case PresenceDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// PeerPresence derives whether the peer of self looks connected. It is a
// presentation signal only and never changes the session status.
func PeerPresence(s docstore.Session, self docstore.Role, now time.Time, threshold time.Duration) Presence {
	peer := self.Other()
	if s.PlayerID(peer) == "" {
		return PresenceUnknown
	}
	seen := s.LastSeen(peer)
	if seen.IsZero() {
		return PresenceUnknown
	}
	if now.Sub(seen) < threshold {
		return PresenceConnected
	}
	return PresenceDisconnected
}
