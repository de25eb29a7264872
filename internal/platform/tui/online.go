package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
	"github.com/vovakirdan/tui-tictac/internal/multiplayer"
)

// requestTimeout bounds a host, join or leave round trip.
const requestTimeout = 10 * time.Second

// Session is the part of multiplayer.Client the UI drives.
type Session interface {
	Player() multiplayer.Player
	Updates() <-chan multiplayer.Update
	Host(ctx context.Context) (docstore.Session, error)
	Join(ctx context.Context, code string) (docstore.Session, error)
	Play(index int)
	RequestRematch()
	Leave(ctx context.Context) error
}

var _ Session = (*multiplayer.Client)(nil)

// updateMsg wraps an update from the session client.
type updateMsg multiplayer.Update

// updatesClosedMsg is sent once the client stops delivering updates.
type updatesClosedMsg struct{}

type hostedMsg struct {
	session docstore.Session
	err     error
}

type joinedMsg struct {
	session docstore.Session
	err     error
}

type leftMsg struct {
	err error
}

// waitForUpdate returns a command that waits for the next client update.
func waitForUpdate(updates <-chan multiplayer.Update) tea.Cmd {
	return func() tea.Msg {
		if updates == nil {
			return nil
		}
		u, ok := <-updates
		if !ok {
			return updatesClosedMsg{}
		}
		return updateMsg(u)
	}
}

func hostCmd(s Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		sess, err := s.Host(ctx)
		return hostedMsg{session: sess, err: err}
	}
}

func joinCmd(s Session, code string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		sess, err := s.Join(ctx, code)
		return joinedMsg{session: sess, err: err}
	}
}

func leaveCmd(s Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return leftMsg{err: s.Leave(ctx)}
	}
}
