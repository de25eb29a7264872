// Package tui provides the Bubble Tea client for tictac, used both for local
// play and for players connected over SSH.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// noticeTimeout is how long a transient notice stays on screen.
const noticeTimeout = 4 * time.Second

// clearNoticeMsg expires the notice with the same sequence number.
type clearNoticeMsg struct {
	seq int
}

// clearNoticeCmd returns a Bubble Tea command that expires a notice after noticeTimeout.
func clearNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(noticeTimeout, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}
