package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
	"github.com/vovakirdan/tui-tictac/internal/multiplayer"
	"github.com/vovakirdan/tui-tictac/internal/roomcode"
)

// Screen is the part of the flow the model is showing.
type Screen int

const (
	ScreenMenu       Screen = iota // Host, join, scores
	ScreenEnterCode                // Typing a room code
	ScreenConnecting               // Host or join request in flight
	ScreenLobby                    // Hosting, waiting for a guest
	ScreenGame                     // In a round or looking at its result
	ScreenScores                   // Leaderboard
)

// Model is the Bubble Tea model for one player.
type Model struct {
	session Session
	stats   StatsSource
	keys    KeyMap
	help    help.Model
	input   textinput.Model
	spinner spinner.Model
	menu    menu
	scores  ScoreboardModel

	screen  Screen
	view    multiplayer.ViewModel
	cursor  int
	leaving bool

	notice    string
	noticeErr bool
	noticeSeq int

	width    int
	height   int
	quitting bool
}

// NewModel creates the model. stats may be nil.
func NewModel(session Session, stats StatsSource, width, height int) Model {
	input := textinput.New()
	input.Placeholder = "ABC123"
	input.CharLimit = roomcode.Length
	input.Width = roomcode.Length + 1
	input.Prompt = "Code: "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	h := help.New()
	h.Width = width

	return Model{
		session: session,
		stats:   stats,
		keys:    DefaultKeyMap(),
		help:    h,
		input:   input,
		spinner: sp,
		menu:    newMenu(stats != nil),
		screen:  ScreenMenu,
		cursor:  4,
		width:   width,
		height:  height,
	}
}

// Init starts listening for session updates.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.session.Updates()), m.spinner.Tick)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if m.screen == ScreenScores {
			var cmd tea.Cmd
			m.scores, cmd = m.scores.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case updateMsg:
		m = m.applyUpdate(multiplayer.Update(msg))
		return m, tea.Batch(waitForUpdate(m.session.Updates()), m.noticeCmd())

	case updatesClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case hostedMsg:
		if msg.err != nil {
			m.screen = ScreenMenu
			return m, m.setError(msg.err)
		}
		if m.screen == ScreenConnecting {
			m.screen = ScreenLobby
		}
		if m.view.Code == "" {
			m.view.Code = msg.session.ID
		}
		return m, nil

	case joinedMsg:
		if msg.err != nil {
			m.screen = ScreenEnterCode
			m.input.Focus()
			return m, m.setError(msg.err)
		}
		if m.screen == ScreenConnecting {
			m.screen = ScreenGame
		}
		return m, nil

	case leftMsg:
		m.leaving = false
		m.screen = ScreenMenu
		m.view = multiplayer.ViewModel{}
		if msg.err != nil {
			return m, m.setError(msg.err)
		}
		return m, nil

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil
	}

	if m.screen == ScreenEnterCode {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) applyUpdate(u multiplayer.Update) Model {
	switch u.Kind {
	case multiplayer.UpdateSnapshot, multiplayer.UpdatePresence:
		if u.View.Round != m.view.Round {
			m.cursor = 4
		}
		m.view = u.View
		if u.View.Status == docstore.StatusActive && (m.screen == ScreenLobby || m.screen == ScreenConnecting) {
			m.screen = ScreenGame
		}

	case multiplayer.UpdateOutcome:
		m.view = u.View

	case multiplayer.UpdateError:
		m.view = u.View
		m.setNotice(u.Message(), true)

	case multiplayer.UpdateDetached:
		if m.leaving {
			return m
		}
		m.screen = ScreenMenu
		m.view = multiplayer.ViewModel{}
		if u.Err != nil {
			m.setNotice(u.Message(), true)
		}
	}
	return m
}

func (m *Model) setNotice(text string, isErr bool) {
	m.noticeSeq++
	m.notice = text
	m.noticeErr = isErr
}

func (m *Model) setError(err error) tea.Cmd {
	m.setNotice(multiplayer.UserMessage(err), true)
	return clearNoticeCmd(m.noticeSeq)
}

func (m Model) noticeCmd() tea.Cmd {
	if m.notice == "" {
		return nil
	}
	return clearNoticeCmd(m.noticeSeq)
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	switch m.screen {
	case ScreenMenu:
		return m.handleMenuKey(msg)
	case ScreenEnterCode:
		return m.handleCodeKey(msg)
	case ScreenConnecting:
		return m, nil
	case ScreenLobby:
		return m.handleLobbyKey(msg)
	case ScreenGame:
		return m.handleGameKey(msg)
	case ScreenScores:
		return m.handleScoresKey(msg)
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.screen == ScreenLobby || m.screen == ScreenGame {
		m.leaving = true
		return m, tea.Sequence(leaveCmd(m.session), tea.Quit)
	}
	return m, tea.Quit
}

func (m Model) handleMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Up):
		m.menu.up()
	case key.Matches(msg, m.keys.Down):
		m.menu.down()
	case msg.String() == "H":
		return m.startHost()
	case msg.String() == "J":
		return m.startJoin()
	case key.Matches(msg, m.keys.Select):
		switch m.menu.selected() {
		case MenuHost:
			return m.startHost()
		case MenuJoin:
			return m.startJoin()
		case MenuScores:
			m.scores = NewScoreboardModel(m.stats, m.session.Player().ID, m.width, m.height)
			m.screen = ScreenScores
		case MenuQuit:
			return m.quit()
		}
	}
	return m, nil
}

func (m Model) startHost() (tea.Model, tea.Cmd) {
	m.screen = ScreenConnecting
	m.notice = ""
	return m, hostCmd(m.session)
}

func (m Model) startJoin() (tea.Model, tea.Cmd) {
	m.screen = ScreenEnterCode
	m.notice = ""
	m.input.SetValue("")
	return m, m.input.Focus()
}

func (m Model) handleCodeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.screen = ScreenMenu
		return m, nil
	case "enter":
		code := roomcode.Normalize(m.input.Value())
		if !roomcode.ValidFormat(code) {
			return m, m.setError(&roomcode.Error{Code: code, Reason: roomcode.ReasonInvalidFormat})
		}
		m.input.Blur()
		m.screen = ScreenConnecting
		return m, joinCmd(m.session, code)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.input.SetValue(strings.ToUpper(m.input.Value()))
	return m, cmd
}

func (m Model) handleLobbyKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Back):
		m.leaving = true
		return m, leaveCmd(m.session)
	}
	return m, nil
}

func (m Model) handleGameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if i, ok := cellFromKey(msg); ok {
		m.cursor = i
		m.session.Play(i)
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Back):
		m.leaving = true
		return m, leaveCmd(m.session)
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		m.cursor = moveCursor(m.cursor, -1, 0)
	case key.Matches(msg, m.keys.Down):
		m.cursor = moveCursor(m.cursor, 1, 0)
	case key.Matches(msg, m.keys.Left):
		m.cursor = moveCursor(m.cursor, 0, -1)
	case key.Matches(msg, m.keys.Right):
		m.cursor = moveCursor(m.cursor, 0, 1)
	case key.Matches(msg, m.keys.Select):
		m.session.Play(m.cursor)
	case key.Matches(msg, m.keys.Rematch):
		if m.view.Status == docstore.StatusCompleted && !m.view.IWantRematch {
			m.session.RequestRematch()
		}
	}
	return m, nil
}

func (m Model) handleScoresKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Back):
		m.screen = ScreenMenu
		return m, nil
	}
	var cmd tea.Cmd
	m.scores, cmd = m.scores.Update(msg)
	return m, cmd
}

// View renders the current screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	switch m.screen {
	case ScreenMenu:
		b.WriteString(m.menu.view(m.session.Player().DisplayName(), m.width))
		b.WriteString("\n")
		b.WriteString(m.footer("Up/Down: Navigate  |  Enter: Select  |  Q: Quit"))
	case ScreenEnterCode:
		b.WriteString(m.viewEnterCode())
	case ScreenConnecting:
		b.WriteString("\n\n")
		b.WriteString(centerText(m.spinner.View()+" Connecting...", m.width))
		b.WriteString("\n")
	case ScreenLobby:
		b.WriteString(m.viewLobby())
	case ScreenGame:
		b.WriteString(m.viewGame())
	case ScreenScores:
		b.WriteString(m.scores.View())
		b.WriteString("\n")
		b.WriteString(m.footer("Up/Down: Scroll  |  Esc: Back  |  Q: Quit"))
	}

	if m.notice != "" {
		style := mutedStyle
		if m.noticeErr {
			style = errorStyle
		}
		b.WriteString("\n")
		b.WriteString(centerText(style.Render(m.notice), m.width))
	}
	return b.String()
}

func (m Model) footer(text string) string {
	return centerText(mutedStyle.Render(text), m.width)
}

func (m Model) viewEnterCode() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(centerText(titleStyle.Render("JOIN GAME"), m.width))
	b.WriteString("\n\n")
	b.WriteString(centerText("Enter the room code from your opponent:", m.width))
	b.WriteString("\n\n")
	b.WriteString(centerText(m.input.View(), m.width))
	b.WriteString("\n\n")
	b.WriteString(m.footer("Enter: Join  |  Esc: Back"))
	return b.String()
}

func (m Model) viewLobby() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(centerText(titleStyle.Render("HOSTING GAME"), m.width))
	b.WriteString("\n\n")
	b.WriteString(centerText("Share this code with your opponent:", m.width))
	b.WriteString("\n\n")
	b.WriteString(centerText(codeStyle.Render(m.view.Code), m.width))
	b.WriteString("\n\n")
	b.WriteString(centerText(m.spinner.View()+" Waiting for player to join...", m.width))
	b.WriteString("\n\n")
	b.WriteString(m.footer("Esc: Cancel  |  Q: Quit"))
	return b.String()
}

func (m Model) viewGame() string {
	vm := m.view
	var b strings.Builder

	b.WriteString("\n")
	header := fmt.Sprintf("Room %s  ·  Round %d  ·  You are %s", vm.Code, max(vm.Round, 1), vm.Symbol())
	b.WriteString(centerText(titleStyle.Render(header), m.width))
	b.WriteString("\n")
	b.WriteString(centerText(PresenceLine(vm), m.width))
	b.WriteString("\n\n")

	cursor := -1
	if vm.IsMyTurn {
		cursor = m.cursor
	}
	b.WriteString(centerBlock(boxStyle.Render(RenderBoard(vm, cursor)), m.width))
	b.WriteString("\n\n")
	b.WriteString(centerText(StatusLine(vm), m.width))
	b.WriteString("\n")
	if line := RematchLine(vm); line != "" {
		b.WriteString(centerText(mutedStyle.Render(line), m.width))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(centerBlock(m.help.View(m.keys), m.width))
	return b.String()
}

// Screen returns the current screen.
func (m Model) Screen() Screen {
	return m.screen
}

// ViewModel returns the last session view the model received.
func (m Model) ViewModel() multiplayer.ViewModel {
	return m.view
}

// Notice returns the message currently shown, if any.
func (m Model) Notice() string {
	return m.notice
}

// IsQuitting returns true if user wants to quit entirely.
func (m Model) IsQuitting() bool {
	return m.quitting
}

// Run runs the client UI in the current terminal until the player quits.
func Run(session Session, stats StatsSource, width, height int) error {
	p := tea.NewProgram(
		NewModel(session, stats, width, height),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
