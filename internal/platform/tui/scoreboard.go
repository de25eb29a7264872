package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/tui-tictac/internal/storage"
)

// Scoreboard layout constants
const (
	maxLeaders = 50 // Max players to load
)

// StatsSource provides the leaderboard. storage.Store implements it.
type StatsSource interface {
	Leaderboard(limit int) ([]storage.PlayerStats, error)
	PlayerStats(playerID string) (*storage.PlayerStats, error)
}

var _ StatsSource = (*storage.Store)(nil)

// ScoreboardModel shows the leaderboard and the local player's record.
type ScoreboardModel struct {
	stats    StatsSource
	playerID string
	leaders  []storage.PlayerStats
	mine     *storage.PlayerStats
	loadErr  error
	table    table.Model
	width    int
	height   int
}

// NewScoreboardModel creates a scoreboard and loads it.
func NewScoreboardModel(stats StatsSource, playerID string, width, height int) ScoreboardModel {
	m := ScoreboardModel{
		stats:    stats,
		playerID: playerID,
		width:    width,
		height:   height,
	}
	m.table = m.createTable()
	m.load()
	return m
}

// createTable creates a new table with appropriate columns.
func (m *ScoreboardModel) createTable() table.Model {
	columns := []table.Column{
		{Title: "#", Width: 4},
		{Title: "Player", Width: 18},
		{Title: "Wins X", Width: 7},
		{Title: "Wins O", Width: 7},
		{Title: "Losses", Width: 7},
		{Title: "Ties", Width: 5},
		{Title: "Games", Width: 6},
	}

	// Give spare width to the name column
	if spare := m.width - 4 - 62; spare > 0 {
		columns[1].Width += min(spare, 14)
	}

	height := m.height - 10 // Leave room for header, help, and margins
	if height < 3 {
		height = 3
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func (m *ScoreboardModel) load() {
	if m.stats == nil {
		return
	}
	m.leaders, m.loadErr = m.stats.Leaderboard(maxLeaders)
	if m.loadErr == nil && m.playerID != "" {
		m.mine, m.loadErr = m.stats.PlayerStats(m.playerID)
	}
	m.updateTableRows()
}

// updateTableRows updates the table with current stats.
func (m *ScoreboardModel) updateTableRows() {
	rows := make([]table.Row, len(m.leaders))
	for i, p := range m.leaders {
		rows[i] = table.Row{
			fmt.Sprintf("%d", i+1),
			p.DisplayName,
			fmt.Sprintf("%d", p.WinsAsX),
			fmt.Sprintf("%d", p.WinsAsO),
			fmt.Sprintf("%d", p.Losses),
			fmt.Sprintf("%d", p.Ties),
			fmt.Sprintf("%d", p.Games()),
		}
	}
	m.table.SetRows(rows)
	m.table.GotoTop()
}

// Update handles table navigation and resizing.
func (m ScoreboardModel) Update(msg tea.Msg) (ScoreboardModel, tea.Cmd) {
	if wsm, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = wsm.Width
		m.height = wsm.Height
		m.table = m.createTable()
		m.updateTableRows()
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the scoreboard.
func (m ScoreboardModel) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(centerText(titleStyle.Render("LEADERBOARD"), m.width))
	b.WriteString("\n\n")

	if m.mine != nil && m.mine.Games() > 0 {
		line := fmt.Sprintf("You: %d wins (X %d, O %d), %d losses, %d ties",
			m.mine.Wins(), m.mine.WinsAsX, m.mine.WinsAsO, m.mine.Losses, m.mine.Ties)
		b.WriteString(centerText(mutedStyle.Render(line), m.width))
		b.WriteString("\n\n")
	}

	b.WriteString(centerBlock(boxStyle.Render(m.renderTableContent()), m.width))
	return b.String()
}

// renderTableContent renders the table or empty message.
func (m ScoreboardModel) renderTableContent() string {
	emptyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Italic(true).
		Padding(2, 4)

	switch {
	case m.stats == nil:
		return emptyStyle.Render("Statistics are not available with this store.")
	case m.loadErr != nil:
		return errorStyle.Render("Could not load statistics: " + m.loadErr.Error())
	case len(m.leaders) == 0:
		return emptyStyle.Render("No games recorded yet.\nFinish a game to get on the board!")
	}
	return m.table.View()
}
