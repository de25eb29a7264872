package tui

import (
	"fmt"
	"strings"
)

// MenuAction is what a menu entry does when selected.
type MenuAction int

const (
	MenuHost MenuAction = iota
	MenuJoin
	MenuScores
	MenuQuit
)

// MenuItem represents a selectable entry in the main menu.
type MenuItem struct {
	Title  string
	Action MenuAction
}

// menu is the main menu state: host, join, scores, quit.
type menu struct {
	items  []MenuItem
	cursor int
}

func newMenu(withScores bool) menu {
	items := []MenuItem{
		{Title: "Host a game", Action: MenuHost},
		{Title: "Join a game", Action: MenuJoin},
	}
	if withScores {
		items = append(items, MenuItem{Title: "Leaderboard", Action: MenuScores})
	}
	items = append(items, MenuItem{Title: "Quit", Action: MenuQuit})
	return menu{items: items}
}

func (m *menu) up() {
	if m.cursor > 0 {
		m.cursor--
	}
}

func (m *menu) down() {
	if m.cursor < len(m.items)-1 {
		m.cursor++
	}
}

func (m menu) selected() MenuAction {
	return m.items[m.cursor].Action
}

func (m menu) view(playerName string, width int) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(centerText(titleStyle.Render("  T I C   T A C   T O E  "), width))
	b.WriteString("\n\n")
	b.WriteString(centerText(mutedStyle.Render(fmt.Sprintf("Playing as %s", playerName)), width))
	b.WriteString("\n\n")

	for i, item := range m.items {
		cursor := "  "
		line := item.Title
		if i == m.cursor {
			cursor = "> "
			line = titleStyle.Render(line)
		}
		b.WriteString(centerText(cursor+line, width))
		b.WriteString("\n")
	}
	return b.String()
}
