package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/tui-tictac/internal/board"
	"github.com/vovakirdan/tui-tictac/internal/docstore"
	"github.com/vovakirdan/tui-tictac/internal/multiplayer"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	codeStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Padding(0, 2)
	gridStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	xStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	oStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	winStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("22"))
	pendingStyle = lipgloss.NewStyle().Faint(true)
	cursorStyle  = lipgloss.NewStyle().Reverse(true)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

const cellWidth = 5

// RenderBoard draws the 3x3 grid. cursor < 0 hides the cursor.
func RenderBoard(vm multiplayer.ViewModel, cursor int) string {
	var sb strings.Builder
	sep := gridStyle.Render(strings.Repeat("─", cellWidth) + "┼" + strings.Repeat("─", cellWidth) + "┼" + strings.Repeat("─", cellWidth))
	bar := gridStyle.Render("│")

	for row := range 3 {
		if row > 0 {
			sb.WriteString("\n")
			sb.WriteString(sep)
			sb.WriteString("\n")
		}
		for col := range 3 {
			if col > 0 {
				sb.WriteString(bar)
			}
			sb.WriteString(renderCell(vm, row*3+col, cursor))
		}
	}
	return sb.String()
}

func renderCell(vm multiplayer.ViewModel, i, cursor int) string {
	sym := vm.Board[i]
	text := " "
	if sym != board.Empty {
		text = string(sym)
	} else if cursor < 0 {
		text = mutedStyle.Render(fmt.Sprintf("%d", i+1))
	}
	cell := lipgloss.PlaceHorizontal(cellWidth, lipgloss.Center, text)

	style := lipgloss.NewStyle()
	switch sym {
	case board.X:
		style = xStyle
	case board.O:
		style = oStyle
	}
	switch {
	case vm.InWinningLine(i):
		style = winStyle
	case i == vm.Pending:
		style = style.Inherit(pendingStyle)
	}
	if i == cursor {
		style = style.Inherit(cursorStyle)
	}
	return style.Render(cell)
}

// StatusLine describes whose turn it is or how the round ended.
func StatusLine(vm multiplayer.ViewModel) string {
	switch vm.Status {
	case docstore.StatusWaiting:
		return "Waiting for an opponent to join..."
	case docstore.StatusActive:
		switch {
		case vm.Pending >= 0:
			return "Sending move..."
		case vm.IsMyTurn:
			return fmt.Sprintf("Your turn (%s)", vm.Symbol())
		default:
			return fmt.Sprintf("%s's turn", nameOr(vm.OpponentName, "Opponent"))
		}
	case docstore.StatusCompleted, docstore.StatusAbandoned:
		res, ok := vm.Result()
		if !ok {
			return "Game over"
		}
		suffix := ""
		if vm.Status == docstore.StatusAbandoned {
			suffix = " (opponent left)"
			if res == multiplayer.ResultLoss {
				suffix = " (you left)"
			}
		}
		switch res {
		case multiplayer.ResultWin:
			return "You won!" + suffix
		case multiplayer.ResultLoss:
			return "You lost" + suffix
		default:
			return "It's a draw"
		}
	}
	return ""
}

// RematchLine describes the rematch negotiation after a completed round.
func RematchLine(vm multiplayer.ViewModel) string {
	if vm.Status != docstore.StatusCompleted {
		return ""
	}
	switch {
	case vm.IWantRematch && vm.OpponentWantsRematch:
		return "Starting next round..."
	case vm.IWantRematch:
		return "Waiting for opponent to accept rematch..."
	case vm.OpponentWantsRematch:
		return "Opponent wants a rematch! Press r to accept"
	default:
		return "Press r for a rematch"
	}
}

// PresenceLine shows the opponent and their connection state.
func PresenceLine(vm multiplayer.ViewModel) string {
	if vm.OpponentName == "" {
		return ""
	}
	state := "connected"
	style := mutedStyle
	if vm.Presence == multiplayer.PresenceDisconnected {
		state = "disconnected"
		style = errorStyle
	}
	return style.Render(fmt.Sprintf("vs %s (%s)", vm.OpponentName, state))
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// centerText centers text within given width.
func centerText(text string, width int) string {
	w := lipgloss.Width(text)
	if w >= width {
		return text
	}
	return strings.Repeat(" ", (width-w)/2) + text
}

// centerBlock centers every line of a multi-line block.
func centerBlock(block string, width int) string {
	if lipgloss.Width(block) >= width {
		return block
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, block)
}
