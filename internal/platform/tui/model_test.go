package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/tui-tictac/internal/board"
	"github.com/vovakirdan/tui-tictac/internal/docstore"
	"github.com/vovakirdan/tui-tictac/internal/multiplayer"
)

type fakeSession struct {
	updates  chan multiplayer.Update
	played   []int
	rematch  int
	joined   []string
	hosted   int
	left     int
	joinErr  error
	sessions docstore.Session
}

func newFakeSession() *fakeSession {
	return &fakeSession{updates: make(chan multiplayer.Update, 8)}
}

func (f *fakeSession) Player() multiplayer.Player {
	return multiplayer.Player{ID: "p1", Name: "alice"}
}

func (f *fakeSession) Updates() <-chan multiplayer.Update { return f.updates }

func (f *fakeSession) Host(ctx context.Context) (docstore.Session, error) {
	f.hosted++
	return docstore.NewSession("ABC234", "p1", "alice"), nil
}

func (f *fakeSession) Join(ctx context.Context, code string) (docstore.Session, error) {
	f.joined = append(f.joined, code)
	return f.sessions, f.joinErr
}

func (f *fakeSession) Play(index int) { f.played = append(f.played, index) }

func (f *fakeSession) RequestRematch() { f.rematch++ }

func (f *fakeSession) Leave(ctx context.Context) error {
	f.left++
	return nil
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func activeView(role docstore.Role, myTurn bool) multiplayer.ViewModel {
	return multiplayer.ViewModel{
		Code:     "ABC234",
		Role:     role,
		Round:    1,
		Status:   docstore.StatusActive,
		IsMyTurn: myTurn,
		Pending:  -1,
	}
}

// inGame drives a fresh model to the game screen through the host flow.
func inGame(t *testing.T, f *fakeSession, vm multiplayer.ViewModel) Model {
	t.Helper()
	m := NewModel(f, nil, 80, 24)
	m, _ = send(t, m, keyRunes("H"))
	if m.Screen() != ScreenConnecting {
		t.Fatalf("screen after H = %v, want connecting", m.Screen())
	}
	m, _ = send(t, m, updateMsg(multiplayer.Update{Kind: multiplayer.UpdateSnapshot, View: vm}))
	if m.Screen() != ScreenGame {
		t.Fatalf("screen after active snapshot = %v, want game", m.Screen())
	}
	return m
}

func TestHostFlowShowsLobbyUntilGuestJoins(t *testing.T) {
	f := newFakeSession()
	m := NewModel(f, nil, 80, 24)

	m, cmd := send(t, m, keyRunes("H"))
	if cmd == nil {
		t.Fatal("expected host command")
	}
	m, _ = send(t, m, cmd())
	if f.hosted != 1 {
		t.Fatalf("Host called %d times, want 1", f.hosted)
	}
	if m.Screen() != ScreenLobby {
		t.Fatalf("screen = %v, want lobby", m.Screen())
	}
	if !strings.Contains(m.View(), "ABC234") {
		t.Error("lobby should show the room code")
	}

	m, _ = send(t, m, updateMsg(multiplayer.Update{
		Kind: multiplayer.UpdateSnapshot,
		View: activeView(docstore.RoleHost, true),
	}))
	if m.Screen() != ScreenGame {
		t.Errorf("screen = %v, want game", m.Screen())
	}
}

func TestJoinRejectsMalformedCodeLocally(t *testing.T) {
	f := newFakeSession()
	m := NewModel(f, nil, 80, 24)

	m, _ = send(t, m, keyRunes("J"))
	if m.Screen() != ScreenEnterCode {
		t.Fatalf("screen = %v, want enter code", m.Screen())
	}
	m, _ = send(t, m, keyRunes("ab"))
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.Screen() != ScreenEnterCode {
		t.Errorf("screen = %v, want enter code", m.Screen())
	}
	if m.Notice() == "" {
		t.Error("expected an error notice")
	}
	if len(f.joined) != 0 {
		t.Errorf("Join should not be called, got %v", f.joined)
	}
}

func TestJoinNormalizesCode(t *testing.T) {
	f := newFakeSession()
	m := NewModel(f, nil, 80, 24)

	m, _ = send(t, m, keyRunes("J"))
	m, _ = send(t, m, keyRunes("abc234"))
	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.Screen() != ScreenConnecting {
		t.Fatalf("screen = %v, want connecting", m.Screen())
	}
	if cmd == nil {
		t.Fatal("expected join command")
	}
	m, _ = send(t, m, cmd())

	if len(f.joined) != 1 || f.joined[0] != "ABC234" {
		t.Errorf("joined = %v, want [ABC234]", f.joined)
	}
	if m.Screen() != ScreenGame {
		t.Errorf("screen = %v, want game", m.Screen())
	}
}

func TestJoinFailureReturnsToCodeEntry(t *testing.T) {
	f := newFakeSession()
	f.joinErr = docstore.ErrNotFound
	m := NewModel(f, nil, 80, 24)

	m, _ = send(t, m, keyRunes("J"))
	m, _ = send(t, m, keyRunes("ABC234"))
	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = send(t, m, cmd())

	if m.Screen() != ScreenEnterCode {
		t.Errorf("screen = %v, want enter code", m.Screen())
	}
	if m.Notice() != multiplayer.UserMessage(docstore.ErrNotFound) {
		t.Errorf("notice = %q", m.Notice())
	}
}

func TestGameKeysPlayCells(t *testing.T) {
	f := newFakeSession()
	m := inGame(t, f, activeView(docstore.RoleHost, true))

	m, _ = send(t, m, keyRunes("5"))
	m, _ = send(t, m, keyRunes("l"))
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	want := []int{4, 5}
	if len(f.played) != len(want) {
		t.Fatalf("played = %v, want %v", f.played, want)
	}
	for i := range want {
		if f.played[i] != want[i] {
			t.Errorf("played[%d] = %d, want %d", i, f.played[i], want[i])
		}
	}
}

func TestRematchOnlyAfterCompletedRound(t *testing.T) {
	f := newFakeSession()
	m := inGame(t, f, activeView(docstore.RoleHost, true))

	m, _ = send(t, m, keyRunes("r"))
	if f.rematch != 0 {
		t.Fatal("rematch requested during an active round")
	}

	done := activeView(docstore.RoleHost, false)
	done.Status = docstore.StatusCompleted
	done.Winner = docstore.WinnerHost
	m, _ = send(t, m, updateMsg(multiplayer.Update{Kind: multiplayer.UpdateSnapshot, View: done}))
	m, _ = send(t, m, keyRunes("r"))
	if f.rematch != 1 {
		t.Fatalf("rematch = %d, want 1", f.rematch)
	}

	done.IWantRematch = true
	m, _ = send(t, m, updateMsg(multiplayer.Update{Kind: multiplayer.UpdateSnapshot, View: done}))
	_, _ = send(t, m, keyRunes("r"))
	if f.rematch != 1 {
		t.Errorf("rematch = %d, want 1 after it was already requested", f.rematch)
	}
}

func TestDetachedReturnsToMenu(t *testing.T) {
	f := newFakeSession()
	m := inGame(t, f, activeView(docstore.RoleGuest, false))

	m, _ = send(t, m, updateMsg(multiplayer.Update{
		Kind: multiplayer.UpdateDetached,
		Err:  docstore.ErrUnavailable,
	}))
	if m.Screen() != ScreenMenu {
		t.Errorf("screen = %v, want menu", m.Screen())
	}
	if m.Notice() == "" {
		t.Error("expected a notice explaining the detach")
	}
}

func TestLeaveFromGame(t *testing.T) {
	f := newFakeSession()
	m := inGame(t, f, activeView(docstore.RoleHost, true))

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("expected leave command")
	}
	// The client reports the detach before the leave call returns.
	m, _ = send(t, m, updateMsg(multiplayer.Update{Kind: multiplayer.UpdateDetached}))
	if m.Notice() != "" {
		t.Errorf("notice = %q, want none while leaving", m.Notice())
	}
	m, _ = send(t, m, cmd())

	if f.left != 1 {
		t.Errorf("Leave called %d times, want 1", f.left)
	}
	if m.Screen() != ScreenMenu {
		t.Errorf("screen = %v, want menu", m.Screen())
	}
}

func TestNoticeClears(t *testing.T) {
	f := newFakeSession()
	m := NewModel(f, nil, 80, 24)
	m.setNotice("hello", false)
	seq := m.noticeSeq

	m, _ = send(t, m, clearNoticeMsg{seq: seq - 1})
	if m.Notice() != "hello" {
		t.Fatal("stale clear should not remove a newer notice")
	}
	m, _ = send(t, m, clearNoticeMsg{seq: seq})
	if m.Notice() != "" {
		t.Errorf("notice = %q, want cleared", m.Notice())
	}
}

func TestCellFromKey(t *testing.T) {
	for i := 1; i <= 9; i++ {
		got, ok := cellFromKey(keyRunes(string(rune('0' + i))))
		if !ok || got != i-1 {
			t.Errorf("cellFromKey(%d) = %d, %v", i, got, ok)
		}
	}
	if _, ok := cellFromKey(keyRunes("0")); ok {
		t.Error("0 should not map to a cell")
	}
	if _, ok := cellFromKey(tea.KeyMsg{Type: tea.KeyEnter}); ok {
		t.Error("enter should not map to a cell")
	}
}

func TestMoveCursorClamps(t *testing.T) {
	tests := []struct {
		cursor, dRow, dCol, want int
	}{
		{4, -1, 0, 1},
		{4, 1, 0, 7},
		{0, -1, 0, 0},
		{0, 0, -1, 0},
		{8, 1, 1, 8},
		{2, 0, 1, 2},
		{3, 0, 1, 4},
	}
	for _, tt := range tests {
		if got := moveCursor(tt.cursor, tt.dRow, tt.dCol); got != tt.want {
			t.Errorf("moveCursor(%d, %d, %d) = %d, want %d", tt.cursor, tt.dRow, tt.dCol, got, tt.want)
		}
	}
}

func TestStatusLine(t *testing.T) {
	vm := activeView(docstore.RoleGuest, true)
	if got := StatusLine(vm); got != "Your turn (O)" {
		t.Errorf("my turn: %q", got)
	}

	vm.IsMyTurn = false
	vm.OpponentName = "bob"
	if got := StatusLine(vm); got != "bob's turn" {
		t.Errorf("their turn: %q", got)
	}

	vm.Pending = 3
	if got := StatusLine(vm); got != "Sending move..." {
		t.Errorf("pending: %q", got)
	}

	vm.Pending = -1
	vm.Status = docstore.StatusCompleted
	vm.Winner = docstore.WinnerDraw
	if got := StatusLine(vm); got != "It's a draw" {
		t.Errorf("draw: %q", got)
	}

	vm.Status = docstore.StatusAbandoned
	vm.Winner = docstore.WinnerGuest
	if got := StatusLine(vm); got != "You won! (opponent left)" {
		t.Errorf("abandoned: %q", got)
	}
}

func TestRenderBoardShowsMarks(t *testing.T) {
	vm := activeView(docstore.RoleHost, true)
	vm.Board[0] = board.X
	vm.Board[4] = board.O

	out := RenderBoard(vm, -1)
	if !strings.Contains(out, "X") || !strings.Contains(out, "O") {
		t.Errorf("board missing marks:\n%s", out)
	}
	if lines := strings.Count(out, "\n"); lines != 4 {
		t.Errorf("board has %d line breaks, want 4", lines)
	}
}
