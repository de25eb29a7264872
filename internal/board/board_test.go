package board

import "testing"

func TestEvaluateEveryLine(t *testing.T) {
	for _, sym := range []Symbol{X, O} {
		for _, l := range Lines {
			var b Board
			for _, i := range l {
				b[i] = sym
			}
			out := Evaluate(b)
			if out.Winner != sym {
				t.Errorf("line %v with %s: winner = %q", l, sym, out.Winner)
			}
			if out.Line != l {
				t.Errorf("line %v with %s: reported line %v", l, sym, out.Line)
			}
			if !out.Terminal() {
				t.Errorf("line %v with %s: expected terminal", l, sym)
			}
		}
	}
}

func TestEvaluateNoWinner(t *testing.T) {
	b := Board{X, O, X, Empty, Empty, Empty, Empty, Empty, Empty}
	out := Evaluate(b)
	if out.Terminal() {
		t.Errorf("Evaluate(%v) = %+v, expected non-terminal", b, out)
	}
}

func TestEvaluateDraw(t *testing.T) {
	b := Board{
		X, O, X,
		X, O, O,
		O, X, X,
	}
	out := Evaluate(b)
	if !out.Draw || out.Winner != Empty {
		t.Errorf("Evaluate(%v) = %+v, expected draw", b, out)
	}
}

func TestEvaluateWinOnFullBoardIsNotDraw(t *testing.T) {
	b := Board{
		X, X, X,
		O, O, X,
		X, O, O,
	}
	out := Evaluate(b)
	if out.Draw || out.Winner != X {
		t.Errorf("Evaluate(%v) = %+v, expected X win", b, out)
	}
}

// uniform reports whether a triple is uniform and non-empty, computed
// independently from Evaluate.
func uniform(b Board, l Line) bool {
	return b[l[0]] != Empty && b[l[0]] == b[l[1]] && b[l[1]] == b[l[2]]
}

func TestReachableBoardsHaveSingleWinner(t *testing.T) {
	visited := make(map[Board]bool)
	var walk func(b Board, turn Symbol)
	walk = func(b Board, turn Symbol) {
		if visited[b] {
			return
		}
		visited[b] = true

		winners := map[Symbol]bool{}
		anyUniform := false
		for _, l := range Lines {
			if uniform(b, l) {
				anyUniform = true
				winners[b[l[0]]] = true
			}
		}
		out := Evaluate(b)
		if anyUniform != (out.Winner != Empty) {
			t.Fatalf("board %v: uniform=%v but winner=%q", b, anyUniform, out.Winner)
		}
		if len(winners) > 1 {
			t.Fatalf("board %v: both symbols win", b)
		}
		if out.Terminal() {
			return
		}

		next := O
		if turn == O {
			next = X
		}
		for i := range b {
			if b[i] == Empty {
				nb, err := b.Place(i, turn)
				if err != nil {
					t.Fatalf("Place(%d) failed: %v", i, err)
				}
				walk(nb, next)
			}
		}
	}
	walk(Board{}, X)

	// 5478 distinct positions are reachable in tic-tac-toe.
	if len(visited) != 5478 {
		t.Errorf("visited %d positions, expected 5478", len(visited))
	}
}

func TestPlace(t *testing.T) {
	var b Board
	b, err := b.Place(4, X)
	if err != nil {
		t.Fatalf("Place() failed: %v", err)
	}
	if b[4] != X || b.Count() != 1 {
		t.Errorf("Place did not write the cell: %v", b)
	}

	if _, err := b.Place(4, O); err == nil {
		t.Error("Place on an occupied cell should fail")
	}
	if _, err := b.Place(9, O); err == nil {
		t.Error("Place out of range should fail")
	}
	if _, err := b.Place(-1, O); err == nil {
		t.Error("Place with a negative index should fail")
	}
}

func TestFull(t *testing.T) {
	var b Board
	if b.Full() {
		t.Error("empty board reported full")
	}
	for i := range b {
		b[i] = X
	}
	if !b.Full() || b.Count() != Size {
		t.Error("filled board not reported full")
	}
}
