// Package board holds the pure tic-tac-toe rules: the 9-cell grid, the eight
// winning triples and terminal-state evaluation.
package board

import "fmt"

// Size is the number of cells on the board.
const Size = 9

// Symbol is the content of a single cell.
type Symbol string

const (
	Empty Symbol = ""
	X     Symbol = "X" // always the first mover
	O     Symbol = "O"
)

// Board is the 3x3 grid in row-major order.
type Board [Size]Symbol

// Line is a triple of cell indices.
type Line [3]int

// Lines lists every winning combination.
var Lines = [8]Line{
	{0, 1, 2}, // top row
	{3, 4, 5}, // middle row
	{6, 7, 8}, // bottom row
	{0, 3, 6}, // left column
	{1, 4, 7}, // middle column
	{2, 5, 8}, // right column
	{0, 4, 8}, // diagonal
	{2, 4, 6}, // anti-diagonal
}

// Outcome is the result of evaluating a board.
type Outcome struct {
	Winner Symbol // Empty when nobody has won
	Line   Line   // valid only when Winner != Empty
	Draw   bool   // board full without a winner
}

// Terminal reports whether the game is over.
func (o Outcome) Terminal() bool {
	return o.Winner != Empty || o.Draw
}

// Evaluate inspects the board for a winning triple or a full grid.
func Evaluate(b Board) Outcome {
	for _, l := range Lines {
		s := b[l[0]]
		if s != Empty && s == b[l[1]] && s == b[l[2]] {
			return Outcome{Winner: s, Line: l}
		}
	}
	if b.Full() {
		return Outcome{Draw: true}
	}
	return Outcome{}
}

// ValidIndex reports whether i addresses a cell.
func ValidIndex(i int) bool {
	return i >= 0 && i < Size
}

// Place returns a copy of b with s written at i.
func (b Board) Place(i int, s Symbol) (Board, error) {
	if !ValidIndex(i) {
		return b, fmt.Errorf("board: index %d out of range", i)
	}
	if b[i] != Empty {
		return b, fmt.Errorf("board: cell %d already taken", i)
	}
	b[i] = s
	return b, nil
}

// Full reports whether every cell is occupied.
func (b Board) Full() bool {
	for _, c := range b {
		if c == Empty {
			return false
		}
	}
	return true
}

// Count returns the number of occupied cells.
func (b Board) Count() int {
	n := 0
	for _, c := range b {
		if c != Empty {
			n++
		}
	}
	return n
}

// Ints converts a line to a slice, the form stored on session documents.
func (l Line) Ints() []int {
	return []int{l[0], l[1], l[2]}
}
