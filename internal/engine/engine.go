package engine

import "errors"

var ErrColumnOutOfRange = errors.New("column out of range")
var ErrColumnFull = errors.New("column is full")
var ErrInvalidPlayer = errors.New("invalid player")
var ErrWrongTurn = errors.New("not your turn")
var ErrGameAlreadyCompleted = errors.New("game already completed")

const (
	Rows    = 6
	Columns = 7
	ToWin   = 4
)

// Player is both a cell value and a player number.
type Player int

const (
	Empty   Player = 0
	Player1 Player = 1
	Player2 Player = 2
)

func (p Player) Valid() bool { return p == Player1 || p == Player2 }

func (p Player) Other() Player {
	if p == Player1 {
		return Player2
	}
	return Player1
}

// Board is indexed [row][column]; row 0 is the top row.
type Board [Rows][Columns]Player

type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type Outcome string

const (
	OutcomeNone Outcome = "none"
	OutcomeWin  Outcome = "win"
	OutcomeDraw Outcome = "draw"
)

// State is a whole game as seen by the rules: board, whose turn, and how it ended.
type State struct {
	Board   Board
	Turn    Player
	Outcome Outcome
	Winner  Player
	Line    []Pos
	Moves   []int
}

func (s State) Over() bool { return s.Outcome == OutcomeWin || s.Outcome == OutcomeDraw }

// Apply drops a disc for p in column and returns the new board and the row it
// settled in. The input board is not modified.
func Apply(b Board, column int, p Player) (Board, int, error) {
	if !p.Valid() {
		return b, -1, ErrInvalidPlayer
	}
	if column < 0 || column >= Columns {
		return b, -1, ErrColumnOutOfRange
	}
	if b[0][column] != Empty {
		return b, -1, ErrColumnFull
	}

	row := Rows - 1
	for b[row][column] != Empty {
		row--
	}
	b[row][column] = p
	return b, row, nil
}

// CheckTerminal inspects only the lines through (row, col), the cell p just played.
func CheckTerminal(b Board, row, col int, p Player) Outcome {
	for _, ax := range axes {
		if 1+run(b, row, col, ax.dr, ax.dc, p)+run(b, row, col, -ax.dr, -ax.dc, p) >= ToWin {
			return OutcomeWin
		}
	}
	if IsFull(b) {
		return OutcomeDraw
	}
	return OutcomeNone
}

// WinLine returns the winning run through (row, col), ordered from one end to
// the other, or nil when there is none.
func WinLine(b Board, row, col int, p Player) []Pos {
	for _, ax := range axes {
		back := run(b, row, col, -ax.dr, -ax.dc, p)
		fwd := run(b, row, col, ax.dr, ax.dc, p)
		if 1+back+fwd < ToWin {
			continue
		}
		line := make([]Pos, 0, 1+back+fwd)
		for i := back; i >= -fwd; i-- {
			line = append(line, Pos{Row: row - i*ax.dr, Col: col - i*ax.dc})
		}
		return line
	}
	return nil
}

// Play validates and applies a move by p to a whole game state.
func Play(s State, column int, p Player) (State, error) {
	if s.Over() {
		return s, ErrGameAlreadyCompleted
	}
	if !p.Valid() {
		return s, ErrInvalidPlayer
	}
	if s.Turn != p {
		return s, ErrWrongTurn
	}

	board, row, err := Apply(s.Board, column, p)
	if err != nil {
		return s, err
	}

	next := s
	next.Board = board
	next.Moves = append(append([]int(nil), s.Moves...), column)

	switch CheckTerminal(board, row, column, p) {
	case OutcomeWin:
		next.Outcome = OutcomeWin
		next.Winner = p
		next.Line = WinLine(board, row, column, p)
	case OutcomeDraw:
		next.Outcome = OutcomeDraw
	default:
		next.Turn = p.Other()
	}
	return next, nil
}
