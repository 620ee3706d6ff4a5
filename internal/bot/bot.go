// Package bot provides computer opponents. A strategy only picks a column; the
// session validates and applies it exactly like a human move.
package bot

import (
	"math/rand"
	"sync"

	"github.com/DoyleJ11/connect4-backend/internal/engine"
)

// Identity is the display name given to the synthesized opponent.
const Identity = "BOT"

type Strategy interface {
	Choose(b engine.Board, me engine.Player) int
}

// window scores, see evaluate
const (
	scoreThree   = 100
	scoreTwo     = 10
	scoreCenter  = 3
	penaltyThree = -120
)

// Heuristic wins when it can, blocks an immediate loss, avoids handing the
// opponent a win directly above its disc, and otherwise maximizes a window score.
type Heuristic struct{}

func (Heuristic) Choose(b engine.Board, me engine.Player) int {
	cols := centerFirst(engine.ValidColumns(b))
	if len(cols) == 0 {
		return -1
	}
	opp := me.Other()

	for _, col := range cols {
		if wins(b, col, me) {
			return col
		}
	}
	for _, col := range cols {
		if wins(b, col, opp) {
			return col
		}
	}

	best, bestScore := -1, 0
	for _, col := range cols {
		next, _, err := engine.Apply(b, col, me)
		if err != nil {
			continue
		}
		score := evaluate(next, me)
		if givesAway(next, col, opp) {
			score -= 10 * scoreThree
		}
		if best == -1 || score > bestScore {
			best, bestScore = col, score
		}
	}
	return best
}

// Random picks any legal column.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Choose(b engine.Board, _ engine.Player) int {
	cols := engine.ValidColumns(b)
	if len(cols) == 0 {
		return -1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return cols[r.rng.Intn(len(cols))]
}

func wins(b engine.Board, col int, p engine.Player) bool {
	next, row, err := engine.Apply(b, col, p)
	if err != nil {
		return false
	}
	return engine.CheckTerminal(next, row, col, p) == engine.OutcomeWin
}

// givesAway reports whether the opponent can win by playing on top of col.
func givesAway(b engine.Board, col int, opp engine.Player) bool {
	return wins(b, col, opp)
}

func centerFirst(cols []int) []int {
	order := []int{3, 2, 4, 1, 5, 0, 6}
	ok := make(map[int]bool, len(cols))
	for _, c := range cols {
		ok[c] = true
	}
	out := make([]int, 0, len(cols))
	for _, c := range order {
		if ok[c] {
			out = append(out, c)
		}
	}
	return out
}

func evaluate(b engine.Board, me engine.Player) int {
	score := 0
	for row := 0; row < engine.Rows; row++ {
		if b[row][engine.Columns/2] == me {
			score += scoreCenter
		}
	}

	dirs := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	for row := 0; row < engine.Rows; row++ {
		for col := 0; col < engine.Columns; col++ {
			for _, d := range dirs {
				endR, endC := row+3*d[0], col+3*d[1]
				if endR < 0 || endR >= engine.Rows || endC < 0 || endC >= engine.Columns {
					continue
				}
				var window [engine.ToWin]engine.Player
				for i := 0; i < engine.ToWin; i++ {
					window[i] = b[row+i*d[0]][col+i*d[1]]
				}
				score += scoreWindow(window, me)
			}
		}
	}
	return score
}

func scoreWindow(w [engine.ToWin]engine.Player, me engine.Player) int {
	mine, theirs, empty := 0, 0, 0
	for _, c := range w {
		switch c {
		case me:
			mine++
		case engine.Empty:
			empty++
		default:
			theirs++
		}
	}
	switch {
	case mine == 3 && empty == 1:
		return scoreThree
	case mine == 2 && empty == 2:
		return scoreTwo
	case theirs == 3 && empty == 1:
		return penaltyThree
	}
	return 0
}
