package engine

func NewState() State {
	return State{Turn: Player1, Outcome: OutcomeNone}
}

func IsFull(b Board) bool {
	for col := 0; col < Columns; col++ {
		if b[0][col] == Empty {
			return false
		}
	}
	return true
}

func ValidColumns(b Board) []int {
	cols := make([]int, 0, Columns)
	for col := 0; col < Columns; col++ {
		if b[0][col] == Empty {
			cols = append(cols, col)
		}
	}
	return cols
}

// Replay plays columns from an empty board, alternating players from Player1.
func Replay(columns []int) (State, error) {
	s := NewState()
	for _, col := range columns {
		next, err := Play(s, col, s.Turn)
		if err != nil {
			return s, err
		}
		s = next
	}
	return s, nil
}
