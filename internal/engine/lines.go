package engine

type axis struct{ dr, dc int }

// horizontal, vertical, and the two diagonals
var axes = [4]axis{
	{dr: 0, dc: 1},
	{dr: 1, dc: 0},
	{dr: 1, dc: 1},
	{dr: 1, dc: -1},
}

// run counts contiguous cells owned by p starting one step away from (row, col).
func run(b Board, row, col, dr, dc int, p Player) int {
	n := 0
	for r, c := row+dr, col+dc; r >= 0 && r < Rows && c >= 0 && c < Columns && b[r][c] == p; r, c = r+dr, c+dc {
		n++
	}
	return n
}
