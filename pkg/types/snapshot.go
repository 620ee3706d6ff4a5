package types

// Cell addresses one board position; row 0 is the top row.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// State is the full board as of Version. Cells hold 0 (empty), 1 or 2.
// Winner is only meaningful once GameOver is true.
type State struct {
	Type     string    `json:"type"`
	Board    [6][7]int `json:"board"`
	Turn     int       `json:"turn"`
	GameID   string    `json:"gameId"`
	GameOver bool      `json:"gameOver"`
	Winner   int       `json:"winner"`
	Player1  string    `json:"player1"`
	Player2  string    `json:"player2"`
	Version  int       `json:"version"`
	WinLine  []Cell    `json:"winLine,omitempty"`
}
