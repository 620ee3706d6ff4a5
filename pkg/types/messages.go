// Package types holds the JSON frames exchanged over the game websocket and
// the standings endpoint.
package types

const (
	TypeJoin = "join"
	TypeMove = "move"

	TypeWaiting     = "waiting"
	TypeGameStarted = "game_started"
	TypeReconnected = "reconnected"
	TypeState       = "state"
	TypeGameOver    = "game_over"
	TypeError       = "error"
)

// ClientMessage is any frame a client sends. Column is a pointer so a move
// without one can be told apart from column 0.
type ClientMessage struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	GameID   string `json:"gameId,omitempty"`
	Column   *int   `json:"column,omitempty"`
}

type Waiting struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type GameStarted struct {
	Type     string `json:"type"`
	Opponent string `json:"opponent"`
	GameID   string `json:"gameId"`
	Player   int    `json:"player"`
}

type Reconnected struct {
	Type     string `json:"type"`
	GameID   string `json:"gameId"`
	Opponent string `json:"opponent"`
	Player   int    `json:"player"`
}

// GameOver.Winner is 0 for draws and abandoned games; Result then says which.
type GameOver struct {
	Type   string `json:"type"`
	Winner int    `json:"winner"`
	Result string `json:"result"`
	GameID string `json:"gameId"`
}

type Error struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewError(msg string) Error { return Error{Type: TypeError, Error: msg} }

type Standing struct {
	Player string `json:"player"`
	Wins   int    `json:"wins"`
}
