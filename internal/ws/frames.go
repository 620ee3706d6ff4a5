package ws

import (
	"github.com/DoyleJ11/connect4-backend/internal/engine"
	"github.com/DoyleJ11/connect4-backend/internal/session"
	"github.com/DoyleJ11/connect4-backend/pkg/types"
)

// frameFor maps a session event to its wire frame, or nil if it has none.
func frameFor(ev session.Event) any {
	switch e := ev.(type) {
	case session.Waiting:
		return types.Waiting{Type: types.TypeWaiting, Message: e.Message}
	case session.GameStarted:
		return types.GameStarted{Type: types.TypeGameStarted, Opponent: e.Opponent, GameID: e.GameID, Player: int(e.Player)}
	case session.Reconnected:
		return types.Reconnected{Type: types.TypeReconnected, GameID: e.GameID, Opponent: e.Opponent, Player: int(e.Player)}
	case session.Snapshot:
		return stateFrame(e)
	case session.GameOver:
		return types.GameOver{Type: types.TypeGameOver, Winner: int(e.Winner), Result: e.Result, GameID: e.GameID}
	}
	return nil
}

func stateFrame(s session.Snapshot) types.State {
	st := types.State{
		Type:     types.TypeState,
		Turn:     int(s.Turn),
		GameID:   s.GameID,
		GameOver: s.GameOver,
		Winner:   int(s.Winner),
		Player1:  s.Player1,
		Player2:  s.Player2,
		Version:  s.Version,
	}
	for r := 0; r < engine.Rows; r++ {
		for c := 0; c < engine.Columns; c++ {
			st.Board[r][c] = int(s.Board[r][c])
		}
	}
	for _, p := range s.Line {
		st.WinLine = append(st.WinLine, types.Cell{Row: p.Row, Col: p.Col})
	}
	return st
}
