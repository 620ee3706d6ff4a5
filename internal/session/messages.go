package session

import (
	"time"

	"github.com/DoyleJ11/connect4-backend/internal/engine"
)

// Msg is anything the session loop accepts on its inbox.
type Msg interface{ isSessionMsg() }

// Start moves a freshly paired session into play.
type Start struct{}

func (Start) isSessionMsg() {}

type Move struct {
	Player engine.Player
	Token  string
	Column int
	Reply  chan<- error // optional, buffered
}

func (Move) isSessionMsg() {}

// Attach resumes (or takes over) a seat for Identity.
type Attach struct {
	Identity string
	Token    string
	Outbox   chan<- Event
	Reply    chan<- AttachReply
}

func (Attach) isSessionMsg() {}

type AttachReply struct {
	Player engine.Player
	Err    error
}

// Detach reports that the connection holding Token is gone.
type Detach struct {
	Player engine.Player
	Token  string
}

func (Detach) isSessionMsg() {}

type GetState struct {
	Reply chan<- View
}

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type graceExpired struct{ gen int }

func (graceExpired) isSessionMsg() {}

type botTurn struct{ version int }

func (botTurn) isSessionMsg() {}

// Event is what a session (or the matchmaker, for Waiting) pushes to a
// participant's outbox.
type Event interface{ isEvent() }

type Waiting struct {
	Message string
}

func (Waiting) isEvent() {}

type GameStarted struct {
	GameID   string
	Opponent string
	Player   engine.Player
}

func (GameStarted) isEvent() {}

type Reconnected struct {
	GameID   string
	Opponent string
	Player   engine.Player
}

func (Reconnected) isEvent() {}

// Snapshot is the authoritative board as of Version.
type Snapshot struct {
	GameID   string
	Board    engine.Board
	Turn     engine.Player
	GameOver bool
	Winner   engine.Player
	Player1  string
	Player2  string
	Version  int
	Line     []engine.Pos
}

func (Snapshot) isEvent() {}

// GameOver.Result is "draw", "abandoned" or the winner's identity.
type GameOver struct {
	GameID string
	Winner engine.Player
	Result string
}

func (GameOver) isEvent() {}

// View is the full internal picture, for tests and diagnostics.
type View struct {
	Snapshot
	Status    Status
	Outcome   string
	Moves     []int
	Deadline  time.Time
	Connected [2]bool
}
