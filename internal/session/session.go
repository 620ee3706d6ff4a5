// Package session runs one game between two participants. All state lives in
// a single goroutine fed by an inbox; timers and connections talk to it only
// through messages.
package session

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/connect4-backend/internal/bot"
	"github.com/DoyleJ11/connect4-backend/internal/engine"
	"github.com/DoyleJ11/connect4-backend/internal/metrics"
	"github.com/DoyleJ11/connect4-backend/internal/recorder"
)

type Status string

const (
	StatusWaiting  Status = "waiting_for_opponent"
	StatusActive   Status = "active"
	StatusGrace    Status = "disconnected_grace"
	StatusFinished Status = "finished"
)

var (
	ErrNotParticipant = errors.New("not a participant in this game")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrGameFinished   = errors.New("game already finished")
	ErrOpponentAway   = errors.New("opponent disconnected, waiting for them to return")
	ErrExpired        = errors.New("game expired")
	ErrClosed         = errors.New("session closed")
)

const recordTimeout = time.Minute

type Recorder interface {
	RecordResult(ctx context.Context, r recorder.Result) error
}

// Seat is one side of the game. Bot seats have no outbox or token.
type Seat struct {
	Identity string
	Bot      bool
	Token    string
	Outbox   chan<- Event
}

func (s Seat) connected() bool { return s.Bot || s.Outbox != nil }

type Timings struct {
	Grace     time.Duration
	Retention time.Duration
	BotDelay  time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		Grace:     30 * time.Second,
		Retention: 2 * time.Minute,
		BotDelay:  700 * time.Millisecond,
	}
}

type Session struct {
	id    string
	inbox chan Msg
	seats [2]Seat

	state    engine.State
	status   Status
	outcome  string
	winner   engine.Player
	version  int
	deadline time.Time
	graceGen int
	expired  bool
	recorded bool

	timings  Timings
	strategy bot.Strategy
	recorder Recorder
	evict    func(gameID string)
	metrics  *metrics.Metrics
	logger   *zap.Logger

	graceTimer  *time.Timer
	botTimer    *time.Timer
	retainTimer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l.Named("session") }
}

func WithTimings(t Timings) Option {
	return func(s *Session) { s.timings = t }
}

func WithStrategy(st bot.Strategy) Option {
	return func(s *Session) { s.strategy = st }
}

func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithEvict sets the callback used to leave the registry once the session is
// no longer reachable. It is called from a timer goroutine, never the loop.
func WithEvict(f func(gameID string)) Option {
	return func(s *Session) { s.evict = f }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// New creates a session in StatusWaiting and starts its loop. Send Start (or
// call Start) to begin play.
func New(parent context.Context, id string, p1, p2 Seat, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		id:       id,
		inbox:    make(chan Msg, 64),
		seats:    [2]Seat{p1, p2},
		state:    engine.NewState(),
		status:   StatusWaiting,
		timings:  DefaultTimings(),
		strategy: bot.Heuristic{},
		evict:    func(string) {},
		logger:   zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("game_id", id))

	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Start:
				s.start()

			case Move:
				err := s.handleMove(msg)
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case Attach:
				p, err := s.attach(msg)
				msg.Reply <- AttachReply{Player: p, Err: err}

			case Detach:
				s.detach(msg.Player, msg.Token)

			case GetState:
				msg.Reply <- s.view()

			case graceExpired:
				s.expireGrace(msg.gen)

			case botTurn:
				s.playBot(msg.version)

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) start() {
	if s.status != StatusWaiting {
		return
	}
	s.status = StatusActive
	s.metrics.GameStarted(s.seats[0].Bot || s.seats[1].Bot)
	s.logger.Info("game started",
		zap.String("player1", s.seats[0].Identity),
		zap.String("player2", s.seats[1].Identity))

	for i := range s.seats {
		if s.seats[i].Bot {
			continue
		}
		s.notify(i, GameStarted{
			GameID:   s.id,
			Opponent: s.seats[1-i].Identity,
			Player:   engine.Player(i + 1),
		})
	}
	s.broadcast(s.snapshot())

	// a side that left before pairing completed starts the clock right away
	if !s.seats[0].connected() || !s.seats[1].connected() {
		s.enterGrace()
	}
	s.scheduleBot()
}

func (s *Session) handleMove(m Move) error {
	if !m.Player.Valid() {
		return ErrNotParticipant
	}
	seat := s.seats[m.Player-1]
	if seat.Bot || seat.Token == "" || seat.Token != m.Token {
		return ErrNotParticipant
	}
	return s.play(m.Player, m.Column)
}

func (s *Session) play(p engine.Player, column int) error {
	switch s.status {
	case StatusFinished:
		s.metrics.MoveRejected(rejectReason(ErrGameFinished))
		return ErrGameFinished
	case StatusWaiting:
		s.metrics.MoveRejected(rejectReason(ErrNotYourTurn))
		return ErrNotYourTurn
	case StatusGrace:
		// the board stays as it was at disconnection until everyone is back
		s.metrics.MoveRejected(rejectReason(ErrOpponentAway))
		return ErrOpponentAway
	}

	next, err := engine.Play(s.state, column, p)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrWrongTurn):
			err = ErrNotYourTurn
		case errors.Is(err, engine.ErrGameAlreadyCompleted):
			err = ErrGameFinished
		}
		s.metrics.MoveRejected(rejectReason(err))
		return err
	}

	s.state = next
	s.version++
	s.metrics.MoveAccepted()

	switch next.Outcome {
	case engine.OutcomeWin:
		s.finish(winOutcome(next.Winner), false)
	case engine.OutcomeDraw:
		s.finish(recorder.OutcomeDraw, false)
	default:
		s.broadcast(s.snapshot())
		s.scheduleBot()
	}
	return nil
}

func (s *Session) scheduleBot() {
	if s.status != StatusActive {
		return
	}
	if !s.state.Turn.Valid() || !s.seats[s.state.Turn-1].Bot {
		return
	}
	v := s.version
	if s.botTimer != nil {
		s.botTimer.Stop()
	}
	s.botTimer = time.AfterFunc(s.timings.BotDelay, func() { s.post(botTurn{version: v}) })
}

func (s *Session) playBot(version int) {
	if version != s.version || s.status != StatusActive {
		return
	}
	p := s.state.Turn
	if !p.Valid() || !s.seats[p-1].Bot {
		return
	}
	col := s.strategy.Choose(s.state.Board, p)
	if err := s.play(p, col); err != nil {
		s.logger.Error("bot move rejected", zap.Int("column", col), zap.Error(err))
	}
}

func (s *Session) attach(a Attach) (engine.Player, error) {
	if s.expired {
		return engine.Empty, ErrExpired
	}
	idx := s.seatFor(a.Identity)
	if idx < 0 {
		return engine.Empty, ErrNotParticipant
	}

	seat := &s.seats[idx]
	if seat.Outbox != nil {
		// takeover: the older connection learns it lost the seat when its outbox closes
		close(seat.Outbox)
	}
	seat.Token = a.Token
	seat.Outbox = a.Outbox
	s.metrics.Reconnected()
	s.logger.Info("participant attached", zap.String("identity", a.Identity), zap.Int("player", idx+1))

	if s.status == StatusGrace && s.seats[0].connected() && s.seats[1].connected() {
		s.status = StatusActive
		s.deadline = time.Time{}
		s.graceGen++
		if s.graceTimer != nil {
			s.graceTimer.Stop()
		}
	}

	p := engine.Player(idx + 1)
	s.notify(idx, Reconnected{GameID: s.id, Opponent: s.seats[1-idx].Identity, Player: p})
	s.notify(idx, s.snapshot())
	if s.status == StatusFinished {
		s.notify(idx, s.gameOver())
	}
	s.scheduleBot()
	return p, nil
}

// seatFor prefers a disconnected human seat so two participants sharing a
// display name each get their own side back.
func (s *Session) seatFor(identity string) int {
	found := -1
	for i, seat := range s.seats {
		if seat.Bot || seat.Identity != identity {
			continue
		}
		if seat.Outbox == nil {
			return i
		}
		if found < 0 {
			found = i
		}
	}
	return found
}

func (s *Session) detach(p engine.Player, token string) {
	if !p.Valid() {
		return
	}
	seat := s.seats[p-1]
	if seat.Bot || seat.Outbox == nil || seat.Token != token {
		return
	}
	s.disconnect(int(p) - 1)
}

func (s *Session) disconnect(idx int) {
	seat := &s.seats[idx]
	close(seat.Outbox)
	seat.Outbox = nil
	seat.Token = ""
	s.logger.Info("participant disconnected", zap.String("identity", seat.Identity), zap.Int("player", idx+1))

	if s.status == StatusActive {
		s.enterGrace()
	}
}

func (s *Session) enterGrace() {
	if s.status == StatusFinished || s.status == StatusGrace {
		return
	}
	s.status = StatusGrace
	s.deadline = time.Now().Add(s.timings.Grace)
	s.graceGen++
	gen := s.graceGen
	s.graceTimer = time.AfterFunc(s.timings.Grace, func() { s.post(graceExpired{gen: gen}) })
}

func (s *Session) expireGrace(gen int) {
	if gen != s.graceGen || s.status != StatusGrace {
		return
	}
	c1, c2 := s.seats[0].connected(), s.seats[1].connected()
	s.logger.Info("grace period expired", zap.Bool("player1_connected", c1), zap.Bool("player2_connected", c2))
	switch {
	case c1 && !c2:
		s.finish(recorder.OutcomePlayer1Win, true)
	case c2 && !c1:
		s.finish(recorder.OutcomePlayer2Win, true)
	default:
		s.finish(recorder.OutcomeAbandoned, true)
	}
}

func (s *Session) finish(outcome string, expired bool) {
	s.status = StatusFinished
	s.outcome = outcome
	s.expired = expired
	s.deadline = time.Time{}
	switch outcome {
	case recorder.OutcomePlayer1Win:
		s.winner = engine.Player1
	case recorder.OutcomePlayer2Win:
		s.winner = engine.Player2
	}
	s.stopTimers()
	s.metrics.GameFinished(outcome)
	s.logger.Info("game finished", zap.String("outcome", outcome), zap.Int("moves", len(s.state.Moves)))

	s.record()
	s.broadcast(s.snapshot())
	s.broadcast(s.gameOver())

	if expired {
		go s.evict(s.id)
		return
	}
	s.retainTimer = time.AfterFunc(s.timings.Retention, func() { s.evict(s.id) })
}

func (s *Session) record() {
	if s.recorded || s.recorder == nil {
		return
	}
	s.recorded = true

	res := recorder.Result{
		GameID:     s.id,
		Player1:    s.seats[0].Identity,
		Player2:    s.seats[1].Identity,
		Outcome:    s.outcome,
		Moves:      len(s.state.Moves),
		FinishedAt: time.Now().UTC(),
	}
	if s.winner.Valid() {
		res.Winner = s.seats[s.winner-1].Identity
	}

	rec, logger := s.recorder, s.logger
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), recordTimeout)
	go func() {
		defer cancel()
		if err := rec.RecordResult(ctx, res); err != nil {
			logger.Error("record result", zap.Error(err))
		}
	}()
}

func (s *Session) broadcast(ev Event) {
	for i := range s.seats {
		s.notify(i, ev)
	}
}

// notify never blocks; a participant whose outbox is full is disconnected.
func (s *Session) notify(idx int, ev Event) {
	seat := &s.seats[idx]
	if seat.Outbox == nil {
		return
	}
	select {
	case seat.Outbox <- ev:
	default:
		s.logger.Warn("outbox full, dropping connection", zap.String("identity", seat.Identity))
		s.disconnect(idx)
	}
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		GameID:   s.id,
		Board:    s.state.Board,
		Turn:     s.state.Turn,
		GameOver: s.status == StatusFinished,
		Winner:   s.winner,
		Player1:  s.seats[0].Identity,
		Player2:  s.seats[1].Identity,
		Version:  s.version,
		Line:     slices.Clone(s.state.Line),
	}
}

func (s *Session) gameOver() GameOver {
	result := s.outcome
	if s.winner.Valid() {
		result = s.seats[s.winner-1].Identity
	}
	return GameOver{GameID: s.id, Winner: s.winner, Result: result}
}

func (s *Session) view() View {
	return View{
		Snapshot:  s.snapshot(),
		Status:    s.status,
		Outcome:   s.outcome,
		Moves:     slices.Clone(s.state.Moves),
		Deadline:  s.deadline,
		Connected: [2]bool{s.seats[0].connected(), s.seats[1].connected()},
	}
}

func (s *Session) stopTimers() {
	s.graceGen++
	for _, t := range []*time.Timer{s.graceTimer, s.botTimer, s.retainTimer} {
		if t != nil {
			t.Stop()
		}
	}
}

func (s *Session) shutdown() {
	s.stopTimers()
	for i := range s.seats {
		if s.seats[i].Outbox != nil {
			close(s.seats[i].Outbox)
			s.seats[i].Outbox = nil
		}
	}
	s.cancel()
}

func winOutcome(p engine.Player) string {
	if p == engine.Player1 {
		return recorder.OutcomePlayer1Win
	}
	return recorder.OutcomePlayer2Win
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNotYourTurn):
		return "wrong_turn"
	case errors.Is(err, ErrGameFinished):
		return "finished"
	case errors.Is(err, ErrOpponentAway):
		return "opponent_away"
	case errors.Is(err, engine.ErrColumnFull):
		return "column_full"
	case errors.Is(err, engine.ErrColumnOutOfRange):
		return "out_of_range"
	default:
		return "other"
	}
}
