// Package matchmaker pairs waiting participants into sessions and keeps the
// registry of live sessions so dropped connections can find their game again.
package matchmaker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/connect4-backend/internal/bot"
	"github.com/DoyleJ11/connect4-backend/internal/engine"
	"github.com/DoyleJ11/connect4-backend/internal/metrics"
	"github.com/DoyleJ11/connect4-backend/internal/session"
)

var (
	ErrNotFound = errors.New("game not found")
	ErrClosed   = errors.New("matchmaker closed")

	// Aliases so callers only need this package to classify Reconnect errors.
	ErrNotParticipant = session.ErrNotParticipant
	ErrExpired        = session.ErrExpired
)

const waitingMessage = "Waiting for an opponent..."

type Msg interface{ isMatchmakerMsg() }

type Join struct {
	Identity string
	Outbox   chan<- session.Event
	Reply    chan<- *Ticket
}

type Cancel struct{ Ticket *Ticket }

type Lookup struct {
	GameID string
	Reply  chan<- *session.Session // nil if unknown
}

type Evict struct{ GameID string }

type GetStats struct{ Reply chan<- Stats }

type Shutdown struct{}

type botFallback struct{ ticket uint64 }

func (Join) isMatchmakerMsg()        {}
func (Cancel) isMatchmakerMsg()      {}
func (Lookup) isMatchmakerMsg()      {}
func (Evict) isMatchmakerMsg()       {}
func (GetStats) isMatchmakerMsg()    {}
func (Shutdown) isMatchmakerMsg()    {}
func (botFallback) isMatchmakerMsg() {}

type Stats struct {
	Sessions int
	Queued   int
}

// Assignment tells a connection which game and side it holds. Token must
// accompany every move and the final detach.
type Assignment struct {
	Session *session.Session
	Player  engine.Player
	Token   string
}

type Ticket struct {
	id       uint64
	Identity string
	Token    string
	assigned chan Assignment
}

// Assigned delivers exactly one Assignment once the ticket is paired. It is
// closed instead if the ticket is cancelled or the matchmaker shuts down first.
func (t *Ticket) Assigned() <-chan Assignment { return t.assigned }

type waiter struct {
	ticket *Ticket
	outbox chan<- session.Event
	timer  *time.Timer
}

type Matchmaker struct {
	inbox    chan Msg
	queue    []*waiter
	sessions map[string]*session.Session
	nextID   uint64

	botWait     time.Duration
	sessionOpts []session.Option
	base        *zap.Logger
	logger      *zap.Logger
	metrics     *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Matchmaker)

func WithLogger(l *zap.Logger) Option {
	return func(m *Matchmaker) { m.base = l }
}

// WithBotWait sets how long a lone participant waits before a bot is seated.
func WithBotWait(d time.Duration) Option {
	return func(m *Matchmaker) { m.botWait = d }
}

// WithSessionOptions are applied to every session the matchmaker creates.
func WithSessionOptions(opts ...session.Option) Option {
	return func(m *Matchmaker) { m.sessionOpts = append(m.sessionOpts, opts...) }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Matchmaker) { m.metrics = mt }
}

func New(parent context.Context, opts ...Option) *Matchmaker {
	ctx, cancel := context.WithCancel(parent)
	m := &Matchmaker{
		inbox:    make(chan Msg, 64),
		sessions: make(map[string]*session.Session),
		botWait:  10 * time.Second,
		base:     zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.base.Named("matchmaker")

	go m.loop()
	return m
}

func (m *Matchmaker) Inbox() chan<- Msg { return m.inbox }

func (m *Matchmaker) Done() <-chan struct{} { return m.done }

func (m *Matchmaker) loop() {
	defer close(m.done)
	for {
		select {
		case <-m.ctx.Done():
			m.shutdown()
			return

		case msg := <-m.inbox:
			switch msg := msg.(type) {
			case Join:
				msg.Reply <- m.join(msg.Identity, msg.Outbox)

			case Cancel:
				if w := m.remove(msg.Ticket.id); w != nil {
					w.timer.Stop()
					close(w.ticket.assigned)
					m.logger.Debug("left queue", zap.String("identity", w.ticket.Identity))
				}

			case botFallback:
				if w := m.remove(msg.ticket); w != nil {
					m.pair(w, &waiter{ticket: &Ticket{Identity: bot.Identity}})
				}

			case Lookup:
				msg.Reply <- m.sessions[msg.GameID]

			case Evict:
				if s, ok := m.sessions[msg.GameID]; ok {
					delete(m.sessions, msg.GameID)
					s.Stop()
					m.metrics.SetSessions(len(m.sessions))
					m.logger.Debug("session evicted", zap.String("game_id", msg.GameID))
				}

			case GetStats:
				msg.Reply <- Stats{Sessions: len(m.sessions), Queued: len(m.queue)}

			case Shutdown:
				m.shutdown()
				return
			}
		}
	}
}

func (m *Matchmaker) join(identity string, outbox chan<- session.Event) *Ticket {
	m.nextID++
	w := &waiter{
		ticket: &Ticket{
			id:       m.nextID,
			Identity: identity,
			Token:    uuid.NewString(),
			assigned: make(chan Assignment, 1),
		},
		outbox: outbox,
	}

	select {
	case outbox <- session.Waiting{Message: waitingMessage}:
	default:
	}

	if len(m.queue) > 0 {
		other := m.queue[0]
		m.queue = m.queue[1:]
		other.timer.Stop()
		m.pair(other, w)
		return w.ticket
	}

	id := w.ticket.id
	w.timer = time.AfterFunc(m.botWait, func() { m.post(botFallback{ticket: id}) })
	m.queue = append(m.queue, w)
	m.metrics.SetQueueLength(len(m.queue))
	m.logger.Debug("queued", zap.String("identity", identity))
	return w.ticket
}

// pair seats a as player 1 and b as player 2. A waiter without an outbox is the bot.
func (m *Matchmaker) pair(a, b *waiter) {
	gameID := uuid.NewString()
	opts := append([]session.Option{
		session.WithLogger(m.base),
		session.WithMetrics(m.metrics),
	}, m.sessionOpts...)
	opts = append(opts, session.WithEvict(m.Evict))

	s := session.New(m.ctx, gameID, seatFor(a), seatFor(b), opts...)
	m.sessions[gameID] = s
	s.Start()

	for i, w := range []*waiter{a, b} {
		if w.outbox == nil {
			continue
		}
		w.ticket.assigned <- Assignment{Session: s, Player: engine.Player(i + 1), Token: w.ticket.Token}
	}
	m.metrics.SetSessions(len(m.sessions))
	m.metrics.SetQueueLength(len(m.queue))
	m.logger.Info("paired",
		zap.String("game_id", gameID),
		zap.String("player1", a.ticket.Identity),
		zap.String("player2", b.ticket.Identity))
}

func seatFor(w *waiter) session.Seat {
	if w.outbox == nil {
		return session.Seat{Identity: w.ticket.Identity, Bot: true}
	}
	return session.Seat{Identity: w.ticket.Identity, Token: w.ticket.Token, Outbox: w.outbox}
}

func (m *Matchmaker) remove(id uint64) *waiter {
	for i, w := range m.queue {
		if w.ticket.id == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			m.metrics.SetQueueLength(len(m.queue))
			return w
		}
	}
	return nil
}

func (m *Matchmaker) shutdown() {
	for _, w := range m.queue {
		w.timer.Stop()
		close(w.ticket.assigned)
	}
	m.queue = nil
	for id, s := range m.sessions {
		s.Stop()
		delete(m.sessions, id)
	}
	m.cancel()
}
