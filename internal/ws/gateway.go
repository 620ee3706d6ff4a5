// Package ws bridges websocket connections to the matchmaker and sessions.
// Each connection gets one reader (the handler goroutine) and one writer that
// drains the outbox the session pushes events into.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/DoyleJ11/connect4-backend/internal/matchmaker"
	"github.com/DoyleJ11/connect4-backend/internal/metrics"
	"github.com/DoyleJ11/connect4-backend/internal/session"
	"github.com/DoyleJ11/connect4-backend/pkg/types"
)

const maxUsernameLen = 32

// Matchmaker is the part of *matchmaker.Matchmaker the gateway needs.
type Matchmaker interface {
	Enqueue(ctx context.Context, identity string, outbox chan<- session.Event) (*matchmaker.Ticket, error)
	Cancel(t *matchmaker.Ticket)
	Reconnect(ctx context.Context, identity, gameID string, outbox chan<- session.Event) (matchmaker.Assignment, error)
}

type Gateway struct {
	mm      Matchmaker
	logger  *zap.Logger
	metrics *metrics.Metrics

	idleTimeout    time.Duration
	pingInterval   time.Duration
	writeTimeout   time.Duration
	outboxSize     int
	originPatterns []string
}

type Option func(*Gateway)

func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) { g.logger = l.Named("ws") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithTimeouts sets the idle limit, the ping period and the per-write limit.
// Any inbound frame or answered ping counts as activity.
func WithTimeouts(idle, ping, write time.Duration) Option {
	return func(g *Gateway) {
		g.idleTimeout = idle
		g.pingInterval = ping
		g.writeTimeout = write
	}
}

func WithOutboxSize(n int) Option {
	return func(g *Gateway) { g.outboxSize = n }
}

// WithOriginPatterns allows cross-origin websocket upgrades from the given host patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(g *Gateway) { g.originPatterns = patterns }
}

func New(mm Matchmaker, opts ...Option) *Gateway {
	g := &Gateway{
		mm:           mm,
		logger:       zap.NewNop(),
		idleTimeout:  5 * time.Minute,
		pingInterval: 20 * time.Second,
		writeTimeout: 3 * time.Second,
		outboxSize:   16,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: g.originPatterns})
	if err != nil {
		g.logger.Debug("accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	g.metrics.ConnectionOpened()
	defer g.metrics.ConnectionClosed()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &client{
		g:      g,
		conn:   conn,
		outbox: make(chan session.Event, g.outboxSize),
		logger: g.logger,
		cancel: cancel,
		alive:  make(chan struct{}, 1),
	}
	defer c.release()

	go c.writeLoop(ctx)
	go c.idleWatch(ctx)

	q := r.URL.Query()
	if name := q.Get("username"); name != "" {
		if !c.join(ctx, name, q.Get("gameId")) {
			return
		}
	}
	c.readLoop(ctx)
}

type client struct {
	g      *Gateway
	conn   *websocket.Conn
	outbox chan session.Event
	logger *zap.Logger
	cancel context.CancelFunc
	alive  chan struct{}

	mu     sync.Mutex
	joined bool
	ticket *matchmaker.Ticket
	seat   *matchmaker.Assignment
	gone   bool
}

func (c *client) readLoop(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					c.logger.Debug("read ended", zap.Error(err))
				}
			}
			return
		}
		c.touch()

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			c.sendError(ctx, "invalid JSON")
			continue
		}

		switch cm.Type {
		case types.TypeJoin:
			if c.hasJoined() {
				c.sendError(ctx, "already joined")
				continue
			}
			if !c.join(ctx, cm.Username, cm.GameID) {
				return
			}

		case types.TypeMove:
			if cm.Column == nil {
				c.sendError(ctx, "missing column")
				continue
			}
			seat := c.assignment()
			if seat == nil {
				c.sendError(ctx, "not in a game")
				continue
			}
			if err := seat.Session.Move(ctx, seat.Player, seat.Token, *cm.Column); err != nil {
				c.sendError(ctx, err.Error())
			}

		default:
			c.sendError(ctx, "unknown message type")
		}
	}
}

// join either resumes gameID or queues for a new game. It reports false when
// the connection should be closed.
func (c *client) join(ctx context.Context, username, gameID string) bool {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLen {
		c.sendError(ctx, "username required (1-32 characters)")
		return true
	}
	log := c.logger.With(zap.String("username", username))

	c.mu.Lock()
	c.joined = true
	c.mu.Unlock()

	if gameID != "" {
		a, err := c.g.mm.Reconnect(ctx, username, gameID, c.outbox)
		if err != nil {
			log.Info("reconnect refused", zap.String("game_id", gameID), zap.Error(err))
			c.sendError(ctx, reconnectError(err))
			return false
		}
		c.mu.Lock()
		c.seat = &a
		c.mu.Unlock()
		log.Info("reconnected", zap.String("game_id", gameID), zap.Int("player", int(a.Player)))
		return true
	}

	t, err := c.g.mm.Enqueue(ctx, username, c.outbox)
	if err != nil {
		c.sendError(ctx, "matchmaking unavailable")
		return false
	}
	c.mu.Lock()
	c.ticket = t
	c.mu.Unlock()
	go c.awaitAssignment(t)
	return true
}

func reconnectError(err error) string {
	switch {
	case errors.Is(err, matchmaker.ErrNotFound), errors.Is(err, matchmaker.ErrExpired):
		return "game not found"
	case errors.Is(err, matchmaker.ErrNotParticipant):
		return "not a participant in this game"
	default:
		return "reconnect failed"
	}
}

// awaitAssignment outlives the connection on purpose: a pairing that lands
// after the socket closed must still be detached so the game enters grace.
func (c *client) awaitAssignment(t *matchmaker.Ticket) {
	a, ok := <-t.Assigned()
	if !ok {
		return
	}
	c.mu.Lock()
	if c.gone {
		c.mu.Unlock()
		a.Session.Detach(a.Player, a.Token)
		return
	}
	c.seat = &a
	c.mu.Unlock()
	c.logger.Info("assigned",
		zap.String("username", t.Identity),
		zap.String("game_id", a.Session.ID()),
		zap.Int("player", int(a.Player)))
}

func (c *client) release() {
	c.mu.Lock()
	c.gone = true
	seat, ticket := c.seat, c.ticket
	c.mu.Unlock()

	switch {
	case seat != nil:
		seat.Session.Detach(seat.Player, seat.Token)
	case ticket != nil:
		c.g.mm.Cancel(ticket)
	}
}

func (c *client) writeLoop(ctx context.Context) {
	defer c.cancel()
	ping := time.NewTicker(c.g.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-c.outbox:
			if !ok {
				// the session let go of this connection
				c.conn.Close(websocket.StatusNormalClosure, "session ended")
				return
			}
			frame := frameFor(ev)
			if frame == nil {
				continue
			}
			if err := c.write(ctx, frame); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}

		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, c.g.writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				return
			}
			c.touch()
		}
	}
}

func (c *client) touch() {
	select {
	case c.alive <- struct{}{}:
	default:
	}
}

// idleWatch ends the connection once neither a frame nor a pong has arrived
// for idleTimeout.
func (c *client) idleWatch(ctx context.Context) {
	idle := time.NewTimer(c.g.idleTimeout)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.alive:
			idle.Reset(c.g.idleTimeout)
		case <-idle.C:
			c.logger.Debug("connection idle, closing")
			c.cancel()
			return
		}
	}
}

func (c *client) write(ctx context.Context, v any) error {
	wctx, cancel := context.WithTimeout(ctx, c.g.writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, c.conn, v)
}

func (c *client) sendError(ctx context.Context, msg string) {
	if err := c.write(ctx, types.NewError(msg)); err != nil {
		c.logger.Debug("error frame not delivered", zap.Error(err))
	}
}

func (c *client) hasJoined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

func (c *client) assignment() *matchmaker.Assignment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seat
}
