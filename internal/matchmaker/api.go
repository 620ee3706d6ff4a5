package matchmaker

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/DoyleJ11/connect4-backend/internal/session"
)

// Enqueue adds identity to the waiting pool. The returned ticket is paired
// with the oldest waiter, or with a bot once the bot wait runs out.
func (m *Matchmaker) Enqueue(ctx context.Context, identity string, outbox chan<- session.Event) (*Ticket, error) {
	if outbox == nil {
		return nil, errors.New("enqueue: nil outbox")
	}
	reply := make(chan *Ticket, 1)
	if err := m.send(ctx, Join{Identity: identity, Outbox: outbox, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case t := <-reply:
		return t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrClosed
	}
}

// Cancel withdraws an unpaired ticket. It is a no-op once the ticket is paired,
// in which case the Assignment is still waiting on t.Assigned().
func (m *Matchmaker) Cancel(t *Ticket) { m.post(Cancel{Ticket: t}) }

func (m *Matchmaker) Lookup(ctx context.Context, gameID string) (*session.Session, error) {
	reply := make(chan *session.Session, 1)
	if err := m.send(ctx, Lookup{GameID: gameID, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case s := <-reply:
		if s == nil {
			return nil, ErrNotFound
		}
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrClosed
	}
}

// Reconnect hands identity's seat in gameID to a new connection.
func (m *Matchmaker) Reconnect(ctx context.Context, identity, gameID string, outbox chan<- session.Event) (Assignment, error) {
	s, err := m.Lookup(ctx, gameID)
	if err != nil {
		return Assignment{}, err
	}
	token := uuid.NewString()
	p, err := s.Attach(ctx, identity, token, outbox)
	if errors.Is(err, session.ErrClosed) {
		return Assignment{}, ErrNotFound
	}
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{Session: s, Player: p, Token: token}, nil
}

// Evict drops gameID from the registry and shuts the session down.
func (m *Matchmaker) Evict(gameID string) { m.post(Evict{GameID: gameID}) }

func (m *Matchmaker) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if err := m.send(ctx, GetStats{Reply: reply}); err != nil {
		return Stats{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case <-m.done:
		return Stats{}, ErrClosed
	}
}

// Sessions reports how many sessions the registry holds, or 0 once closed.
func (m *Matchmaker) Sessions() int {
	st, _ := m.Stats(context.Background())
	return st.Sessions
}

func (m *Matchmaker) QueueLen() int {
	st, _ := m.Stats(context.Background())
	return st.Queued
}

func (m *Matchmaker) Shutdown() { m.post(Shutdown{}) }

func (m *Matchmaker) send(ctx context.Context, msg Msg) error {
	select {
	case m.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrClosed
	}
}

func (m *Matchmaker) post(msg Msg) {
	select {
	case m.inbox <- msg:
	case <-m.done:
	}
}
