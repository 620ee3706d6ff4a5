package session

import (
	"context"

	"github.com/DoyleJ11/connect4-backend/internal/engine"
)

func (s *Session) ID() string { return s.id }

// Inbox exposes the loop's inbox for callers that build messages themselves.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Done is closed once the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Start() { s.post(Start{}) }

func (s *Session) Shutdown() { s.post(Shutdown{}) }

// Stop ends the session without waiting for room in its inbox.
func (s *Session) Stop() { s.cancel() }

func (s *Session) Detach(p engine.Player, token string) { s.post(Detach{Player: p, Token: token}) }

// Move submits a column for player p on behalf of the connection holding token.
func (s *Session) Move(ctx context.Context, p engine.Player, token string, column int) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, Move{Player: p, Token: token, Column: column, Reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// Attach gives identity's seat to a new connection and returns its player number.
func (s *Session) Attach(ctx context.Context, identity, token string, outbox chan<- Event) (engine.Player, error) {
	reply := make(chan AttachReply, 1)
	if err := s.send(ctx, Attach{Identity: identity, Token: token, Outbox: outbox, Reply: reply}); err != nil {
		return engine.Empty, err
	}
	var r AttachReply
	select {
	case r = <-reply:
	case <-ctx.Done():
		return engine.Empty, ctx.Err()
	case <-s.done:
		select {
		case r = <-reply:
		default:
			return engine.Empty, ErrClosed
		}
	}
	return r.Player, r.Err
}

func (s *Session) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return View{}, ErrClosed
		}
	}
}

func (s *Session) send(ctx context.Context, m Msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// post is used by timers and fire-and-forget callers.
func (s *Session) post(m Msg) {
	select {
	case s.inbox <- m:
	case <-s.done:
	}
}
