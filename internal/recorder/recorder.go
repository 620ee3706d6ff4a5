// Package recorder persists finished games and serves the standings query.
//
// A Recorder is safe for concurrent use. Each game id is credited at most once:
// the store ignores a second Record for an id it has already seen, so a retry
// after an ambiguous failure or two racing finishers cannot double count.
package recorder

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

var ErrUnavailable = errors.New("standings unavailable")

const (
	OutcomePlayer1Win = "player1_win"
	OutcomePlayer2Win = "player2_win"
	OutcomeDraw       = "draw"
	OutcomeAbandoned  = "abandoned"
)

// Result describes one finished game. Winner is empty for draws and abandoned games.
type Result struct {
	GameID     string    `json:"gameId"`
	Player1    string    `json:"player1"`
	Player2    string    `json:"player2"`
	Winner     string    `json:"winner,omitempty"`
	Outcome    string    `json:"outcome"`
	Moves      int       `json:"moves"`
	FinishedAt time.Time `json:"finishedAt"`
}

type Standing struct {
	Player string
	Wins   int
}

type Store interface {
	// Record stores r and credits r.Winner. It reports false if r.GameID was
	// already recorded, in which case nothing changes.
	Record(ctx context.Context, r Result) (bool, error)
	Standings(ctx context.Context, limit int) ([]Standing, error)
	Close() error
}

type Recorder struct {
	store      Store
	logger     *zap.Logger
	maxElapsed time.Duration
	newBackOff func() backoff.BackOff
}

type Option func(*Recorder)

func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) { r.logger = l.Named("recorder") }
}

// WithMaxElapsed bounds how long RecordResult keeps retrying.
func WithMaxElapsed(d time.Duration) Option {
	return func(r *Recorder) { r.maxElapsed = d }
}

func WithBackOff(f func() backoff.BackOff) Option {
	return func(r *Recorder) { r.newBackOff = f }
}

func New(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:      store,
		logger:     zap.NewNop(),
		maxElapsed: 30 * time.Second,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordResult durably records res, retrying transient store failures.
func (r *Recorder) RecordResult(ctx context.Context, res Result) error {
	if res.GameID == "" {
		return errors.New("record result: missing game id")
	}
	if res.FinishedAt.IsZero() {
		res.FinishedAt = time.Now().UTC()
	}

	log := r.logger.With(zap.String("game_id", res.GameID), zap.String("outcome", res.Outcome))
	inserted, err := backoff.Retry(ctx, func() (bool, error) {
		return r.store.Record(ctx, res)
	},
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxElapsedTime(r.maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("record result failed, retrying", zap.Error(err), zap.Duration("next", next))
		}),
	)
	if err != nil {
		log.Error("record result gave up", zap.Error(err))
		return fmt.Errorf("record result %s: %w", res.GameID, err)
	}
	if !inserted {
		log.Debug("result already recorded")
		return nil
	}
	log.Info("result recorded", zap.String("winner", res.Winner))
	return nil
}

// Standings returns tallies ordered by wins descending, then identity.
func (r *Recorder) Standings(ctx context.Context, limit int) ([]Standing, error) {
	out, err := r.store.Standings(ctx, limit)
	if err != nil {
		r.logger.Warn("standings query failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return out, nil
}

func (r *Recorder) Close() error { return r.store.Close() }

func sortStandings(s []Standing) {
	slices.SortFunc(s, func(a, b Standing) int {
		if a.Wins != b.Wins {
			return cmp.Compare(b.Wins, a.Wins)
		}
		return cmp.Compare(a.Player, b.Player)
	})
}

func clip(s []Standing, limit int) []Standing {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
