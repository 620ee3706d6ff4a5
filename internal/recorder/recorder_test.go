package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

func fastRecorder(t *testing.T, store Store) *Recorder {
	t.Helper()
	return New(store,
		WithLogger(zaptest.NewLogger(t)),
		WithMaxElapsed(time.Second),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
}

func win(gameID, winner string) Result {
	return Result{GameID: gameID, Player1: winner, Player2: "other", Winner: winner, Outcome: OutcomePlayer1Win}
}

func TestRecordResult_CreditsWinnerOncePerGame(t *testing.T) {
	ctx := context.Background()
	r := fastRecorder(t, NewMemoryStore())

	require.NoError(t, r.RecordResult(ctx, win("g1", "alice")))
	require.NoError(t, r.RecordResult(ctx, win("g1", "alice")))
	require.NoError(t, r.RecordResult(ctx, win("g2", "alice")))

	got, err := r.Standings(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []Standing{{Player: "alice", Wins: 2}}, got)
}

func TestRecordResult_ConcurrentFinishersCountOnce(t *testing.T) {
	ctx := context.Background()
	r := fastRecorder(t, NewMemoryStore())

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error { return r.RecordResult(ctx, win("race", "bob")) })
	}
	require.NoError(t, g.Wait())

	got, err := r.Standings(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []Standing{{Player: "bob", Wins: 1}}, got)
}

func TestRecordResult_DrawAndAbandonedCreditNobody(t *testing.T) {
	ctx := context.Background()
	r := fastRecorder(t, NewMemoryStore())

	require.NoError(t, r.RecordResult(ctx, Result{GameID: "d", Player1: "a", Player2: "b", Outcome: OutcomeDraw}))
	require.NoError(t, r.RecordResult(ctx, Result{GameID: "x", Player1: "a", Player2: "b", Outcome: OutcomeAbandoned}))

	got, err := r.Standings(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordResult_RequiresGameID(t *testing.T) {
	r := fastRecorder(t, NewMemoryStore())
	assert.Error(t, r.RecordResult(context.Background(), Result{Winner: "a"}))
}

func TestStandings_OrderedByWinsThenIdentity(t *testing.T) {
	ctx := context.Background()
	r := fastRecorder(t, NewMemoryStore())

	wins := map[string]int{"carol": 3, "alice": 1, "bob": 3, "dave": 2}
	for player, n := range wins {
		for i := 0; i < n; i++ {
			require.NoError(t, r.RecordResult(ctx, win(fmt.Sprintf("%s-%d", player, i), player)))
		}
	}

	got, err := r.Standings(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []Standing{
		{Player: "bob", Wins: 3},
		{Player: "carol", Wins: 3},
		{Player: "dave", Wins: 2},
		{Player: "alice", Wins: 1},
	}, got)

	top, err := r.Standings(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

// flakyStore fails the first n Record calls.
type flakyStore struct {
	*MemoryStore
	failures  int32
	calls     atomic.Int32
	permanent bool
	standErr  error
}

func (f *flakyStore) Record(ctx context.Context, r Result) (bool, error) {
	if f.calls.Add(1) <= f.failures {
		err := errors.New("connection reset")
		if f.permanent {
			return false, backoff.Permanent(err)
		}
		return false, err
	}
	return f.MemoryStore.Record(ctx, r)
}

func (f *flakyStore) Standings(ctx context.Context, limit int) ([]Standing, error) {
	if f.standErr != nil {
		return nil, f.standErr
	}
	return f.MemoryStore.Standings(ctx, limit)
}

func TestRecordResult_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 3}
	r := fastRecorder(t, store)

	require.NoError(t, r.RecordResult(ctx, win("g", "erin")))
	assert.EqualValues(t, 4, store.calls.Load())

	got, err := r.Standings(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []Standing{{Player: "erin", Wins: 1}}, got)
}

func TestRecordResult_PermanentFailureStops(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 100, permanent: true}
	r := fastRecorder(t, store)

	err := r.RecordResult(context.Background(), win("g", "erin"))
	require.Error(t, err)
	assert.EqualValues(t, 1, store.calls.Load())
}

func TestStandings_FailureIsUnavailable(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), standErr: errors.New("db down")}
	r := fastRecorder(t, store)

	_, err := r.Standings(context.Background(), 10)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, err := OpenStore(ctx, StoreConfig{Driver: DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	for _, driver := range []string{DriverPostgres, DriverRedis, DriverMongo, "sqlite"} {
		_, err = OpenStore(ctx, StoreConfig{Driver: driver})
		assert.Error(t, err, driver)
	}
}

func TestMemoryStore_ConcurrentDistinctGames(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = m.Record(ctx, win(fmt.Sprintf("g%d", i), "zed"))
		}(i)
	}
	wg.Wait()

	got, err := m.Standings(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []Standing{{Player: "zed", Wins: 50}}, got)
}
