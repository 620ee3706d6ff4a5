package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.GameStarted(true)
		m.GameFinished("draw")
		m.MoveAccepted()
		m.MoveRejected("wrong_turn")
		m.Reconnected()
		m.SetSessions(3)
		m.SetQueueLength(1)
		m.ConnectionOpened()
		m.ConnectionClosed()
	})
}

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.GameStarted(true)
	m.GameStarted(false)
	m.GameStarted(false)
	m.MoveRejected("column_full")
	m.SetQueueLength(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.gamesStarted.WithLabelValues("bot")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.gamesStarted.WithLabelValues("human")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.movesRejected.WithLabelValues("column_full")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.queueLength))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "connect4_games_started_total")
	assert.Contains(t, string(body), "connect4_queue_length 2")
}
