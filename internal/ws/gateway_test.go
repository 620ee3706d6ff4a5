package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/connect4-backend/internal/bot"
	"github.com/DoyleJ11/connect4-backend/internal/matchmaker"
	"github.com/DoyleJ11/connect4-backend/internal/session"
	"github.com/DoyleJ11/connect4-backend/pkg/types"
)

// frame decodes every outbound kind; unused fields stay zero.
type frame struct {
	Type     string    `json:"type"`
	Message  string    `json:"message"`
	Opponent string    `json:"opponent"`
	GameID   string    `json:"gameId"`
	Player   int       `json:"player"`
	Board    [6][7]int `json:"board"`
	Turn     int       `json:"turn"`
	GameOver bool      `json:"gameOver"`
	Winner   int       `json:"winner"`
	Version  int       `json:"version"`
	Result   string    `json:"result"`
	Error    string    `json:"error"`
}

func newServer(t *testing.T, botWait time.Duration, opts ...Option) *httptest.Server {
	t.Helper()
	mm := matchmaker.New(context.Background(),
		matchmaker.WithBotWait(botWait),
		matchmaker.WithSessionOptions(session.WithTimings(session.Timings{
			Grace:     time.Minute,
			Retention: time.Minute,
			BotDelay:  10 * time.Millisecond,
		})))
	gw := New(mm, append([]Option{WithTimeouts(time.Minute, time.Minute, time.Second)}, opts...)...)
	srv := httptest.NewServer(gw)
	t.Cleanup(func() {
		mm.Shutdown()
		srv.Close()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if query != "" {
		url += "?" + query
	}
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func readFrame(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var f frame
	require.NoError(t, wsjson.Read(ctx, c, &f))
	return f
}

func expectFrame(t *testing.T, c *websocket.Conn, typ string) frame {
	t.Helper()
	f := readFrame(t, c)
	require.Equalf(t, typ, f.Type, "frame: %+v", f)
	return f
}

func send(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, c, v))
}

func move(col int) types.ClientMessage {
	return types.ClientMessage{Type: types.TypeMove, Column: &col}
}

func TestGateway_PairAndPlay(t *testing.T) {
	srv := newServer(t, time.Minute)

	alice := dial(t, srv, "username=alice")
	expectFrame(t, alice, types.TypeWaiting)
	bob := dial(t, srv, "username=bob")
	expectFrame(t, bob, types.TypeWaiting)

	ga := expectFrame(t, alice, types.TypeGameStarted)
	assert.Equal(t, "bob", ga.Opponent)
	assert.Equal(t, 1, ga.Player)
	gb := expectFrame(t, bob, types.TypeGameStarted)
	assert.Equal(t, "alice", gb.Opponent)
	assert.Equal(t, 2, gb.Player)
	assert.Equal(t, ga.GameID, gb.GameID)

	st := expectFrame(t, alice, types.TypeState)
	assert.Equal(t, 1, st.Turn)
	assert.Equal(t, 0, st.Version)
	expectFrame(t, bob, types.TypeState)

	send(t, alice, move(3))
	for _, c := range []*websocket.Conn{alice, bob} {
		st := expectFrame(t, c, types.TypeState)
		assert.Equal(t, 1, st.Version)
		assert.Equal(t, 2, st.Turn)
		assert.Equal(t, 1, st.Board[5][3])
	}

	send(t, alice, move(4))
	e := expectFrame(t, alice, types.TypeError)
	assert.Equal(t, session.ErrNotYourTurn.Error(), e.Error)
}

func TestGateway_ProtocolErrorsKeepConnectionOpen(t *testing.T) {
	srv := newServer(t, time.Minute)
	c := dial(t, srv, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{not json`)))
	assert.Equal(t, "invalid JSON", expectFrame(t, c, types.TypeError).Error)

	send(t, c, map[string]string{"type": "dance"})
	assert.Equal(t, "unknown message type", expectFrame(t, c, types.TypeError).Error)

	send(t, c, types.ClientMessage{Type: types.TypeMove})
	assert.Equal(t, "missing column", expectFrame(t, c, types.TypeError).Error)

	send(t, c, move(0))
	assert.Equal(t, "not in a game", expectFrame(t, c, types.TypeError).Error)

	send(t, c, types.ClientMessage{Type: types.TypeJoin})
	expectFrame(t, c, types.TypeError)

	send(t, c, types.ClientMessage{Type: types.TypeJoin, Username: "carol"})
	expectFrame(t, c, types.TypeWaiting)

	send(t, c, types.ClientMessage{Type: types.TypeJoin, Username: "carol"})
	assert.Equal(t, "already joined", expectFrame(t, c, types.TypeError).Error)
}

func TestGateway_BotFallback(t *testing.T) {
	srv := newServer(t, 20*time.Millisecond)
	c := dial(t, srv, "username=alice")

	expectFrame(t, c, types.TypeWaiting)
	gs := expectFrame(t, c, types.TypeGameStarted)
	assert.Equal(t, bot.Identity, gs.Opponent)
	assert.Equal(t, 1, gs.Player)
	st := expectFrame(t, c, types.TypeState)
	assert.Equal(t, 1, st.Turn)

	send(t, c, move(3))
	expectFrame(t, c, types.TypeState)
	reply := expectFrame(t, c, types.TypeState)
	assert.Equal(t, 2, reply.Version)
	assert.Equal(t, 1, reply.Turn)
}

func TestGateway_ReconnectRestoresBoard(t *testing.T) {
	srv := newServer(t, time.Minute)

	alice := dial(t, srv, "username=alice")
	expectFrame(t, alice, types.TypeWaiting)
	bob := dial(t, srv, "username=bob")
	gs := expectFrame(t, alice, types.TypeGameStarted)
	expectFrame(t, alice, types.TypeState)
	expectFrame(t, bob, types.TypeWaiting)
	expectFrame(t, bob, types.TypeGameStarted)
	expectFrame(t, bob, types.TypeState)

	send(t, alice, move(3))
	expectFrame(t, alice, types.TypeState)
	before := expectFrame(t, bob, types.TypeState)

	require.NoError(t, bob.Close(websocket.StatusNormalClosure, "network blip"))

	bob2 := dial(t, srv, "username=bob&gameId="+gs.GameID)
	rc := expectFrame(t, bob2, types.TypeReconnected)
	assert.Equal(t, gs.GameID, rc.GameID)
	assert.Equal(t, "alice", rc.Opponent)
	assert.Equal(t, 2, rc.Player)

	st := expectFrame(t, bob2, types.TypeState)
	assert.Equal(t, before.Board, st.Board)
	assert.Equal(t, 2, st.Turn)

	send(t, bob2, move(4))
	after := expectFrame(t, bob2, types.TypeState)
	assert.Equal(t, 2, after.Board[5][4])
}

func TestGateway_PongsKeepQuietClientConnected(t *testing.T) {
	srv := newServer(t, time.Minute, WithTimeouts(150*time.Millisecond, 30*time.Millisecond, time.Second))
	c := dial(t, srv, "username=alice")

	// a pending read is what answers the server's pings
	frames := make(chan frame, 8)
	go func() {
		defer close(frames)
		for {
			var f frame
			if err := wsjson.Read(context.Background(), c, &f); err != nil {
				return
			}
			frames <- f
		}
	}()

	next := func() frame {
		t.Helper()
		select {
		case f, ok := <-frames:
			require.True(t, ok, "connection closed")
			return f
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frame")
			return frame{}
		}
	}
	assert.Equal(t, types.TypeWaiting, next().Type)

	time.Sleep(500 * time.Millisecond)

	send(t, c, move(0))
	f := next()
	assert.Equal(t, types.TypeError, f.Type)
	assert.Equal(t, "not in a game", f.Error)
}

func TestGateway_SilentClientIsDropped(t *testing.T) {
	srv := newServer(t, time.Minute, WithTimeouts(100*time.Millisecond, time.Minute, time.Second))
	c := dial(t, srv, "")

	time.Sleep(300 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	assert.Error(t, err)
}

func TestGateway_ReconnectToUnknownGameCloses(t *testing.T) {
	srv := newServer(t, time.Minute)
	c := dial(t, srv, "username=bob&gameId=nope")

	e := expectFrame(t, c, types.TypeError)
	assert.Equal(t, "game not found", e.Error)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	assert.Error(t, err)
}

func TestFrameFor_GameOverAndUnknown(t *testing.T) {
	f := frameFor(session.GameOver{GameID: "g", Result: "draw"})
	assert.Equal(t, types.GameOver{Type: types.TypeGameOver, Winner: 0, Result: "draw", GameID: "g"}, f)
	assert.Nil(t, frameFor(nil))
}
