package recorder

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract runs against a live backend; identities are unique per run so
// a shared database does not disturb the assertions.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	run := uuid.NewString()[:8]
	alice, bob := "alice-"+run, "bob-"+run

	ok, err := s.Record(ctx, win("g1-"+run, alice))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Record(ctx, win("g1-"+run, alice))
	require.NoError(t, err)
	assert.False(t, ok, "second record of the same game must be ignored")

	_, err = s.Record(ctx, win("g2-"+run, bob))
	require.NoError(t, err)
	_, err = s.Record(ctx, win("g3-"+run, bob))
	require.NoError(t, err)

	got, err := s.Standings(ctx, 0)
	require.NoError(t, err)
	wins := map[string]int{}
	pos := map[string]int{}
	for i, st := range got {
		wins[st.Player] = st.Wins
		pos[st.Player] = i
	}
	assert.Equal(t, 1, wins[alice])
	assert.Equal(t, 2, wins[bob])
	assert.Less(t, pos[bob], pos[alice])
}

func TestGormStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := OpenPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	storeContract(t, s)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	s, err := OpenRedis(context.Background(), url)
	require.NoError(t, err)
	s.prefix = "connect4-test-" + uuid.NewString()[:8]
	t.Cleanup(func() { _ = s.Close() })

	storeContract(t, s)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI not set")
	}
	s, err := OpenMongo(context.Background(), uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	storeContract(t, s)
}
