package recorder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// recordScript marks the game as seen and credits the winner in one step.
var recordScript = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
	return 0
end
if ARGV[2] ~= '' then
	redis.call('ZINCRBY', KEYS[2], 1, ARGV[2])
end
return 1
`)

// RedisStore keeps tallies in a sorted set and one key per recorded game.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client, "connect4"), nil
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) winsKey() string { return s.prefix + ":wins" }

func (s *RedisStore) gameKey(id string) string { return s.prefix + ":game:" + id }

func (s *RedisStore) Record(ctx context.Context, r Result) (bool, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return false, err
	}
	n, err := recordScript.Run(ctx, s.client, []string{s.gameKey(r.GameID), s.winsKey()}, payload, r.Winner).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) Standings(ctx context.Context, limit int) ([]Standing, error) {
	// ties must come back by identity, which ZREVRANGE does not give us
	zs, err := s.client.ZRevRangeWithScores(ctx, s.winsKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Standing, 0, len(zs))
	for _, z := range zs {
		player, _ := z.Member.(string)
		out = append(out, Standing{Player: player, Wins: int(z.Score)})
	}
	sortStandings(out)
	return clip(out, limit), nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
