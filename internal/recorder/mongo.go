package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoDatabase = "connect4"

type mongoGame struct {
	ID         string    `bson:"_id"`
	Player1    string    `bson:"player1"`
	Player2    string    `bson:"player2"`
	Winner     string    `bson:"winner"`
	Outcome    string    `bson:"outcome"`
	Moves      int       `bson:"moves"`
	FinishedAt time.Time `bson:"finishedAt"`
}

// MongoStore keeps one document per game, keyed by game id; standings are an
// aggregation over those documents.
type MongoStore struct {
	client *mongo.Client
	games  *mongo.Collection
}

func OpenMongo(ctx context.Context, uri string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoStore(client, mongoDatabase), nil
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, games: client.Database(database).Collection("games")}
}

func (s *MongoStore) Record(ctx context.Context, r Result) (bool, error) {
	_, err := s.games.InsertOne(ctx, mongoGame{
		ID:         r.GameID,
		Player1:    r.Player1,
		Player2:    r.Player2,
		Winner:     r.Winner,
		Outcome:    r.Outcome,
		Moves:      r.Moves,
		FinishedAt: r.FinishedAt,
	})
	switch {
	case mongo.IsDuplicateKeyError(err):
		return false, nil
	case err != nil:
		return false, classifyMongo(err)
	}
	return true, nil
}

func (s *MongoStore) Standings(ctx context.Context, limit int) ([]Standing, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "winner", Value: bson.D{{Key: "$ne", Value: ""}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$winner"},
			{Key: "wins", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "wins", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	cursor, err := s.games.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Player string `bson:"_id"`
		Wins   int    `bson:"wins"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	out := make([]Standing, 0, len(rows))
	for _, row := range rows {
		out = append(out, Standing{Player: row.Player, Wins: row.Wins})
	}
	return out, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func classifyMongo(err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return err
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorLabel("RetryableWriteError") {
		return err
	}
	return backoff.Permanent(err)
}
