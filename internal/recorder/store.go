package recorder

import (
	"context"
	"fmt"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
)

// StoreConfig selects a backend; only the URL for Driver is consulted.
type StoreConfig struct {
	Driver      string
	DatabaseURL string
	RedisURL    string
	MongoURI    string
}

// OpenStore builds the store named by c.Driver.
func OpenStore(ctx context.Context, c StoreConfig) (Store, error) {
	switch c.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("open store: %s driver needs DATABASE_URL", c.Driver)
		}
		return OpenPostgres(c.DatabaseURL)
	case DriverRedis:
		if c.RedisURL == "" {
			return nil, fmt.Errorf("open store: %s driver needs REDIS_URL", c.Driver)
		}
		return OpenRedis(ctx, c.RedisURL)
	case DriverMongo:
		if c.MongoURI == "" {
			return nil, fmt.Errorf("open store: %s driver needs MONGODB_URI", c.Driver)
		}
		return OpenMongo(ctx, c.MongoURI)
	default:
		return nil, fmt.Errorf("open store: unknown driver %q", c.Driver)
	}
}
