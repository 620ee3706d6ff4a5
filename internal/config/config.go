// Package config loads server settings from the environment, an optional .env
// file and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/DoyleJ11/connect4-backend/internal/recorder"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMongo    = "mongo"

	BotHeuristic = "heuristic"
	BotRandom    = "random"
)

type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Env      string `env:"ENV" envDefault:"prod"`

	BotWait      time.Duration `env:"BOT_WAIT" envDefault:"10s"`
	GracePeriod  time.Duration `env:"GRACE_PERIOD" envDefault:"30s"`
	Retention    time.Duration `env:"RETENTION" envDefault:"2m"`
	BotMoveDelay time.Duration `env:"BOT_MOVE_DELAY" envDefault:"700ms"`
	BotStrategy  string        `env:"BOT_STRATEGY" envDefault:"heuristic"`

	WSIdleTimeout  time.Duration `env:"WS_IDLE_TIMEOUT" envDefault:"5m"`
	WSPingInterval time.Duration `env:"WS_PING_INTERVAL" envDefault:"20s"`
	WSWriteTimeout time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"3s"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	MongoURI    string `env:"MONGODB_URI"`

	CORSOrigins []string `env:"CORS_ORIGIN" envDefault:"*" envSeparator:","`
}

// Load reads .env (if present) and file (if non-empty) into the process
// environment without overriding variables that are already set, then parses
// the environment into a Config.
func Load(file string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if file != "" {
		if err := loadFile(file); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// loadFile exports the keys of a YAML/JSON/TOML file as environment variables,
// so grace_period: 45s becomes GRACE_PERIOD=45s.
func loadFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, fileValue(v, key)); err != nil {
			return fmt.Errorf("export %s: %w", name, err)
		}
	}
	return nil
}

// fileValue renders lists with the same separator env.Parse splits on.
func fileValue(v *viper.Viper, key string) string {
	switch v.Get(key).(type) {
	case []any, []string:
		return strings.Join(v.GetStringSlice(key), ",")
	}
	return v.GetString(key)
}

func (c Config) Validate() error {
	var err error
	for name, d := range map[string]time.Duration{
		"BOT_WAIT":         c.BotWait,
		"GRACE_PERIOD":     c.GracePeriod,
		"RETENTION":        c.Retention,
		"BOT_MOVE_DELAY":   c.BotMoveDelay,
		"WS_IDLE_TIMEOUT":  c.WSIdleTimeout,
		"WS_PING_INTERVAL": c.WSPingInterval,
		"WS_WRITE_TIMEOUT": c.WSWriteTimeout,
	} {
		if d <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			err = multierr.Append(err, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreRedis:
		if c.RedisURL == "" {
			err = multierr.Append(err, errors.New("REDIS_URL is required for the redis store"))
		}
	case StoreMongo:
		if c.MongoURI == "" {
			err = multierr.Append(err, errors.New("MONGODB_URI is required for the mongo store"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.BotStrategy {
	case BotHeuristic, BotRandom:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown BOT_STRATEGY %q", c.BotStrategy))
	}
	return err
}

func (c Config) Store() recorder.StoreConfig {
	return recorder.StoreConfig{
		Driver:      c.StoreDriver,
		DatabaseURL: c.DatabaseURL,
		RedisURL:    c.RedisURL,
		MongoURI:    c.MongoURI,
	}
}

// Dev reports whether human-readable development logging was requested.
func (c Config) Dev() bool { return c.Env == "dev" || c.Env == "development" }
