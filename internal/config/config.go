// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/sirupsen/logrus"
)

// Config is everything the server and historian read from the environment.
// Values come from the process environment, which godotenv/autoload seeds from .env.
type Config struct {
	TCPAddr      string
	WSAddr       string // empty disables the websocket gateway
	Workers      int
	Rules        game.Rules
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
	LogLevel     logrus.Level

	DatabaseURL string // empty disables result persistence
	RedisAddr   string // empty disables the action log
	RedisDB     int

	QueueName  string
	BatchSize  int
	FlushDelay time.Duration
}

// Load reads the configuration. Malformed numbers and durations are errors, not silent defaults.
func Load() (Config, error) {
	var errs []error
	intVar := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	durVar := func(key string, def time.Duration) time.Duration {
		v, err := getEnvDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := Config{
		TCPAddr: getEnv("UNO_TCP_ADDR", "127.0.0.1:7878"),
		WSAddr:  os.Getenv("UNO_WS_ADDR"),
		Workers: intVar("UNO_WORKERS", 5),
		Rules: game.Rules{
			MaxPlayers: intVar("UNO_MAX_PLAYERS", 10),
			MinPlayers: intVar("UNO_MIN_PLAYERS", 2),
			HandSize:   intVar("UNO_HAND_SIZE", 7),
		},
		IdleTimeout:  durVar("UNO_IDLE_TIMEOUT", 5*time.Minute),
		WriteTimeout: durVar("UNO_WRITE_TIMEOUT", 5*time.Second),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisDB:     intVar("REDIS_DB", 0),

		QueueName:  getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName),
		BatchSize:  intVar("HISTORIAN_BATCH_SIZE", 20),
		FlushDelay: time.Duration(intVar("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
	}

	level, err := logrus.ParseLevel(getEnv("UNO_LOG_LEVEL", "info"))
	if err != nil {
		errs = append(errs, fmt.Errorf("UNO_LOG_LEVEL: %w", err))
	}
	cfg.LogLevel = level

	if len(errs) > 0 {
		return cfg, errs[0]
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.TCPAddr == "" {
		return fmt.Errorf("UNO_TCP_ADDR must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("UNO_WORKERS must be at least 1, got %d", c.Workers)
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("invalid table rules: %w", err)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("UNO_IDLE_TIMEOUT must be positive, got %v", c.IdleTimeout)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("UNO_WRITE_TIMEOUT must be positive, got %v", c.WriteTimeout)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("HISTORIAN_BATCH_SIZE must be at least 1, got %d", c.BatchSize)
	}
	if c.FlushDelay <= 0 {
		return fmt.Errorf("HISTORIAN_FLUSH_MS must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

func getEnvInt(key string, defVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defVal, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return i, nil
}

func getEnvDuration(key string, defVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defVal, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
