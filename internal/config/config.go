// Package config reads process settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the commands use.
type Config struct {
	Port         string
	DBURL        string
	NATSURL      string
	NATSCred     string
	NATSUser     string
	NATSPassword string
	LogLevel     slog.Level
	HistoryLimit int
	RateRequests int
	RateWindow   time.Duration
	ServerURL    string
}

// Load reads .env (if present) and the environment. It does not check for
// required values; see RequireServer and RequireDB.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Config{
		Port:         getenv("PORT"),
		DBURL:        getenv("DB_URL"),
		NATSURL:      getenv("NATS_URL"),
		NATSCred:     getenv("NATS_CRED"),
		NATSUser:     getenv("NATS_USER"),
		NATSPassword: getenv("NATS_PASSWORD"),
		ServerURL:    getenv("CHAT_SERVER"),
		HistoryLimit: 50,
		RateRequests: 30,
		RateWindow:   time.Minute,
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:" + c.Port
	}

	var errs []error

	if v := getenv("LOG_LEVEL"); v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}
	if v := getenv("HISTORY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("HISTORY_LIMIT: want a positive integer, got %q", v))
		}
		c.HistoryLimit = n
	}
	if v := getenv("RATE_LIMIT_REQUESTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_REQUESTS: want a positive integer, got %q", v))
		}
		c.RateRequests = n
	}
	if v := getenv("RATE_LIMIT_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW: want a positive duration, got %q", v))
		}
		c.RateWindow = d
	}

	return c, errors.Join(errs...)
}

// RequireDB reports a missing database URL.
func (c Config) RequireDB() error {
	if c.DBURL == "" {
		return errors.New("DB_URL environment variable is not set")
	}
	return nil
}

// RequireServer reports every setting serve needs that is missing.
func (c Config) RequireServer() error {
	var errs []error
	if err := c.RequireDB(); err != nil {
		errs = append(errs, err)
	}
	if c.NATSURL == "" {
		errs = append(errs, errors.New("NATS_URL environment variable is not set"))
	}
	return errors.Join(errs...)
}
