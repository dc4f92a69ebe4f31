package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port            int
	DBPath          string // empty keeps state in memory only
	AppID           string
	SessionTTL      time.Duration
	JanitorInterval time.Duration
	DrawSeed        int64
	LogFile         string
	Verbose         bool
	GinMode         string
}

// Load reads an optional .env file, then parses args. Every flag defaults to
// its environment variable, so flags override env which overrides the built-in default.
func Load(args []string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	fs := flag.NewFlagSet("luckydraw", flag.ContinueOnError)

	port, err := envInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	ttl, err := envDuration("SESSION_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	janitor, err := envDuration("JANITOR_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	seed, err := envInt64("DRAW_SEED", 0)
	if err != nil {
		return nil, err
	}
	verbose, err := envBool("VERBOSE", false)
	if err != nil {
		return nil, err
	}

	fs.IntVar(&cfg.Port, "p", port, "Server port")
	fs.StringVar(&cfg.DBPath, "db", getEnvOrDefault("DB_PATH", "./data/luckydraw.db"), "SQLite database path (empty for in-memory)")
	fs.StringVar(&cfg.AppID, "app-id", getEnvOrDefault("APP_ID", "lucky-draw"), "Key prefix for persisted state")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", ttl, "Evict sessions idle for longer than this")
	fs.DurationVar(&cfg.JanitorInterval, "janitor-interval", janitor, "How often idle sessions are evicted")
	fs.Int64Var(&cfg.DrawSeed, "seed", seed, "Fixed draw seed for reproducible runs (0 = random)")
	fs.StringVar(&cfg.LogFile, "log-file", os.Getenv("LOG_FILE"), "Also write logs to this file")
	fs.BoolVar(&cfg.Verbose, "v", verbose, "Verbose logging")
	fs.StringVar(&cfg.GinMode, "gin-mode", getEnvOrDefault("GIN_MODE", "release"), "Gin mode (debug, release, test)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.AppID == "" {
		return nil, errors.New("app id must not be empty")
	}
	if cfg.SessionTTL <= 0 {
		return nil, errors.New("session TTL must be positive")
	}
	if cfg.JanitorInterval <= 0 {
		return nil, errors.New("janitor interval must be positive")
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		return nil, fmt.Errorf("invalid gin mode: %q", cfg.GinMode)
	}

	return &cfg, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable: %w", key, err)
	}
	return n, nil
}

func envInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable: %w", key, err)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s env variable: %w", key, err)
	}
	return b, nil
}
