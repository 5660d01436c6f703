// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/glossgame/internal/game"
)

// Database drivers accepted in DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	LogLevel    slog.Level
	CORSOrigins []string

	DBDriver    string
	DBPath      string
	DatabaseURL string

	// ContentPath points at a glossary JSON file; empty uses the embedded glossary.
	ContentPath string

	Game    GameConfig
	Sweeper SweeperConfig
}

// GameConfig controls session length and scoring.
type GameConfig struct {
	DefaultQuestions int
	MaxQuestions     int
	Scoring          game.Policy
}

// SweeperConfig controls abandonment of idle sessions.
type SweeperConfig struct {
	IdleTTL  time.Duration
	Interval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	tiers, err := game.ParseTiers(getEnv("SCORE_TIERS", "3:1.2,6:1.5,10:2.0"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: SCORE_TIERS: %w", err)
	}
	policy, err := game.NewPolicy(getEnvInt("SCORE_BASE", game.DefaultBaseScore), tiers)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: scoring policy: %w", err)
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		LogLevel:    level,
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DBPath:      getEnv("DB_PATH", "./data/glossgame.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		ContentPath: getEnv("CONTENT_PATH", ""),
		Game: GameConfig{
			DefaultQuestions: getEnvInt("DEFAULT_QUESTIONS", game.DefaultQuestions),
			MaxQuestions:     getEnvInt("MAX_QUESTIONS", game.DefaultMaxQuestions),
			Scoring:          policy,
		},
		Sweeper: SweeperConfig{
			IdleTTL:  getEnvDuration("SESSION_IDLE_TTL", 24*time.Hour),
			Interval: getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("DB_DRIVER %q is not one of sqlite, postgres, memory", c.DBDriver)
	}
	if c.Game.MaxQuestions <= 0 {
		return fmt.Errorf("MAX_QUESTIONS must be > 0")
	}
	if c.Game.DefaultQuestions <= 0 || c.Game.DefaultQuestions > c.Game.MaxQuestions {
		return fmt.Errorf("DEFAULT_QUESTIONS must be between 1 and MAX_QUESTIONS")
	}
	if c.Sweeper.IdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be > 0")
	}
	if c.Sweeper.Interval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
