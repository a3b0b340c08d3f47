// internal/config/config.go
//
// Process configuration, read once at startup from the environment.
// A .env file in the working directory is loaded first when present.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const devSecret = "dev_secret_change_me"

// Config holds every knob the server reads from the environment.
type Config struct {
	Port          string
	LogLevel      string
	DBPath        string
	JWTSecret     string
	JWTTTL        time.Duration
	ClientOrigin  string
	CatalogFile   string
	DailySalt     string
	SessionTTL    time.Duration
	SweepSchedule string
	RevealDelay   time.Duration
	FeedbackDelay time.Duration
	Production    bool
}

// Load reads .env (if any) and the process environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() Config {
	c := Config{
		Port:          getEnv("PORT", "5175"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DBPath:        getEnv("DB_PATH", "./data/hangman.db"),
		JWTSecret:     getEnv("JWT_SECRET", devSecret),
		JWTTTL:        time.Duration(getInt("JWT_EXPIRES_HOURS", 24)) * time.Hour,
		ClientOrigin:  getEnv("CLIENT_ORIGIN", "http://localhost:4321"),
		CatalogFile:   os.Getenv("CATALOG_FILE"),
		DailySalt:     getEnv("DAILY_SALT", "local_dev_salt"),
		SessionTTL:    getDuration("SESSION_IDLE_TTL", 30*time.Minute),
		SweepSchedule: getEnv("SWEEP_SCHEDULE", "@every 5m"),
		RevealDelay:   getDuration("REVEAL_DELAY", 2*time.Second),
		FeedbackDelay: getDuration("FEEDBACK_DELAY", 600*time.Millisecond),
		Production:    os.Getenv("NODE_ENV") == "production",
	}
	if c.Production && c.JWTSecret == devSecret {
		log.Warn().Msg("JWT_SECRET is unset; using the development secret in production")
	}
	return c
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring invalid integer")
		return def
	}
	return n
}

func getDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring invalid duration")
		return def
	}
	return d
}
