package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the client configuration, sourced from the environment.
type Config struct {
	Env          string
	APIBase      string
	ContentBase  string
	UserID       string
	PollInterval time.Duration
	MaxPolls     int
	HTTPTimeout  time.Duration
}

// Load reads .env if present and builds the configuration with defaults.
func Load() Config {
	_ = godotenv.Load(".env", ".env.local")

	return Config{
		Env:          getenv("APP_ENV", "development"),
		APIBase:      getenv("CHROMA_API_BASE", ""),
		ContentBase:  getenv("CHROMA_CONTENT_BASE", ""),
		UserID:       getenv("CHROMA_USER_ID", ""),
		PollInterval: getduration("POLL_INTERVAL", 0),
		MaxPolls:     getint("MAX_POLLS", 0),
		HTTPTimeout:  getduration("HTTP_TIMEOUT", 0),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
