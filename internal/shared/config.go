package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds process settings from the environment. Pipeline and model
// settings live in the YAML documents under ConfigDir.
type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	ConfigDir   string
	APIToken    string

	ModelBackend   string // local | remote
	ModelServerURL string
	ModelServerKey string
	ModelServerRPS int

	RedisAddr string // empty disables the prediction cache
	RedisPass string
	RedisDB   int
	CacheTTL  time.Duration

	MySQLDSN     string // empty skips the clean listing store
	CleanWorkers int
	MaxBodyBytes int64

	// Warnings collects problems found while loading; they are logged by
	// LogWarnings once the logger is configured.
	Warnings []string
}

// Load reads an optional .env file, then the environment. It never logs.
func Load(envFiles ...string) Config {
	var warnings []string
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		warnings = append(warnings, fmt.Sprintf("could not read .env file: %v", err))
	}
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			warnings = append(warnings, fmt.Sprintf("ignoring non-integer %s=%q", k, v))
		}
		return def
	}
	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		LogLevel:       env("LOG_LEVEL", "info"),
		HTTPAddr:       env("HTTP_ADDR", ":8000"),
		MetricsAddr:    env("METRICS_ADDR", ""),
		ConfigDir:      env("CONFIG_DIR", ""),
		APIToken:       os.Getenv("API_TOKEN"),
		ModelBackend:   env("MODEL_BACKEND", "local"),
		ModelServerURL: os.Getenv("MODEL_SERVER_URL"),
		ModelServerKey: os.Getenv("MODEL_SERVER_KEY"),
		ModelServerRPS: atoi("MODEL_SERVER_RPS", 20),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPass:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:        atoi("REDIS_DB", 0),
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 3600)) * time.Second,
		MySQLDSN:       os.Getenv("MYSQL_DSN"),
		CleanWorkers:   atoi("CLEAN_WORKERS", 4),
		MaxBodyBytes:   int64(atoi("MAX_BODY_BYTES", 1<<20)),
	}
	if c.APIToken == "" {
		warnings = append(warnings, "API_TOKEN is empty; every /predict request will be rejected")
	}
	c.Warnings = warnings
	return c
}

// LogWarnings writes Warnings to the global logger.
func (c Config) LogWarnings() {
	for _, w := range c.Warnings {
		log.Warn().Msg(w)
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
