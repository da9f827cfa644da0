package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration shared by the store server and the CLI.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Client        ClientConfig
	Cache         CacheConfig
	Observability ObservabilityConfig
	Log           LogConfig
	SeedFile      string
}

type ServerConfig struct {
	Addr               string
	RateLimitPerSecond int
	RateLimitBurst     int
	CORSOrigins        []string
	ShutdownTimeout    time.Duration
}

type DatabaseConfig struct {
	URL string
}

// DSN returns the connection string; empty means the in-memory store is used.
func (d DatabaseConfig) DSN() string {
	return d.URL
}

// Enabled reports whether a database was configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

type ClientConfig struct {
	BaseURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
}

type CacheConfig struct {
	TTL time.Duration
}

type ObservabilityConfig struct {
	MetricsEnabled bool
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads an optional .env file and then the CITIES_* environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, applying defaults for unset keys.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	e := env{lookup: lookup}

	cfg := &Config{
		Server: ServerConfig{
			Addr:               e.str("CITIES_STORE_ADDR", ":8000"),
			RateLimitPerSecond: e.int("CITIES_RATE_LIMIT_PER_SECOND", 50),
			RateLimitBurst:     e.int("CITIES_RATE_LIMIT_BURST", 100),
			CORSOrigins:        e.list("CITIES_CORS_ORIGINS", "http://localhost:5173,http://localhost:3000"),
			ShutdownTimeout:    e.duration("CITIES_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL: e.str("CITIES_DATABASE_URL", ""),
		},
		Client: ClientConfig{
			BaseURL:           e.str("CITIES_BASE_URL", "http://localhost:8000"),
			RequestsPerSecond: e.float("CITIES_CLIENT_RPS", 0),
			Timeout:           e.duration("CITIES_CLIENT_TIMEOUT", 30*time.Second),
		},
		Cache: CacheConfig{
			TTL: e.duration("CITIES_CACHE_TTL", 5*time.Minute),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: e.bool("CITIES_METRICS_ENABLED", true),
		},
		Log: LogConfig{
			Level:  e.str("CITIES_LOG_LEVEL", "info"),
			Format: e.str("CITIES_LOG_FORMAT", "text"),
		},
		SeedFile: e.str("CITIES_SEED_FILE", ""),
	}

	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	return cfg, nil
}

// env collects parse errors so every bad key is reported at once.
type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *env) str(key, def string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid non-negative integer %q", key, v))
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid non-negative number %q", key, v))
		return def
	}
	return f
}

func (e *env) bool(key string, def bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (e *env) list(key, def string) []string {
	v := e.str(key, def)
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
