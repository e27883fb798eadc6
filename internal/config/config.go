// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"go.yaml.in/yaml/v3"
)

// Cache backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the top-level service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
	Policy    PolicyConfig    `yaml:"policy"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Movies    []MovieEntry    `yaml:"movies"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CacheConfig selects and tunes the key-value store.
type CacheConfig struct {
	Backend string       `yaml:"backend"` // "redis" or "memory"
	Redis   RedisConfig  `yaml:"redis"`
	Memory  MemoryConfig `yaml:"memory"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL        string        `yaml:"url"`
	DNSCache   bool          `yaml:"dns_cache"`
	DNSRefresh time.Duration `yaml:"dns_refresh"`
}

// MemoryConfig holds in-process store settings.
type MemoryConfig struct {
	MaxSize       int           `yaml:"max_size"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DatabaseConfig holds SQLite settings and the simulated latency.
type DatabaseConfig struct {
	DSN          string        `yaml:"dsn"` // file path or ":memory:"
	ReadLatency  time.Duration `yaml:"read_latency"`
	WriteLatency time.Duration `yaml:"write_latency"`
}

// PolicyConfig holds the cache policy knobs.
type PolicyConfig struct {
	MovieTTL       time.Duration `yaml:"movie_ttl"`
	ProfileTTL     time.Duration `yaml:"profile_ttl"`
	LeaderboardKey string        `yaml:"leaderboard_key"`
	TopMax         int64         `yaml:"top_max"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// MovieEntry is a movie seeded into the record store on startup.
type MovieEntry struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Year  int    `yaml:"year"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Cache: CacheConfig{
			Backend: BackendRedis,
			Redis: RedisConfig{
				URL:        "redis://localhost:6379",
				DNSRefresh: 5 * time.Minute,
			},
			Memory: MemoryConfig{
				MaxSize:       100_000,
				SweepInterval: 30 * time.Second,
			},
		},
		Database: DatabaseConfig{
			DSN:          ":memory:",
			ReadLatency:  600 * time.Millisecond,
			WriteLatency: 100 * time.Millisecond,
		},
		Policy: PolicyConfig{
			MovieTTL:       60 * time.Second,
			ProfileTTL:     600 * time.Second,
			LeaderboardKey: "lb:global",
			TopMax:         100,
		},
		Movies: []MovieEntry{
			{ID: "1", Title: "Inception", Year: 2010},
			{ID: "2", Title: "Interstellar", Year: 2014},
		},
	}
}

// Load reads and parses a YAML config file, expanding environment variables,
// then applies REDIS_URL, DB_DELAY_MS and PORT overrides.
// An empty path skips the file and starts from Defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		data = expandEnv(data)
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("REDIS_URL"); ok && v != "" {
		cfg.Cache.Redis.URL = v
	}
	if v, ok := os.LookupEnv("DB_DELAY_MS"); ok && v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return fmt.Errorf("DB_DELAY_MS: invalid value %q", v)
		}
		cfg.Database.ReadLatency = time.Duration(ms) * time.Millisecond
	}
	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			return fmt.Errorf("PORT: invalid value %q", v)
		}
		cfg.Server.Addr = ":" + v
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case BackendRedis:
		if c.Cache.Redis.URL == "" {
			return fmt.Errorf("cache.redis.url is required for the redis backend")
		}
		if c.Cache.Redis.DNSCache && c.Cache.Redis.DNSRefresh <= 0 {
			return fmt.Errorf("cache.redis.dns_refresh must be positive when dns_cache is on")
		}
	case BackendMemory:
		if c.Cache.Memory.MaxSize <= 0 {
			return fmt.Errorf("cache.memory.max_size must be positive")
		}
		if c.Cache.Memory.SweepInterval <= 0 {
			return fmt.Errorf("cache.memory.sweep_interval must be positive")
		}
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	if c.Policy.MovieTTL <= 0 || c.Policy.ProfileTTL <= 0 {
		return fmt.Errorf("policy: TTLs must be positive")
	}
	if c.Policy.TopMax < 1 {
		return fmt.Errorf("policy.top_max must be at least 1")
	}
	if c.Policy.LeaderboardKey == "" {
		return fmt.Errorf("policy.leaderboard_key is required")
	}
	return nil
}
