package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Logging   LogConfig       `toml:"logging" yaml:"logging"`
	Runtime   RuntimeConfig   `toml:"runtime" yaml:"runtime"`
	Drain     DrainConfig     `toml:"drain" yaml:"drain"`
	Transport TransportConfig `toml:"transport" yaml:"transport"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" toml:"port" yaml:"port"`
	Host string `envconfig:"HOST" default:"127.0.0.1" toml:"host" yaml:"host"`
	// AllowedOrigins lists the browser origins, besides the server's own,
	// that may call the API and open the console websocket.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" toml:"allowed_origins" yaml:"allowed_origins"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" toml:"level" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" toml:"development" yaml:"development"`
}

// RuntimeConfig holds the console capture settings read by running cells.
type RuntimeConfig struct {
	OutputMaxBytes    int  `envconfig:"OUTPUT_MAX_BYTES" default:"5000000" toml:"output_max_bytes" yaml:"output_max_bytes"`
	StdStreamMaxBytes int  `envconfig:"STD_STREAM_MAX_BYTES" default:"1000000" toml:"std_stream_max_bytes" yaml:"std_stream_max_bytes"`
	RedirectConsole   bool `envconfig:"REDIRECT_CONSOLE" default:"true" toml:"redirect_console" yaml:"redirect_console"`
	CaptureFds        bool `envconfig:"CAPTURE_FDS" default:"true" toml:"capture_fds" yaml:"capture_fds"`
	CapturePTY        bool `envconfig:"CAPTURE_PTY" default:"false" toml:"capture_pty" yaml:"capture_pty"`
}

// DrainConfig paces the console buffer drain loop.
type DrainConfig struct {
	FlushesPerSecond float64 `envconfig:"DRAIN_RATE" default:"60" toml:"flushes_per_second" yaml:"flushes_per_second"`
	Burst            int     `envconfig:"DRAIN_BURST" default:"1" toml:"burst" yaml:"burst"`
}

// TransportConfig holds outbound channel settings.
type TransportConfig struct {
	WriteTimeout    time.Duration `envconfig:"WS_WRITE_TIMEOUT" default:"10s" toml:"write_timeout" yaml:"write_timeout"`
	BreakerFailures uint32        `envconfig:"BREAKER_FAILURES" default:"5" toml:"breaker_failures" yaml:"breaker_failures"`
	BreakerCooldown time.Duration `envconfig:"BREAKER_COOLDOWN" default:"5s" toml:"breaker_cooldown" yaml:"breaker_cooldown"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" toml:"requests_per_second" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" toml:"burst" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" toml:"enabled" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile reads a TOML or YAML file on top of the defaults. Keys missing
// from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Runtime.OutputMaxBytes <= 0 {
		return fmt.Errorf("output_max_bytes must be positive, got %d", c.Runtime.OutputMaxBytes)
	}
	if c.Runtime.StdStreamMaxBytes <= 0 {
		return fmt.Errorf("std_stream_max_bytes must be positive, got %d", c.Runtime.StdStreamMaxBytes)
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin == "" || strings.Contains(origin, "*") {
			return fmt.Errorf("allowed_origins must list explicit origins, got %q", origin)
		}
	}
	if c.Drain.FlushesPerSecond < 0 {
		return fmt.Errorf("drain flushes_per_second must not be negative, got %v", c.Drain.FlushesPerSecond)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "127.0.0.1",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Runtime: DefaultRuntime(),
		Drain: DrainConfig{
			FlushesPerSecond: 60,
			Burst:            1,
		},
		Transport: TransportConfig{
			WriteTimeout:    10 * time.Second,
			BreakerFailures: 5,
			BreakerCooldown: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// DefaultRuntime returns the runtime defaults used when no configuration
// has been installed.
func DefaultRuntime() RuntimeConfig {
	return RuntimeConfig{
		OutputMaxBytes:    5_000_000,
		StdStreamMaxBytes: 1_000_000,
		RedirectConsole:   true,
		CaptureFds:        true,
		CapturePTY:        false,
	}
}
