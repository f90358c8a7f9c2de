package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// FileEnv names the environment variable pointing at an optional config file.
const FileEnv = "JSVM_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	GRPC      GRPCConfig      `yaml:"grpc" toml:"grpc"`
	Sandbox   SandboxConfig   `yaml:"sandbox" toml:"sandbox"`
	Session   SessionConfig   `yaml:"session" toml:"session"`
	Fetch     FetchConfig     `yaml:"fetch" toml:"fetch"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string   `envconfig:"PORT" yaml:"port" toml:"port"`
	Host        string   `envconfig:"HOST" yaml:"host" toml:"host"`
	Compress    bool     `envconfig:"COMPRESS" yaml:"compress" toml:"compress"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" yaml:"cors_origins" toml:"cors_origins"`
}

// GRPCConfig holds the gRPC listener configuration.
type GRPCConfig struct {
	Port    string `envconfig:"GRPC_PORT" yaml:"port" toml:"port"`
	Enabled bool   `envconfig:"GRPC_ENABLED" yaml:"enabled" toml:"enabled"`
}

// SandboxConfig holds script execution limits.
type SandboxConfig struct {
	Timeout         Duration `envconfig:"EVAL_TIMEOUT" yaml:"timeout" toml:"timeout"`
	MaxCallStack    int      `envconfig:"MAX_CALL_STACK" yaml:"max_call_stack" toml:"max_call_stack"`
	MaxDumpDepth    int      `envconfig:"MAX_DUMP_DEPTH" yaml:"max_dump_depth" toml:"max_dump_depth"`
	MaxDumpElements int      `envconfig:"MAX_DUMP_ELEMENTS" yaml:"max_dump_elements" toml:"max_dump_elements"`
	MaxScriptBytes  int      `envconfig:"MAX_SCRIPT_BYTES" yaml:"max_script_bytes" toml:"max_script_bytes"`
	PoolSize        int      `envconfig:"POOL_SIZE" yaml:"pool_size" toml:"pool_size"`
	EnableConsole   bool     `envconfig:"ENABLE_CONSOLE" yaml:"enable_console" toml:"enable_console"`
	EnableHelpers   bool     `envconfig:"ENABLE_HELPERS" yaml:"enable_helpers" toml:"enable_helpers"`
}

// SessionConfig holds long-lived sandbox limits.
type SessionConfig struct {
	MaxSessions int      `envconfig:"MAX_SESSIONS" yaml:"max_sessions" toml:"max_sessions"`
	IdleTimeout Duration `envconfig:"SESSION_IDLE_TIMEOUT" yaml:"idle_timeout" toml:"idle_timeout"`
}

// FetchConfig holds the outbound HTTP API exposed to scripts.
type FetchConfig struct {
	Enabled       bool     `envconfig:"FETCH_ENABLED" yaml:"enabled" toml:"enabled"`
	Timeout       Duration `envconfig:"FETCH_TIMEOUT" yaml:"timeout" toml:"timeout"`
	RetryMax      int      `envconfig:"FETCH_RETRY_MAX" yaml:"retry_max" toml:"retry_max"`
	RatePerSecond float64  `envconfig:"FETCH_RPS" yaml:"rate_per_second" toml:"rate_per_second"`
	Burst         int      `envconfig:"FETCH_BURST" yaml:"burst" toml:"burst"`
	MaxBodyBytes  int64    `envconfig:"FETCH_MAX_BODY_BYTES" yaml:"max_body_bytes" toml:"max_body_bytes"`
	AllowedHosts  []string `envconfig:"FETCH_ALLOWED_HOSTS" yaml:"allowed_hosts" toml:"allowed_hosts"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// Load builds the configuration from defaults, then the file named by
// JSVM_CONFIG (if set), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			Compress:    true,
			CORSOrigins: []string{"*"},
		},
		GRPC: GRPCConfig{
			Port:    "50061",
			Enabled: true,
		},
		Sandbox: SandboxConfig{
			Timeout:         Duration(5 * time.Second),
			MaxCallStack:    1024,
			MaxDumpDepth:    256,
			MaxDumpElements: 1 << 20,
			MaxScriptBytes:  1 << 20,
			PoolSize:        4,
			EnableConsole:   true,
			EnableHelpers:   true,
		},
		Session: SessionConfig{
			MaxSessions: 64,
			IdleTimeout: Duration(10 * time.Minute),
		},
		Fetch: FetchConfig{
			Enabled:       false,
			Timeout:       Duration(10 * time.Second),
			RetryMax:      2,
			RatePerSecond: 5,
			Burst:         10,
			MaxBodyBytes:  1 << 20,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
