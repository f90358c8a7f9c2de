package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.True(t, cfg.Server.Compress)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)

	// gRPC config
	assert.Equal(t, "50061", cfg.GRPC.Port)
	assert.True(t, cfg.GRPC.Enabled)

	// Sandbox config
	assert.Equal(t, 5*time.Second, cfg.Sandbox.Timeout.Std())
	assert.Equal(t, 1024, cfg.Sandbox.MaxCallStack)
	assert.Equal(t, 256, cfg.Sandbox.MaxDumpDepth)
	assert.Equal(t, 1<<20, cfg.Sandbox.MaxDumpElements)
	assert.Equal(t, 4, cfg.Sandbox.PoolSize)

	// Session config
	assert.Equal(t, 64, cfg.Session.MaxSessions)
	assert.Equal(t, 10*time.Minute, cfg.Session.IdleTimeout.Std())

	// Fetch config
	assert.False(t, cfg.Fetch.Enabled)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                 "9000",
		"HOST":                 "127.0.0.1",
		"CORS_ORIGINS":         "https://a.example,https://b.example",
		"GRPC_PORT":            "6000",
		"GRPC_ENABLED":         "false",
		"EVAL_TIMEOUT":         "750ms",
		"POOL_SIZE":            "8",
		"SESSION_IDLE_TIMEOUT": "1h",
		"FETCH_ENABLED":        "true",
		"FETCH_ALLOWED_HOSTS":  "api.example.com",
		"LOG_LEVEL":            "debug",
		"LOG_DEV":              "true",
		"RATE_LIMIT_RPS":       "500",
		"RATE_LIMIT_BURST":     "1000",
		"RATE_LIMIT_ENABLED":   "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "6000", cfg.GRPC.Port)
	assert.False(t, cfg.GRPC.Enabled)
	assert.Equal(t, 750*time.Millisecond, cfg.Sandbox.Timeout.Std())
	assert.Equal(t, 8, cfg.Sandbox.PoolSize)
	assert.Equal(t, time.Hour, cfg.Session.IdleTimeout.Std())
	assert.True(t, cfg.Fetch.Enabled)
	assert.Equal(t, []string{"api.example.com"}, cfg.Fetch.AllowedHosts)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Verify overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Verify default values still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5*time.Second, cfg.Sandbox.Timeout.Std())
	assert.True(t, cfg.GRPC.Enabled)
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("EVAL_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 5*time.Second, cfg.Sandbox.Timeout.Std())
}

func TestServerConfig(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		host     string
		wantPort string
		wantHost string
	}{
		{
			name:     "default values",
			wantPort: "8000",
			wantHost: "0.0.0.0",
		},
		{
			name:     "custom port",
			port:     "9000",
			wantPort: "9000",
			wantHost: "0.0.0.0",
		},
		{
			name:     "custom host",
			host:     "localhost",
			wantPort: "8000",
			wantHost: "localhost",
		},
		{
			name:     "custom port and host",
			port:     "3000",
			host:     "127.0.0.1",
			wantPort: "3000",
			wantHost: "127.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.port != "" {
				t.Setenv("PORT", tt.port)
			}
			if tt.host != "" {
				t.Setenv("HOST", tt.host)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantPort, cfg.Server.Port)
			assert.Equal(t, tt.wantHost, cfg.Server.Host)
		})
	}
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		contents string
	}{
		{
			name: "yaml",
			file: "jsvm.yaml",
			contents: `
server:
  port: "7000"
sandbox:
  timeout: 2s
  pool_size: 2
session:
  idle_timeout: 30s
fetch:
  enabled: true
  allowed_hosts:
    - example.com
`,
		},
		{
			name: "toml",
			file: "jsvm.toml",
			contents: `
[server]
port = "7000"

[sandbox]
timeout = "2s"
pool_size = 2

[session]
idle_timeout = "30s"

[fetch]
enabled = true
allowed_hosts = ["example.com"]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.contents), 0o600))

			cfg := Default()
			require.NoError(t, LoadFile(path, cfg))

			assert.Equal(t, "7000", cfg.Server.Port)
			assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset keys keep their defaults")
			assert.Equal(t, 2*time.Second, cfg.Sandbox.Timeout.Std())
			assert.Equal(t, 2, cfg.Sandbox.PoolSize)
			assert.Equal(t, 30*time.Second, cfg.Session.IdleTimeout.Std())
			assert.True(t, cfg.Fetch.Enabled)
			assert.Equal(t, []string{"example.com"}, cfg.Fetch.AllowedHosts)
		})
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jsvm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"7000\"\n  host: \"10.0.0.1\"\n"), 0o600))

	t.Setenv(FileEnv, path)
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7100", cfg.Server.Port)
	assert.Equal(t, "10.0.0.1", cfg.Server.Host)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	err := LoadFile(filepath.Join(dir, "missing.yaml"), Default())
	assert.Error(t, err)

	ini := filepath.Join(dir, "jsvm.ini")
	require.NoError(t, os.WriteFile(ini, []byte("port=1"), 0o600))
	err = LoadFile(ini, Default())
	assert.ErrorContains(t, err, "unsupported")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sandbox:\n  timeout: later\n"), 0o600))
	err = LoadFile(bad, Default())
	assert.Error(t, err)
}
