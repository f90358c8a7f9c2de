// Package config provides 12-factor configuration management for the jsvm server.
//
// Values start from Default, are overlaid by an optional YAML or TOML file
// named by JSVM_CONFIG, and then by environment variables. CLI flags in
// cmd/server override all three.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, compression, CORS)
//   - GRPC: gRPC evaluator listener
//   - Sandbox: evaluation timeout, stack and dump limits, pool size
//   - Session: session capacity and idle expiry
//   - Fetch: outbound HTTP API exposed to scripts
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, COMPRESS, CORS_ORIGINS, GRPC_PORT, GRPC_ENABLED
//   - EVAL_TIMEOUT, MAX_CALL_STACK, MAX_DUMP_DEPTH, MAX_DUMP_ELEMENTS, MAX_SCRIPT_BYTES, POOL_SIZE, ENABLE_CONSOLE, ENABLE_HELPERS
//   - MAX_SESSIONS, SESSION_IDLE_TIMEOUT
//   - FETCH_ENABLED, FETCH_TIMEOUT, FETCH_RETRY_MAX, FETCH_RPS, FETCH_BURST, FETCH_MAX_BODY_BYTES, FETCH_ALLOWED_HOSTS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
