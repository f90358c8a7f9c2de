// Package main is the entry point for the jsvm evaluation server.
//
// The server runs JavaScript in isolated goja sandboxes and serves the
// results over three transports:
//
//	HTTP    POST /eval, /sessions/...   JSON request/response
//	WS      GET  /stream                 one sandbox per connection
//	gRPC    jsvm.v1.Evaluator/Eval       structpb values
//
// Configuration:
//   - Defaults, then the file named by JSVM_CONFIG (YAML or TOML)
//   - Environment variables (12-factor)
//   - CLI flags (override everything else)
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -grpc-port 50061
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
//	# Explicit config file
//	./server -config jsvm.yaml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
