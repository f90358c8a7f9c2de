// Package server wires the jsvm evaluation service together.
//
// From a config.Config it builds:
//   - the zap logger, Prometheus metrics and request tracer
//   - the optional fetchText host API
//   - a sandbox pool for stateless evaluations
//   - the session manager and its idle sweeper
//   - the Gin router: recovery, request IDs, tracing, request logs,
//     metrics, CORS and optional per-IP rate limiting
//   - the websocket endpoint at /stream
//   - the gRPC evaluator, when enabled
//
// HTTP responses are gzip-compressed when Server.Compress is set.
//
// Server Lifecycle:
//  1. New builds every component
//  2. Run listens on the configured ports and blocks
//  3. Cancelling the context stops both listeners gracefully
//  4. Close releases the sandboxes and flushes the logger
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
