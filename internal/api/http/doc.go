// Package http provides the REST API for evaluating scripts.
//
// Endpoints:
//   - Status: / and /health
//   - Metrics: /metrics (Prometheus exposition)
//   - One-shot evaluation: POST /eval
//   - Sessions: /sessions, /sessions/:id, /sessions/:id/eval,
//     /sessions/:id/call, /sessions/:id/globals/:name
//
// A completed evaluation always answers with an EvalResponse. Script
// exceptions use 422, timeouts 408, and the error field carries the name,
// message and stack of the thrown value.
//
// Example Usage:
//
//	handlers := http.NewHandlers(http.Options{Pool: pool, Sessions: sessions, Metrics: metrics})
//	http.RegisterRoutes(router, handlers)
package http
