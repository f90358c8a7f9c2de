/*
Package middleware provides gin middleware for the HTTP API.

  - CORS: cross-origin access through gin-contrib/cors
  - RateLimit: token bucket per client IP, GlobalRateLimit for the whole server
  - RequestID: X-Request-ID propagation with generated UUIDs
  - Logger: structured request logging with zap

Order matters: RequestID runs first so that Logger can report the ID.
*/
package middleware
