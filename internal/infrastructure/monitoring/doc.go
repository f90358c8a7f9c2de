/*
Package monitoring provides metrics collection for the evaluator.

# Overview

Metrics are registered in a per-instance Prometheus registry, so several
servers (or tests) can run in one process without duplicate registration.

# Features

- HTTP request metrics (latency, throughput, size)
- Script evaluations by entry point and outcome
- Live engine contexts and host function calls
- Session and WebSocket gauges
- gRPC call metrics

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "http")
	// ... evaluate ...
	timer.Stop(monitoring.StatusOK)

A nil *Metrics records nothing.
*/
package monitoring
