/*
Package tracing provides lightweight request tracing.

Spans are correlated through two identifiers carried in HTTP headers and
gRPC metadata:

	X-Trace-ID: one request flow, shared by every span in it
	X-Span-ID:  the current operation, used as parent by the next hop

Finished spans are queued to a buffered channel and written to the zap
logger by a collector goroutine. A full buffer drops spans instead of
blocking the request.

# Usage

	tracer := tracing.New("jsvm", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(tracing.GRPCUnaryInterceptor(tracer)),
	)

	span, ctx := tracer.StartSpan(ctx, "eval")
	defer tracer.End(span)
*/
package tracing
