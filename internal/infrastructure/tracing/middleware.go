package tracing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var (
	traceMDKey = strings.ToLower(TraceHeader)
	spanMDKey  = strings.ToLower(SpanHeader)
)

// HTTPMiddleware opens a span per request. Incoming trace headers are joined
// and the new span's IDs are echoed back on the response.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithRemote(c.Request.Context(),
			TraceID(c.GetHeader(TraceHeader)),
			SpanID(c.GetHeader(SpanHeader)),
		)

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.path", c.Request.URL.Path)

		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceHeader, string(span.TraceID))
		c.Header(SpanHeader, string(span.SpanID))

		c.Next()

		code := c.Writer.Status()
		span.SetTag("http.status", strconv.Itoa(code))
		switch {
		case len(c.Errors) > 0:
			span.SetError(c.Errors.Last())
		case code >= 500:
			span.SetError(fmt.Errorf("status %d", code))
		}
		tracer.End(span)
	}
}

// GRPCUnaryInterceptor opens a server span per call, joining the trace from
// incoming metadata.
func GRPCUnaryInterceptor(tracer *Tracer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			ctx = WithRemote(ctx, TraceID(first(md, traceMDKey)), SpanID(first(md, spanMDKey)))
		}

		span, ctx := tracer.StartSpan(ctx, info.FullMethod)
		span.SetTag("rpc.system", "grpc")
		span.SetTag("span.kind", "server")

		resp, err := handler(ctx, req)
		span.SetTag("rpc.code", status.Code(err).String())
		if err != nil {
			span.SetError(err)
		}
		tracer.End(span)
		return resp, err
	}
}

// GRPCClientInterceptor opens a client span and forwards its IDs in the
// outgoing metadata.
func GRPCClientInterceptor(tracer *Tracer) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		span, ctx := tracer.StartSpan(ctx, method)
		span.SetTag("rpc.system", "grpc")
		span.SetTag("span.kind", "client")

		ctx = metadata.AppendToOutgoingContext(ctx,
			traceMDKey, string(span.TraceID),
			spanMDKey, string(span.SpanID),
		)

		err := invoker(ctx, method, req, reply, cc, opts...)
		span.SetTag("rpc.code", status.Code(err).String())
		if err != nil {
			span.SetError(err)
		}
		tracer.End(span)
		return err
	}
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
