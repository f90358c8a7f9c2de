package tracing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsvm/internal/shared/id"
)

// Propagation headers. gRPC metadata uses the lowercase form.
const (
	TraceHeader = "X-Trace-ID"
	SpanHeader  = "X-Span-ID"

	tracePrefix = "trace"
	spanPrefix  = "span"

	bufferSize = 1000
)

// TraceID identifies a whole request flow
type TraceID string

// SpanID identifies one operation inside a trace
type SpanID string

// Span is a single timed operation
type Span struct {
	TraceID  TraceID
	SpanID   SpanID
	ParentID SpanID
	Name     string
	Service  string
	Start    time.Time
	Duration time.Duration

	mu   sync.Mutex
	tags map[string]string
	err  error
}

// SetTag attaches a key/value to the span
func (s *Span) SetTag(key, value string) {
	s.mu.Lock()
	s.tags[key] = value
	s.mu.Unlock()
}

// Tag returns a previously set tag
func (s *Span) Tag(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags[key]
}

// SetError marks the span as failed
func (s *Span) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Err returns the recorded error, if any
func (s *Span) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Tracer hands out spans and logs finished ones from a collector goroutine.
type Tracer struct {
	service string
	logger  *zap.Logger
	ids     *id.Generator

	mu     sync.RWMutex
	closed bool
	spans  chan *Span
	done   chan struct{}
}

// New creates a tracer and starts its collector
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger.Named("trace"),
		ids:     id.Default(),
		spans:   make(chan *Span, bufferSize),
		done:    make(chan struct{}),
	}
	go t.collect()
	return t
}

// StartSpan opens a span. It joins the trace carried by ctx, or starts a new
// one, and returns a context carrying the new span as parent.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := TraceIDFrom(ctx)
	if traceID == "" {
		traceID = TraceID(t.ids.GenerateWithPrefix(tracePrefix))
	}

	span := &Span{
		TraceID:  traceID,
		SpanID:   SpanID(t.ids.GenerateWithPrefix(spanPrefix)),
		ParentID: SpanIDFrom(ctx),
		Name:     name,
		Service:  t.service,
		Start:    time.Now(),
		tags:     make(map[string]string),
	}
	return span, WithRemote(ctx, traceID, span.SpanID)
}

// End stops the span clock and queues it for the collector. Spans ended
// after Close are dropped.
func (t *Tracer) End(span *Span) {
	span.Duration = time.Since(span.Start)

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}

	select {
	case t.spans <- span:
	default:
		t.logger.Warn("Span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", string(span.SpanID)),
		)
	}
}

// Close stops accepting spans and waits for queued ones to be logged.
func (t *Tracer) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		<-t.done
		return
	}
	t.closed = true
	close(t.spans)
	t.mu.Unlock()
	<-t.done
}

func (t *Tracer) collect() {
	defer close(t.done)
	for span := range t.spans {
		t.log(span)
	}
}

func (t *Tracer) log(span *Span) {
	fields := []zap.Field{
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.String("service", span.Service),
		zap.Duration("duration", span.Duration),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}

	span.mu.Lock()
	for k, v := range span.tags {
		fields = append(fields, zap.String(k, v))
	}
	err := span.err
	span.mu.Unlock()

	if err != nil {
		t.logger.Warn("Span failed", append(fields, zap.Error(err))...)
		return
	}
	t.logger.Debug("Span completed", fields...)
}

type contextKey int

const (
	traceIDKey contextKey = iota
	spanIDKey
)

// WithRemote stores trace identifiers in ctx. Empty values are skipped.
func WithRemote(ctx context.Context, traceID TraceID, spanID SpanID) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, traceID)
	}
	if spanID != "" {
		ctx = context.WithValue(ctx, spanIDKey, spanID)
	}
	return ctx
}

// TraceIDFrom returns the trace ID carried by ctx
func TraceIDFrom(ctx context.Context) TraceID {
	traceID, _ := ctx.Value(traceIDKey).(TraceID)
	return traceID
}

// SpanIDFrom returns the current span ID carried by ctx
func SpanIDFrom(ctx context.Context) SpanID {
	spanID, _ := ctx.Value(spanIDKey).(SpanID)
	return spanID
}

// Fields returns zap fields correlating a log line with the current trace.
func Fields(ctx context.Context) []zap.Field {
	traceID := TraceIDFrom(ctx)
	if traceID == "" {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", string(traceID)),
		zap.String("span_id", string(SpanIDFrom(ctx))),
	}
}
