package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GriffinCanCode/jsvm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsvm/internal/sandbox"
)

func newTestClient(t *testing.T, metrics *monitoring.Metrics) *Client {
	t.Helper()

	cfg := sandbox.DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	pool, err := sandbox.NewPool(cfg, 1)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(NewEvaluator(pool, 64, nil), metrics, nil)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	client, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestEval(t *testing.T) {
	client := newTestClient(t, nil)

	tests := []struct {
		script string
		want   any
	}{
		{"1 + 2", float64(3)},
		{"'a' + 'b'", "ab"},
		{"null", nil},
		{"undefined", nil},
		{"[1, 'x', false]", []any{float64(1), "x", false}},
		{"({n: NaN, nested: {ok: true}})", map[string]any{"n": nil, "nested": map[string]any{"ok": true}}},
	}

	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			got, err := client.Eval(context.Background(), tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalScriptError(t *testing.T) {
	client := newTestClient(t, nil)

	_, err := client.Eval(context.Background(), "throw new RangeError('out of range')")
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Aborted, st.Code())
	assert.Equal(t, "RangeError: out of range", st.Message())

	details := st.Details()
	require.Len(t, details, 1)
	detail, ok := details[0].(*structpb.Struct)
	require.True(t, ok, "got %T", details[0])
	assert.Equal(t, "RangeError", detail.AsMap()["name"])
	assert.Equal(t, "out of range", detail.AsMap()["message"])
}

func TestEvalStatusCodes(t *testing.T) {
	client := newTestClient(t, nil)

	tests := []struct {
		name   string
		script string
		want   codes.Code
	}{
		{"empty script", "", codes.InvalidArgument},
		{"too large", string(make([]byte, 65)), codes.InvalidArgument},
		{"timeout", "for (;;) {}", codes.DeadlineExceeded},
		{"cyclic", "var a = []; a.push(a); a", codes.FailedPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Eval(context.Background(), tt.script)
			assert.Equal(t, tt.want, status.Code(err), "%v", err)
		})
	}
}

func TestInterceptorRecordsMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	client := newTestClient(t, metrics)

	_, err := client.Eval(context.Background(), "1")
	require.NoError(t, err)
	_, err = client.Eval(context.Background(), "throw 1")
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.GRPCCalls.WithLabelValues(EvalMethod, "OK")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.GRPCCalls.WithLabelValues(EvalMethod, "Aborted")))
}

func TestInterceptorRecoversPanics(t *testing.T) {
	interceptor := UnaryInterceptor(nil, nil)
	info := &grpc.UnaryServerInfo{FullMethod: EvalMethod}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}
