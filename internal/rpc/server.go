package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/GriffinCanCode/jsvm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsvm/internal/sandbox"
	"github.com/GriffinCanCode/jsvm/internal/vm"
)

// Evaluator implements EvaluatorServer on top of a sandbox pool.
type Evaluator struct {
	pool           *sandbox.Pool
	maxScriptBytes int
	logger         *zap.Logger
}

var _ EvaluatorServer = (*Evaluator)(nil)

// NewEvaluator creates the service implementation.
func NewEvaluator(pool *sandbox.Pool, maxScriptBytes int, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		pool:           pool,
		maxScriptBytes: maxScriptBytes,
		logger:         logger.Named("rpc"),
	}
}

// Eval runs the script. Script exceptions are reported as codes.Aborted with
// the dumped error attached as a structpb.Struct detail.
func (e *Evaluator) Eval(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Value, error) {
	script := req.GetValue()
	if script == "" {
		return nil, status.Error(codes.InvalidArgument, "script is required")
	}
	if e.maxScriptBytes > 0 && len(script) > e.maxScriptBytes {
		return nil, status.Errorf(codes.InvalidArgument, "script exceeds %d bytes", e.maxScriptBytes)
	}

	result, err := e.pool.Execute(ctx, script)
	if err != nil {
		return nil, toStatus(err)
	}

	value, err := structpb.NewValue(vm.Plain(vm.JSONSafe(result.Value)))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode result: %v", err)
	}
	return value, nil
}

// toStatus maps an execution error to a gRPC status.
func toStatus(err error) error {
	var se *vm.ScriptError
	switch {
	case errors.As(err, &se):
		st := status.New(codes.Aborted, se.Error())
		detail, derr := structpb.NewStruct(map[string]any{
			"name":    se.Name,
			"message": se.Message,
			"stack":   se.Stack,
		})
		if derr == nil {
			if withDetail, werr := st.WithDetails(detail); werr == nil {
				st = withDetail
			}
		}
		return st.Err()
	case errors.Is(err, sandbox.ErrExecutionTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, sandbox.ErrTimeout), errors.Is(err, sandbox.ErrPoolClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, vm.ErrCyclicValue), errors.Is(err, vm.ErrDumpTooDeep), errors.Is(err, vm.ErrDumpTooLarge):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// UnaryInterceptor records metrics and logs failed calls.
func UnaryInterceptor(metrics *monitoring.Metrics, logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic in gRPC handler", zap.String("method", info.FullMethod), zap.Any("panic", r))
				err = status.Error(codes.Internal, fmt.Sprint(r))
			}
			code := status.Code(err)
			metrics.RecordGRPCCall(info.FullMethod, code.String(), time.Since(start))
			if code != codes.OK && code != codes.Aborted {
				logger.Warn("gRPC call failed", zap.String("method", info.FullMethod), zap.Error(err))
			}
		}()
		return handler(ctx, req)
	}
}

// NewServer builds a grpc.Server serving the Evaluator. Extra interceptors
// run inside the metrics interceptor.
func NewServer(evaluator EvaluatorServer, metrics *monitoring.Metrics, logger *zap.Logger, extra ...grpc.UnaryServerInterceptor) *grpc.Server {
	interceptors := append([]grpc.UnaryServerInterceptor{UnaryInterceptor(metrics, logger)}, extra...)
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(interceptors...),
		grpc.MaxRecvMsgSize(10*1024*1024),
	)
	RegisterEvaluatorServer(s, evaluator)
	return s
}
