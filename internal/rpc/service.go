package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "jsvm.v1.Evaluator"
	EvalMethod  = "/" + ServiceName + "/Eval"
)

// EvaluatorServer is the server API for the Evaluator service.
type EvaluatorServer interface {
	// Eval runs a script in a fresh runtime and returns its dumped value.
	Eval(context.Context, *wrapperspb.StringValue) (*structpb.Value, error)
}

// ServiceDesc describes the Evaluator service. The messages are protobuf
// well-known types, so no generated code is involved.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EvaluatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Eval",
			Handler:    evalHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jsvm/v1/evaluator.proto",
}

// RegisterEvaluatorServer registers srv on s.
func RegisterEvaluatorServer(s grpc.ServiceRegistrar, srv EvaluatorServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func evalHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EvaluatorServer).Eval(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: EvalMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EvaluatorServer).Eval(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
