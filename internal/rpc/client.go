package rpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client wraps a connection to an Evaluator service.
type Client struct {
	conn *grpc.ClientConn
	addr string
}

// NewClient creates a client for addr. Extra options are appended to the
// defaults, so tests can swap the dialer.
func NewClient(addr string, extra ...grpc.DialOption) (*Client, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                60 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: false,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(10*1024*1024),
			grpc.MaxCallSendMsgSize(10*1024*1024),
		),
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial evaluator: %w", err)
	}
	return &Client{conn: conn, addr: addr}, nil
}

// Eval runs script remotely and returns the dumped value as plain Go data.
func (c *Client) Eval(ctx context.Context, script string) (any, error) {
	out := new(structpb.Value)
	if err := c.conn.Invoke(ctx, EvalMethod, wrapperspb.String(script), out); err != nil {
		return nil, err
	}
	return out.AsInterface(), nil
}

// Close closes the connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
