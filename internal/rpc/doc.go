// Package rpc exposes evaluation over gRPC.
//
// The service jsvm.v1.Evaluator has a single unary method, Eval, taking a
// google.protobuf.StringValue script and returning a google.protobuf.Value.
// Script exceptions map to codes.Aborted with the error object attached as a
// google.protobuf.Struct detail, timeouts to codes.DeadlineExceeded.
package rpc
