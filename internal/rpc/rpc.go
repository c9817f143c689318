// Package rpc holds the plumbing shared by the gRPC services of this module. Every
// method takes and returns a google.protobuf.Struct, so services are declared with
// hand-written descriptors instead of generated stubs.
package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// UnaryFunc is the server-side implementation of one method
type UnaryFunc[S any] func(srv S, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// Unary builds the method descriptor of service/name dispatching to call
func Unary[S any](service, name string, call UnaryFunc[S]) grpc.MethodDesc {
	fullMethod := FullMethod(service, name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// FullMethod returns "/service/name"
func FullMethod(service, name string) string {
	return "/" + service + "/" + name
}

// Invoke calls one unary method with a map payload
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, service, name string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", name, err)
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, FullMethod(service, name), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// String returns a string field, or "" when missing or of another kind
func String(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

// Number returns a numeric field and whether it was present
func Number(s *structpb.Struct, key string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, false
	}
	if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
		return 0, false
	}
	return v.GetNumberValue(), true
}

// Map returns a nested struct field as a plain map, or nil
func Map(s *structpb.Struct, key string) map[string]any {
	if s == nil {
		return nil
	}
	inner := s.GetFields()[key].GetStructValue()
	if inner == nil {
		return nil
	}
	return inner.AsMap()
}
