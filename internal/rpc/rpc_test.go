package rpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type echoServer interface {
	Echo(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type echo struct{}

func (echo) Echo(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"said": String(req, "say"), "nested": map[string]any{"n": 2}})
}

var echoDesc = grpc.ServiceDesc{
	ServiceName: "test.v1.Echo",
	HandlerType: (*echoServer)(nil),
	Methods: []grpc.MethodDesc{
		Unary[echoServer]("test.v1.Echo", "Echo", echoServer.Echo),
	},
}

func dial(t *testing.T, opts ...grpc.ServerOption) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&echoDesc, echo{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestInvokeRoundTrip(t *testing.T) {
	conn := dial(t)
	out, err := Invoke(context.Background(), conn, "test.v1.Echo", "Echo", map[string]any{"say": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", String(out, "said"))
	assert.Equal(t, map[string]any{"n": 2.0}, Map(out, "nested"))
}

func TestInterceptorSeesFullMethod(t *testing.T) {
	var seen string
	conn := dial(t, grpc.UnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		seen = info.FullMethod
		return handler(ctx, req)
	}))
	_, err := Invoke(context.Background(), conn, "test.v1.Echo", "Echo", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "/test.v1.Echo/Echo", seen)
}

func TestInvokeRejectsUnencodable(t *testing.T) {
	conn := dial(t)
	_, err := Invoke(context.Background(), conn, "test.v1.Echo", "Echo", map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestFieldAccessors(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"name": "x", "n": 3, "flag": true})
	require.NoError(t, err)

	assert.Equal(t, "x", String(s, "name"))
	assert.Equal(t, "", String(s, "n"))
	assert.Equal(t, "", String(nil, "name"))

	n, ok := Number(s, "n")
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)
	_, ok = Number(s, "flag")
	assert.False(t, ok)
	_, ok = Number(s, "missing")
	assert.False(t, ok)

	assert.Nil(t, Map(s, "name"))
	assert.Nil(t, Map(nil, "name"))
}
