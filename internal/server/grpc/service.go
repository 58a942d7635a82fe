package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "biokeeper.v1.BiometricService"

const (
	MethodEnroll         = "Enroll"
	MethodVerify         = "Verify"
	MethodVerifyAndLog   = "VerifyAndLog"
	MethodStartSession   = "StartSession"
	MethodSubmitSession  = "SubmitSession"
	MethodSessionMetrics = "SessionMetrics"
	MethodPing           = "Ping"
)

// FullMethod returns the wire name of method, e.g. "/biokeeper.v1.BiometricService/Ping".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// BiometricServer is the server API. Every message is a google.protobuf.Struct.
type BiometricServer interface {
	Enroll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Verify(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyAndLog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SessionMetrics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(BiometricServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BiometricServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BiometricServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes BiometricService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BiometricServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodEnroll, BiometricServer.Enroll),
		unaryMethod(MethodVerify, BiometricServer.Verify),
		unaryMethod(MethodVerifyAndLog, BiometricServer.VerifyAndLog),
		unaryMethod(MethodStartSession, BiometricServer.StartSession),
		unaryMethod(MethodSubmitSession, BiometricServer.SubmitSession),
		unaryMethod(MethodSessionMetrics, BiometricServer.SessionMetrics),
		unaryMethod(MethodPing, BiometricServer.Ping),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "biokeeper/v1/biometric.proto",
}

func RegisterBiometricServer(s grpc.ServiceRegistrar, srv BiometricServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls BiometricService over an established connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with the request fields and returns the response
// fields.
func (c *Client) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
