package alarm

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "homealarm.v1.AlarmCentral"

// Full method names.
const (
	GetStateFullMethod    = "/" + ServiceName + "/GetState"
	SendCommandFullMethod = "/" + ServiceName + "/SendCommand"
)

// AlarmCentralServer is the server side of homealarm.v1.AlarmCentral.
type AlarmCentralServer interface {
	GetState(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	SendCommand(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes homealarm.v1.AlarmCentral for grpc.Server.
//
//nolint:gochecknoglobals // grpc.RegisterService needs a stable descriptor.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlarmCentralServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetState",
			Handler:    getStateHandler,
		},
		{
			MethodName: "SendCommand",
			Handler:    sendCommandHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "homealarm/v1/alarm_central.proto",
}

// RegisterAlarmCentralServer attaches srv to the registrar.
func RegisterAlarmCentralServer(s grpc.ServiceRegistrar, srv AlarmCentralServer) {
	s.RegisterService(&ServiceDesc, srv)
}

//nolint:revive // Signature is dictated by grpc.MethodDesc.
func getStateHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(AlarmCentralServer).GetState(ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetStateFullMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AlarmCentralServer).GetState(ctx, req.(*emptypb.Empty)) //nolint:forcetypeassert // Same as above.
	}

	return interceptor(ctx, in, info, handler)
}

//nolint:revive // Signature is dictated by grpc.MethodDesc.
func sendCommandHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(AlarmCentralServer).SendCommand(ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SendCommandFullMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AlarmCentralServer).SendCommand(ctx, req.(*structpb.Struct)) //nolint:forcetypeassert // Same as above.
	}

	return interceptor(ctx, in, info, handler)
}

// AlarmCentralClient is the client stub of homealarm.v1.AlarmCentral.
type AlarmCentralClient struct {
	// cc carries the calls.
	cc grpc.ClientConnInterface
}

// NewAlarmCentralClient returns a stub bound to cc.
func NewAlarmCentralClient(cc grpc.ClientConnInterface) *AlarmCentralClient {
	return &AlarmCentralClient{cc: cc}
}

// GetState calls GetState.
func (c *AlarmCentralClient) GetState(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetStateFullMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// SendCommand calls SendCommand.
func (c *AlarmCentralClient) SendCommand(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SendCommandFullMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
